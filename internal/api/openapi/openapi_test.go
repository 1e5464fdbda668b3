package openapi

import (
	"context"
	"encoding/json"
	"testing"
)

func TestLoad(t *testing.T) {
	doc, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load ошибка: %v", err)
	}
	if doc.Info == nil || doc.Info.Title != "dataviz API" {
		t.Errorf("info.title = %v", doc.Info)
	}

	for _, path := range []string{
		"/api/files/",
		"/api/files/{id}/",
		"/api/files/{id}/download/",
		"/api/data-models/{id}/",
		"/api/visualize/{file_id}/",
		"/api/chatbot/query/",
	} {
		if doc.Paths.Value(path) == nil {
			t.Errorf("путь %s не описан", path)
		}
	}

	del := doc.Paths.Value("/api/files/{id}/").Delete
	if del == nil || del.Responses.Value("204") == nil {
		t.Error("DELETE /api/files/{id}/ должен описывать 204")
	}
}

func TestJSON(t *testing.T) {
	doc, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load ошибка: %v", err)
	}

	data, err := JSON(doc)
	if err != nil {
		t.Fatalf("JSON ошибка: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("некорректный JSON: %v", err)
	}
	if decoded["openapi"] != "3.0.3" {
		t.Errorf("openapi = %v, ожидалось 3.0.3", decoded["openapi"])
	}
	if _, ok := decoded["paths"].(map[string]any); !ok {
		t.Error("в документе нет paths")
	}
}
