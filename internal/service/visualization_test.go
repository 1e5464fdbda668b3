package service

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bigkaa/dataviz/internal/domain/model"
	"github.com/bigkaa/dataviz/internal/storage/filestore"
)

const salesCSV = "region,amount,active\nnorth,10,true\nsouth,2.5,false\nnorth,,true\n"

func newVisualizationForTest(t *testing.T) (*VisualizationService, *FileService, *memFileRepo, *filestore.FileStore) {
	t.Helper()
	files, repo, fs := newFileServiceForTest(t)
	return NewVisualizationService(files, testLogger()), files, repo, fs
}

func TestVisualizationService_Visualize(t *testing.T) {
	svc, files, _, _ := newVisualizationForTest(t)
	ctx := context.Background()

	rec, err := files.Create(ctx, "Продажи", csvUpload("sales.csv", salesCSV), "alice")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	v, err := svc.Visualize(ctx, rec.ID, "")
	if err != nil {
		t.Fatalf("Visualize: %v", err)
	}
	if v.FileName != "Продажи" || len(v.Data) != 3 {
		t.Fatalf("FileName = %q, строк = %d", v.FileName, len(v.Data))
	}

	got, err := json.Marshal(v.Data)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `[{"region":"north","amount":10,"active":true},` +
		`{"region":"south","amount":2.5,"active":false},` +
		`{"region":"north","amount":null,"active":true}]`
	if string(got) != want {
		t.Errorf("JSON:\n got %s\nwant %s", got, want)
	}
}

func TestVisualizationService_Visualize_Filter(t *testing.T) {
	svc, files, _, _ := newVisualizationForTest(t)
	ctx := context.Background()

	rec, err := files.Create(ctx, "x", csvUpload("sales.csv", salesCSV), "alice")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	tests := []struct {
		filter string
		rows   int
	}{
		{"north", 2},
		{"south", 1},
		{"North", 0},
		{"10", 0},
		{"", 3},
	}
	for _, tt := range tests {
		v, err := svc.Visualize(ctx, rec.ID, tt.filter)
		if err != nil {
			t.Fatalf("Visualize(%q): %v", tt.filter, err)
		}
		if len(v.Data) != tt.rows {
			t.Errorf("filter=%q: строк %d, ожидалось %d", tt.filter, len(v.Data), tt.rows)
		}
	}
}

func TestVisualizationService_Visualize_Errors(t *testing.T) {
	svc, files, repo, fs := newVisualizationForTest(t)
	ctx := context.Background()

	if _, err := svc.Visualize(ctx, 404, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("нет записи: ожидалась ErrNotFound, получено %v", err)
	}

	// Запись с неподдерживаемым расширением в обход валидации загрузки
	bad := &model.FileRecord{Name: "legacy", StoragePath: "uploads/legacy.xls"}
	if err := repo.Create(ctx, bad); err != nil {
		t.Fatalf("repo.Create: %v", err)
	}
	if _, err := svc.Visualize(ctx, bad.ID, ""); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("xls: ожидалась ErrUnsupportedFormat, получено %v", err)
	}

	rec, err := files.Create(ctx, "gone", csvUpload("gone.csv", salesCSV), "alice")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := os.Remove(filepath.Join(fs.Root(), rec.StoragePath)); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := svc.Visualize(ctx, rec.ID, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("нет файла на диске: ожидалась ErrNotFound, получено %v", err)
	}

	broken, err := files.Create(ctx, "broken", csvUpload("broken.xlsx", strings.Repeat("not a zip", 10)), "alice")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err = svc.Visualize(ctx, broken.ID, "")
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("битый xlsx: ожидалась внутренняя ошибка, получено %v", err)
	}
}
