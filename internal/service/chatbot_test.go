package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bigkaa/dataviz/internal/llm"
)

func TestChatbotService_Interpret(t *testing.T) {
	completer := &mockCompleter{
		completeFn: func(_ context.Context, _ llm.Request) (string, error) {
			return "Сумма продаж по регионам", nil
		},
	}
	svc := NewChatbotService(completer, testLogger())

	answer, err := svc.Interpret(context.Background(), alice, "total sales by region")
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	if answer != "Сумма продаж по регионам" {
		t.Errorf("ответ = %q", answer)
	}

	req := completer.last
	if req.System != "You are a helpful assistant." {
		t.Errorf("System = %q", req.System)
	}
	if req.User != "Interpret this data query: total sales by region" {
		t.Errorf("User = %q", req.User)
	}
	if req.MaxTokens != 150 || req.Temperature != 0 {
		t.Errorf("MaxTokens = %d, Temperature = %v", req.MaxTokens, req.Temperature)
	}
}

func TestChatbotService_Interpret_EmptyQuery(t *testing.T) {
	completer := &mockCompleter{}
	svc := NewChatbotService(completer, testLogger())

	if _, err := svc.Interpret(context.Background(), alice, ""); !errors.Is(err, ErrValidation) {
		t.Errorf("ожидалась ErrValidation, получено %v", err)
	}
	if completer.calls != 0 {
		t.Errorf("API вызван %d раз, ожидалось 0", completer.calls)
	}
}

func TestChatbotService_Interpret_NoCaller(t *testing.T) {
	completer := &mockCompleter{}
	svc := NewChatbotService(completer, testLogger())

	if _, err := svc.Interpret(context.Background(), nil, "q"); !errors.Is(err, ErrForbidden) {
		t.Errorf("ожидалась ErrForbidden, получено %v", err)
	}
	if completer.calls != 0 {
		t.Errorf("API вызван %d раз, ожидалось 0", completer.calls)
	}
}

func TestChatbotService_Interpret_APIError(t *testing.T) {
	apiErr := errors.New("rate limited")
	completer := &mockCompleter{
		completeFn: func(_ context.Context, _ llm.Request) (string, error) {
			return "", apiErr
		},
	}
	svc := NewChatbotService(completer, testLogger())

	_, err := svc.Interpret(context.Background(), alice, "q")
	if !errors.Is(err, apiErr) {
		t.Errorf("ожидалась обёрнутая ошибка API, получено %v", err)
	}
	if completer.calls != 1 {
		t.Errorf("API вызван %d раз, повторов быть не должно", completer.calls)
	}
}
