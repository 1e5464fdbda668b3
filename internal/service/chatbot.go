package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bigkaa/dataviz/internal/domain/model"
	"github.com/bigkaa/dataviz/internal/llm"
)

const (
	chatbotSystemPrompt = "You are a helpful assistant."
	chatbotUserPrompt   = "Interpret this data query: %s"
	chatbotMaxTokens    = 150
)

// ErrEmptyQuery - запрос к чат-боту не передан.
var ErrEmptyQuery = fmt.Errorf("%w: No query provided", ErrValidation)

// ChatbotService передаёт текстовые запросы языковой модели.
type ChatbotService struct {
	completer llm.Completer
	logger    *slog.Logger
}

// NewChatbotService создаёт сервис чат-бота.
func NewChatbotService(completer llm.Completer, logger *slog.Logger) *ChatbotService {
	return &ChatbotService{
		completer: completer,
		logger:    logger.With(slog.String("component", "chatbot_service")),
	}
}

// Interpret отправляет запрос модели и возвращает текст ответа.
// Пустой запрос отклоняется до обращения к API. Ответ не сохраняется.
func (s *ChatbotService) Interpret(ctx context.Context, caller *model.User, query string) (string, error) {
	if query == "" {
		return "", ErrEmptyQuery
	}
	if caller == nil {
		return "", ErrForbidden
	}

	answer, err := s.completer.Complete(ctx, llm.Request{
		System:    chatbotSystemPrompt,
		User:      fmt.Sprintf(chatbotUserPrompt, query),
		MaxTokens: chatbotMaxTokens,
	})
	if err != nil {
		llmRequestsTotal.WithLabelValues("error").Inc()
		s.logger.Error("Ошибка запроса к языковой модели",
			slog.Int64("user_id", caller.ID),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("запрос к языковой модели: %w", err)
	}

	llmRequestsTotal.WithLabelValues("ok").Inc()
	s.logger.Info("Запрос к языковой модели выполнен",
		slog.Int64("user_id", caller.ID),
		slog.Int("query_len", len(query)),
	)
	return answer, nil
}
