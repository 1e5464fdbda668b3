// Пакет llm - клиент OpenAI-совместимого API chat completions.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/sashabaranov/go-openai"
)

// ErrEmptyResponse - API вернул ответ без вариантов.
var ErrEmptyResponse = errors.New("языковая модель вернула пустой ответ")

// Request - одиночный запрос к модели: системная инструкция и реплика пользователя.
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float32
}

// Completer - абстракция над провайдером языковой модели.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Config - параметры подключения к провайдеру.
type Config struct {
	// APIKey - ключ API (обязательный)
	APIKey string
	// BaseURL - базовый URL API, пусто - api.openai.com
	BaseURL string
	// Model - имя модели
	Model string
}

// Client - реализация Completer поверх go-openai.
type Client struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// New создаёт клиента. Без ключа API клиент не создаётся.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("не задан ключ API языковой модели")
	}
	if cfg.Model == "" {
		return nil, errors.New("не задано имя модели")
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}

	return &Client{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.Model,
		logger: logger.With(slog.String("component", "llm")),
	}, nil
}

// Complete отправляет запрос и возвращает текст первого варианта ответа.
// Повторов нет: ошибка API возвращается вызывающему.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	temperature := req.Temperature
	if temperature == 0 {
		// Нулевое значение go-openai опускает при сериализации
		temperature = math.SmallestNonzeroFloat32
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("ошибка запроса к языковой модели: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	c.logger.Debug("Ответ языковой модели получен",
		slog.String("model", resp.Model),
		slog.String("finish_reason", string(resp.Choices[0].FinishReason)),
		slog.Int("total_tokens", resp.Usage.TotalTokens),
	)
	return resp.Choices[0].Message.Content, nil
}
