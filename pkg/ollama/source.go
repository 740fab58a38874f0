package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/BryanTheLai/stackrag/pkg/logger"
	"github.com/BryanTheLai/stackrag/pkg/stream"
)

// Source streams replies from a local model, for use without the RAG backend.
type Source struct {
	llm          llms.Model
	model        string
	systemPrompt string
	timeout      time.Duration
}

type SourceOption func(*Source)

// WithSystemPrompt is prepended to every history that has no system message.
func WithSystemPrompt(prompt string) SourceOption {
	return func(s *Source) { s.systemPrompt = prompt }
}

func WithTimeout(d time.Duration) SourceOption {
	return func(s *Source) { s.timeout = d }
}

// WithLLM replaces the langchaingo model, mainly for tests.
func WithLLM(m llms.Model) SourceOption {
	return func(s *Source) { s.llm = m }
}

func NewSource(baseURL, model string, opts ...SourceOption) (*Source, error) {
	s := &Source{model: model}
	for _, opt := range opts {
		opt(s)
	}
	if s.llm != nil {
		return s, nil
	}

	llmOpts := []ollama.Option{
		ollama.WithModel(model),
		ollama.WithHTTPClient(&http.Client{Timeout: s.timeout}),
	}
	if baseURL != "" {
		llmOpts = append(llmOpts, ollama.WithServerURL(baseURL))
	}
	llm, err := ollama.New(llmOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama model: %w", err)
	}
	s.llm = llm
	return s, nil
}

func (s *Source) Model() string {
	return s.model
}

// Stream implements stream.Source.
func (s *Source) Stream(ctx context.Context, history []stream.Message, h stream.Handler) error {
	log := logger.WithComponent("ollama_source")
	messages := s.messages(history)

	var content strings.Builder
	chunks := 0
	forward := stream.ToStreamingFunc(h)
	streamingFunc := func(ctx context.Context, chunk []byte) error {
		chunks++
		content.Write(chunk)
		return forward(ctx, chunk)
	}

	log.Debug("Generating", "model", s.model, "messages", len(messages))
	resp, err := s.llm.GenerateContent(ctx, messages, llms.WithStreamingFunc(streamingFunc))
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		log.Warn("Generation failed", "model", s.model, "chunks", chunks, "error", err)
		h.OnError(err)
		return err
	}

	// Some models answer without streaming.
	if chunks == 0 && resp != nil && len(resp.Choices) > 0 && resp.Choices[0].Content != "" {
		text := resp.Choices[0].Content
		content.WriteString(text)
		if err := h.OnChunk([]byte(text)); err != nil {
			h.OnError(err)
			return err
		}
	}

	return h.OnComplete(content.String())
}

func (s *Source) messages(history []stream.Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(history)+1)
	if s.systemPrompt != "" && (len(history) == 0 || history[0].Role != stream.RoleSystem) {
		out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, s.systemPrompt))
	}

	for _, m := range history {
		messageType := llms.ChatMessageTypeHuman
		switch m.Role {
		case stream.RoleSystem:
			messageType = llms.ChatMessageTypeSystem
		case stream.RoleAssistant:
			messageType = llms.ChatMessageTypeAI
		}
		out = append(out, llms.TextParts(messageType, m.Content))
	}
	return out
}

var _ stream.Source = (*Source)(nil)
