package ollama

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/BryanTheLai/stackrag/pkg/chat"
	"github.com/BryanTheLai/stackrag/pkg/stream"
	"github.com/BryanTheLai/stackrag/pkg/tags"
)

// fakeLLM streams fixed chunks and records the messages it was given.
type fakeLLM struct {
	chunks   []string
	final    string
	err      error
	messages []llms.MessageContent
}

func (f *fakeLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	opts := llms.CallOptions{}
	for _, opt := range options {
		opt(&opts)
	}
	for _, c := range f.chunks {
		if opts.StreamingFunc != nil {
			if err := opts.StreamingFunc(ctx, []byte(c)); err != nil {
				return nil, err
			}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.final}}}, nil
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return f.final, f.err
}

func textOf(m llms.MessageContent) string {
	return m.Parts[0].(llms.TextContent).Text
}

func TestSourceStream(t *testing.T) {
	ctx := context.Background()

	t.Run("should stream chunks through a turn", func(t *testing.T) {
		llm := &fakeLLM{chunks: []string{"Sales ", "<PDF", `Nav>{"documentId":"d","filename":"f.pdf","page":3}</PDFNav>`}}
		src, err := NewSource("", "qwen3", WithLLM(llm), WithSystemPrompt("use tags"))
		require.NoError(t, err)

		turn := chat.NewTurn(tags.Default())
		history := []stream.Message{{Role: stream.RoleUser, Content: "where?"}}
		require.NoError(t, src.Stream(ctx, history, turn))

		view := turn.View()
		assert.Equal(t, chat.StatusComplete, view.Status)
		require.Len(t, view.Segments, 2)
		assert.Equal(t, tags.KindPDFNav, view.Segments[1].Kind)

		require.Len(t, llm.messages, 2)
		assert.Equal(t, llms.ChatMessageTypeSystem, llm.messages[0].Role)
		assert.Equal(t, "use tags", textOf(llm.messages[0]))
		assert.Equal(t, llms.ChatMessageTypeHuman, llm.messages[1].Role)
	})

	t.Run("should keep an existing system message", func(t *testing.T) {
		llm := &fakeLLM{}
		src, err := NewSource("", "m", WithLLM(llm), WithSystemPrompt("default"))
		require.NoError(t, err)

		history := []stream.Message{
			{Role: stream.RoleSystem, Content: "custom"},
			{Role: stream.RoleUser, Content: "q"},
			{Role: stream.RoleAssistant, Content: "a"},
		}
		require.NoError(t, src.Stream(ctx, history, stream.HandlerFunc{}))
		require.Len(t, llm.messages, 3)
		assert.Equal(t, "custom", textOf(llm.messages[0]))
		assert.Equal(t, llms.ChatMessageTypeAI, llm.messages[2].Role)
	})

	t.Run("should use the full response when nothing streamed", func(t *testing.T) {
		src, err := NewSource("", "m", WithLLM(&fakeLLM{final: "whole answer"}))
		require.NoError(t, err)

		var got []string
		var final string
		h := stream.HandlerFunc{
			ChunkFunc:    func(c []byte) error { got = append(got, string(c)); return nil },
			CompleteFunc: func(s string) error { final = s; return nil },
		}
		require.NoError(t, src.Stream(ctx, nil, h))
		assert.Equal(t, []string{"whole answer"}, got)
		assert.Equal(t, "whole answer", final)
	})

	t.Run("should report generation errors once", func(t *testing.T) {
		src, err := NewSource("", "m", WithLLM(&fakeLLM{chunks: []string{"par"}, err: errors.New("model crashed")}))
		require.NoError(t, err)

		var errs []error
		completed := false
		h := stream.HandlerFunc{
			CompleteFunc: func(string) error { completed = true; return nil },
			ErrorFunc:    func(err error) { errs = append(errs, err) },
		}
		assert.EqualError(t, src.Stream(ctx, nil, h), "model crashed")
		assert.Len(t, errs, 1)
		assert.False(t, completed)
	})

	t.Run("should report cancellation", func(t *testing.T) {
		src, err := NewSource("", "m", WithLLM(&fakeLLM{chunks: []string{"a", "b"}}))
		require.NoError(t, err)

		cctx, cancel := context.WithCancel(ctx)
		turn := chat.NewTurn(tags.Default(), chat.WithRefresh(func(chat.TurnView) { cancel() }))

		err = src.Stream(cctx, nil, turn)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, chat.StatusCancelled, turn.View().Status)
		assert.Equal(t, "a", turn.View().Raw())
	})
}
