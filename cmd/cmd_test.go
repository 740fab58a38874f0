package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BryanTheLai/stackrag/pkg/chat"
	"github.com/BryanTheLai/stackrag/pkg/config"
	"github.com/BryanTheLai/stackrag/pkg/documents"
	"github.com/BryanTheLai/stackrag/pkg/ollama"
	"github.com/BryanTheLai/stackrag/pkg/stream"
	"github.com/BryanTheLai/stackrag/pkg/tags"
)

// echoSource answers every prompt with a fixed reply.
type echoSource struct {
	reply string
	calls int
}

func (s *echoSource) Stream(ctx context.Context, history []stream.Message, h stream.Handler) error {
	s.calls++
	if err := h.OnChunk([]byte(s.reply)); err != nil {
		return err
	}
	return h.OnComplete(s.reply)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Provider: "sse",
		Backend:  config.BackendConfig{URL: "http://127.0.0.1:1"},
		Ollama:   config.OllamaConfig{URL: "http://127.0.0.1:1", Model: "llama3.2"},
		Session:  config.SessionConfig{Backend: "file", Path: filepath.Join(dir, "sessions.json"), UserID: "tester"},
		Render:   config.RenderConfig{Width: 80, Style: "notty"},
	}
}

func testApp(t *testing.T) *app {
	t.Helper()
	a, err := newApp(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"ask"},
		{"chat"},
		{"models"},
		{"replay"},
		{"search"},
		{"sessions", "list"},
		{"sessions", "show"},
		{"sessions", "rename"},
		{"sessions", "delete"},
		{"sessions", "export"},
		{"docs", "list"},
		{"docs", "add"},
	} {
		found, _, err := rootCmd.Find(path)
		require.NoError(t, err, strings.Join(path, " "))
		assert.Equal(t, path[len(path)-1], found.Name())
	}

	for _, name := range []string{"config", "log-level", "provider", "backend", "token"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}
	assert.NotNil(t, askCmd.Flags().Lookup("record"))
	assert.Equal(t, "5", searchCmd.Flags().Lookup("limit").DefValue)
}

func TestBuildRegistry(t *testing.T) {
	t.Run("should append configured tags", func(t *testing.T) {
		reg, err := buildRegistry(config.TagsConfig{Extra: []config.TagConfig{
			{Kind: "table", Open: "<TableData>", Close: "</TableData>"},
		}})
		require.NoError(t, err)
		assert.Equal(t, 3, reg.Len())
		spec, ok := reg.Lookup("table")
		require.True(t, ok)
		assert.Equal(t, "<TableData>", spec.Open)
	})

	t.Run("should reject a tag that clashes with a built-in", func(t *testing.T) {
		_, err := buildRegistry(config.TagsConfig{Extra: []config.TagConfig{
			{Kind: "other", Open: "<ChartData>", Close: "</Other>"},
		}})
		assert.ErrorIs(t, err, tags.ErrDuplicateOpen)
	})
}

func TestNewApp(t *testing.T) {
	a := testApp(t)
	assert.Nil(t, a.index)
	assert.Equal(t, []string{"ollama", "sse"}, a.sources.Names())

	src, err := a.source(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, src)

	t.Run("should reject an unknown session backend", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Session.Backend = "redis"
		_, err := newApp(cfg)
		assert.Error(t, err)
	})
}

const chartReply = `Revenue by quarter: <ChartData>{"type":"bar","data":[{"name":"Q1","value":3},{"name":"Q2","value":5}]}</ChartData> Done.`

func TestReplay(t *testing.T) {
	reg := tags.Default()

	t.Run("should list segments", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, replay(&out, reg, nil, []string{"Revenue by quarter: <Chart", chartReply[len("Revenue by quarter: <Chart"):]}))

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 4)
		assert.Equal(t, "2 fragments, 3 segments", lines[0])
		assert.Contains(t, lines[1], "text")
		assert.Contains(t, lines[2], "block chart")
		assert.Contains(t, lines[3], `" Done."`)
	})

	t.Run("should give the same segments for any chunking", func(t *testing.T) {
		var whole bytes.Buffer
		require.NoError(t, replay(&whole, reg, nil, []string{chartReply}))
		want := strings.SplitN(whole.String(), "\n", 2)[1]

		for seed := uint64(1); seed <= 20; seed++ {
			frags := rechunk(chartReply, 7, seed)
			require.Equal(t, chartReply, strings.Join(frags, ""))

			var out bytes.Buffer
			require.NoError(t, replay(&out, reg, nil, frags))
			assert.Equal(t, want, strings.SplitN(out.String(), "\n", 2)[1], "seed %d", seed)
		}
	})

	t.Run("should render when asked", func(t *testing.T) {
		a := testApp(t)
		var out bytes.Buffer
		require.NoError(t, replay(&out, a.reg, a.renderer, []string{chartReply}))
		assert.Contains(t, out.String(), "█")
		assert.NotContains(t, out.String(), "<ChartData>")
	})
}

func TestLoadFragments(t *testing.T) {
	var rec bytes.Buffer
	r := stream.NewRecorder(&rec)
	require.NoError(t, r.OnChunk([]byte("a<PDF")))
	require.NoError(t, r.OnChunk([]byte("Nav>")))
	assert.Equal(t, []string{"a<PDF", "Nav>"}, loadFragments(rec.Bytes()))

	plain := []byte("just some text\n")
	assert.Equal(t, []string{"just some text\n"}, loadFragments(plain))
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models":[
			{"name":"llama3.2:latest","size":2147483648,"details":{"parameter_size":"3B","quantization_level":"Q4_K_M"}},
			{"name":"qwen3:8b","size":5368709120,"details":{"parameter_size":"8B","quantization_level":"Q4_K_M"}}]}`)
	}))
	defer srv.Close()

	var out bytes.Buffer
	require.NoError(t, listModels(context.Background(), &out, ollama.NewClient(srv.URL), "llama3.2"))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "PARAMETER SIZE")
	assert.True(t, strings.HasPrefix(lines[1], "llama3.2:latest *"))
	assert.Contains(t, lines[1], "2.0GB")
	assert.True(t, strings.HasPrefix(lines[2], "qwen3:8b "))

	t.Run("should fail when the server is down", func(t *testing.T) {
		down := httptest.NewServer(http.NotFoundHandler())
		down.Close()
		err := listModels(context.Background(), &bytes.Buffer{}, ollama.NewClient(down.URL), "x")
		assert.ErrorContains(t, err, "cannot reach Ollama")
	})
}

func TestSessionsCommands(t *testing.T) {
	ctx := context.Background()
	a := testApp(t)

	id, err := a.store.Create(ctx, "tester", "Quarterly revenue")
	require.NoError(t, err)
	require.NoError(t, a.store.UpdateHistory(ctx, id, []chat.ChatMessage{
		chat.NewUserMessage("Chart revenue"),
		chat.NewResponseMessage(chartReply, "backend"),
	}))

	var out bytes.Buffer
	require.NoError(t, listSessions(ctx, &out, a))
	assert.Contains(t, out.String(), "Quarterly revenue")
	assert.Contains(t, out.String(), id)

	out.Reset()
	require.NoError(t, showSession(ctx, &out, a, id))
	assert.Contains(t, out.String(), "You: Chart revenue")
	assert.Contains(t, out.String(), "█")
	assert.NotContains(t, out.String(), "<ChartData>")

	export := filepath.Join(t.TempDir(), "export.json")
	out.Reset()
	require.NoError(t, exportSession(ctx, &out, a, id, export))
	assert.Contains(t, out.String(), "Exported 2 messages")
	h, err := chat.NewHistory(export)
	require.NoError(t, err)
	assert.Len(t, h.GetMessages(), 2)

	out.Reset()
	require.NoError(t, deleteSession(ctx, &out, a, id))
	err = showSession(ctx, &out, a, id)
	assert.EqualError(t, err, fmt.Sprintf("session %s not found", id))

	out.Reset()
	require.NoError(t, listSessions(ctx, &out, a))
	assert.Equal(t, "No sessions found\n", out.String())
}

func TestRunChat(t *testing.T) {
	ctx := context.Background()
	a := testApp(t)
	src := &echoSource{reply: "Hello there."}

	in := strings.NewReader("first question\n\n/new\nsecond question\n/quit\nignored\n")
	var out bytes.Buffer
	require.NoError(t, runChat(ctx, a, src, "", newScannerReader(in, &out), &out))

	assert.Equal(t, 2, src.calls)
	assert.Contains(t, out.String(), "Hello there.")
	assert.Contains(t, out.String(), "Started a new session.")

	sessions, err := a.store.List(ctx, "tester")
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	t.Run("should continue one session across lines", func(t *testing.T) {
		a := testApp(t)
		var out bytes.Buffer
		in := newScannerReader(strings.NewReader("one\ntwo\n"), &out)
		require.NoError(t, runChat(ctx, a, src, "", in, &out))
		assert.Equal(t, 3, strings.Count(out.String(), chatPrompt))

		sessions, err := a.store.List(ctx, "tester")
		require.NoError(t, err)
		require.Len(t, sessions, 1)
		assert.Equal(t, 4, sessions[0].MessageCount)
	})

	t.Run("should stop on an unknown session", func(t *testing.T) {
		var out bytes.Buffer
		err := runChat(ctx, a, src, "missing", newScannerReader(strings.NewReader("hi\n"), &out), &out)
		assert.ErrorContains(t, err, "not found")
	})
}

func TestSearchRepliesDisabled(t *testing.T) {
	err := searchReplies(context.Background(), &bytes.Buffer{}, testApp(t), "revenue", 3)
	assert.ErrorContains(t, err, "vector store is disabled")
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "a b", snippet("a\n  b"))
	long := strings.Repeat("x", 200)
	assert.Len(t, []rune(snippet(long)), snippetLen)
}

func TestDocuments(t *testing.T) {
	ctx := context.Background()
	a := testApp(t)

	var out bytes.Buffer
	require.NoError(t, listDocuments(ctx, &out, a))
	assert.Equal(t, "No documents found\n", out.String())

	require.NoError(t, a.catalog.Upsert(ctx, documents.DocumentInfo{
		ID: "doc-1", Filename: "acme-10k.pdf", CompanyName: "Acme", DocType: "10-K", ReportDate: "2024-12-31",
	}))

	out.Reset()
	require.NoError(t, listDocuments(ctx, &out, a))
	assert.Contains(t, out.String(), "acme-10k.pdf")
	assert.Contains(t, out.String(), "Acme")

	_, err := os.Stat(filepath.Join(filepath.Dir(a.cfg.Session.Path), "documents.db"))
	assert.NoError(t, err)
}
