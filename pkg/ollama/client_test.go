package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tagsServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTags(t *testing.T) {
	ctx := context.Background()

	t.Run("should decode installed models", func(t *testing.T) {
		srv := tagsServer(t, http.StatusOK, `{"models":[{"name":"qwen3:latest","size":42,"details":{"family":"qwen3","parameter_size":"8B"}}]}`)
		tags, err := NewClient(srv.URL + "/").Tags(ctx)
		require.NoError(t, err)
		require.Len(t, tags.Models, 1)
		assert.Equal(t, "qwen3:latest", tags.Models[0].Name)
		assert.Equal(t, "8B", tags.Models[0].Details.ParameterSize)
	})

	t.Run("should fail on a bad status", func(t *testing.T) {
		srv := tagsServer(t, http.StatusInternalServerError, "")
		_, err := NewClient(srv.URL).Tags(ctx)
		assert.ErrorContains(t, err, "status: 500")
	})

	t.Run("should fail on a bad body", func(t *testing.T) {
		srv := tagsServer(t, http.StatusOK, "nope")
		_, err := NewClient(srv.URL).Tags(ctx)
		assert.ErrorContains(t, err, "decode")
	})
}

func TestCheckHealth(t *testing.T) {
	ctx := context.Background()

	t.Run("should report an unreachable server without failing", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		health := NewClient(url).CheckHealth(ctx)
		assert.False(t, health.Available)
		assert.Error(t, health.Error)
		assert.Empty(t, health.Models)
	})

	t.Run("should list models of a healthy server", func(t *testing.T) {
		srv := tagsServer(t, http.StatusOK, `{"models":[{"name":"llama3.2:latest"},{"name":"nomic-embed-text:v1.5"}]}`)
		health := NewClient(srv.URL).CheckHealth(ctx)
		require.True(t, health.Available)
		assert.True(t, health.HasModel("llama3.2"))
		assert.True(t, health.HasModel("nomic-embed-text:v1.5"))
		assert.False(t, health.HasModel("nomic-embed-text"))
	})
}

func TestCheckModel(t *testing.T) {
	ctx := context.Background()
	srv := tagsServer(t, http.StatusOK, `{"models":[{"name":"qwen3:latest"}]}`)
	c := NewClient(srv.URL)

	assert.NoError(t, c.CheckModel(ctx, "qwen3", time.Second))
	assert.ErrorContains(t, c.CheckModel(ctx, "mistral", time.Second), "ollama pull mistral")

	down := httptest.NewServer(http.NotFoundHandler())
	down.Close()
	assert.ErrorContains(t, NewClient(down.URL).CheckModel(ctx, "qwen3", time.Second), "cannot reach Ollama")
}
