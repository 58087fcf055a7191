package ollama_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Rrens/bloombuddy/internal/llm"
	"github.com/Rrens/bloombuddy/internal/llm/ollama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		_, _ = w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"Breathe in."},"done":true,"prompt_eval_count":12,"eval_count":3}`))
	}))
	defer srv.Close()

	resp, err := ollama.NewProvider(srv.URL+"/", "").Complete(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "help me calm down"}},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "Breathe in.", resp.Content)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestComplete_MissingMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"done":true}`))
	}))
	defer srv.Close()

	_, err := ollama.NewProvider(srv.URL, "").Complete(context.Background(), llm.Request{}, "")
	assert.ErrorIs(t, err, llm.ErrInvalidResponse)
}
