package llm_test

import (
	"context"
	"testing"

	"github.com/Rrens/bloombuddy/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name       string
	configured bool
}

func (s stubProvider) Name() string              { return s.name }
func (s stubProvider) AvailableModels() []string { return []string{s.name + "-1"} }
func (s stubProvider) DefaultModel() string      { return s.name + "-1" }
func (s stubProvider) IsConfigured() bool        { return s.configured }

func (s stubProvider) Complete(context.Context, llm.Request, string) (*llm.Response, error) {
	return &llm.Response{Content: s.name}, nil
}

func TestRouter_ResolvePreferred(t *testing.T) {
	r := llm.NewRouter("openrouter")
	r.RegisterProvider(stubProvider{name: "openrouter", configured: true})
	r.RegisterProvider(stubProvider{name: "ollama", configured: true})

	p, err := r.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "openrouter", p.Name())

	p, err = r.Resolve("ollama")
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())
}

func TestRouter_FallsBackToConfigured(t *testing.T) {
	r := llm.NewRouter("openrouter")
	r.RegisterProvider(stubProvider{name: "openrouter"})
	r.RegisterProvider(stubProvider{name: "gemini", configured: true})

	p, err := r.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "gemini", p.Name())
	assert.Equal(t, []string{"gemini"}, r.Configured())
}

func TestRouter_NothingConfigured(t *testing.T) {
	r := llm.NewRouter("openrouter")

	_, err := r.Resolve("")
	assert.ErrorIs(t, err, llm.ErrUnknownProvider)

	r.RegisterProvider(stubProvider{name: "openrouter"})
	_, err = r.Resolve("")
	assert.ErrorIs(t, err, llm.ErrProviderNotConfigured)
}

func TestRouter_Providers(t *testing.T) {
	r := llm.NewRouter("ollama")
	r.RegisterProvider(stubProvider{name: "ollama", configured: true})
	r.RegisterProvider(stubProvider{name: "anthropic"})

	infos := r.Providers()
	require.Len(t, infos, 2)
	assert.Equal(t, "anthropic", infos[0].Name)
	assert.False(t, infos[0].Configured)
	assert.True(t, infos[1].Preferred)
	assert.Equal(t, []string{"ollama-1"}, infos[1].Models)
}
