package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Rrens/bloombuddy/internal/llm"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Provider struct {
	apiKey string
	model  string
}

func NewProvider(apiKey, model string) *Provider {
	return &Provider{
		apiKey: apiKey,
		model:  model,
	}
}

func (p *Provider) Name() string {
	return "gemini"
}

func (p *Provider) AvailableModels() []string {
	return []string{
		"gemini-2.5-flash",
		"gemini-1.5-flash",
		"gemini-1.5-pro",
	}
}

func (p *Provider) DefaultModel() string {
	if p.model != "" {
		return p.model
	}
	return "gemini-2.5-flash"
}

func (p *Provider) IsConfigured() bool {
	return p.apiKey != ""
}

func (p *Provider) Complete(ctx context.Context, req llm.Request, model string) (*llm.Response, error) {
	if !p.IsConfigured() {
		return nil, fmt.Errorf("gemini provider is not configured (missing API key)")
	}

	if model == "" {
		model = p.DefaultModel()
	}

	system, turns := llm.SplitSystem(req.Messages)
	if len(turns) == 0 || turns[len(turns)-1].Role != llm.RoleUser {
		return nil, fmt.Errorf("gemini: conversation must end with a user message")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	defer client.Close()

	generativeModel := client.GenerativeModel(model)
	generativeModel.SetTemperature(float32(req.Temperature))
	if req.MaxTokens > 0 {
		generativeModel.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if system != "" {
		generativeModel.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	session := generativeModel.StartChat()
	session.History = toHistory(turns[:len(turns)-1])

	start := time.Now()
	resp, err := session.SendMessage(ctx, genai.Text(turns[len(turns)-1].Content))
	latency := time.Since(start).Milliseconds()

	if err != nil {
		if code := httpStatus(err); code != 0 {
			return nil, &llm.StatusError{Provider: "gemini", StatusCode: code, Body: err.Error()}
		}
		return nil, fmt.Errorf("gemini generation error: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, llm.ErrInvalidResponse
	}

	var output strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			output.WriteString(string(text))
		}
	}

	out := &llm.Response{
		Content:   output.String(),
		Model:     model,
		LatencyMs: latency,
	}
	if resp.UsageMetadata != nil {
		out.Usage = &llm.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

// httpStatus extracts the HTTP-equivalent status of an API rejection, or 0
// for transport failures
func httpStatus(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}

	st, ok := status.FromError(err)
	if !ok {
		return 0
	}
	switch st.Code() {
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.InvalidArgument, codes.FailedPrecondition:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.Internal:
		return http.StatusInternalServerError
	}
	return 0
}

// toHistory maps prior turns onto Gemini's user/model roles
func toHistory(turns []llm.Message) []*genai.Content {
	history := make([]*genai.Content, 0, len(turns))
	for _, m := range turns {
		role := "user"
		if m.Role == llm.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	return history
}
