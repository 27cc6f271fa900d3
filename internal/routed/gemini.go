package routed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"slashsense/internal/logging"
)

// =============================================================================
// GEMINI ROUTER
// =============================================================================

// GeminiRouter classifies via the Gemini REST generateContent endpoint with
// JSON-constrained output. No retry loop: the tier budget (~150ms) leaves no
// room for backoff, and the cascade already degrades cleanly on failure.
type GeminiRouter struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

const geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// NewGeminiRouter creates a Gemini-backed router.
func NewGeminiRouter(apiKey, model string) (*GeminiRouter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini router: API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash-lite"
	}
	return &GeminiRouter{
		apiKey:  apiKey,
		model:   model,
		baseURL: geminiDefaultBaseURL,
		// Per-request deadlines come from the matcher's context; this is a
		// backstop for a forgotten bound, not the tier budget.
		client: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (r *GeminiRouter) Name() string {
	return fmt.Sprintf("gemini:%s", r.model)
}

const routerSystemPrompt = `You classify one user utterance against a catalog of slash commands.
Reply with JSON only: {"candidates":[{"id":"<command id>","score":<0..1>}]}.
Rank at most 3 catalog ids by how well the utterance expresses that command's intent.
Use an empty candidates array when nothing fits. Never invent ids.`

// Route sends the utterance and catalog, expecting the JSON reply schema
// above. Any malformed reply is an error; the matcher maps it to no result.
func (r *GeminiRouter) Route(ctx context.Context, input string, catalog []Listing) ([]Scored, error) {
	var sb strings.Builder
	sb.WriteString("Commands:\n")
	for _, l := range catalog {
		fmt.Fprintf(&sb, "- %s: %s\n", l.ID, l.Description)
	}
	fmt.Fprintf(&sb, "\nUtterance: %q\n", input)

	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: sb.String()}}},
		},
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: routerSystemPrompt}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      0,
			MaxOutputTokens:  256,
			ResponseMimeType: "application/json",
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", r.baseURL, r.model, r.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var gr geminiResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if gr.Error != nil {
		return nil, fmt.Errorf("API error: %s", gr.Error.Message)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no completion returned")
	}

	var text strings.Builder
	for _, part := range gr.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	return ParseReply(strings.TrimSpace(text.String()))
}

// ParseReply decodes the shared router reply schema. Exported so the HTTP
// router and tests use the exact same parsing path.
func ParseReply(raw string) ([]Scored, error) {
	var reply struct {
		Candidates []Scored `json:"candidates"`
	}
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		logging.RoutedDebug("malformed router reply: %.120s", raw)
		return nil, fmt.Errorf("malformed router reply: %w", err)
	}
	return reply.Candidates, nil
}

// =============================================================================
// GEMINI API TYPES
// =============================================================================

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}
