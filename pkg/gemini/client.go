// Package gemini is a minimal client for the Google Generative Language
// API with web-search grounding enabled, covering only the operations the
// extraction pipeline needs.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-2.5-flash"
)

// Client performs grounded generation against the Gemini API.
type Client interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// GenerateRequest describes one generation call.
type GenerateRequest struct {
	Prompt string
	System string
	// Grounding enables the google_search tool so the model can issue web
	// searches and return citation metadata.
	Grounding   bool
	MaxTokens   int
	Temperature *float64
}

// GroundingChunk is one cited web source returned by the search tool.
// Excerpt is populated only for retrieved-context chunks; web chunks
// usually carry none.
type GroundingChunk struct {
	URI     string
	Title   string
	Excerpt string
}

// GroundingSupport ties a span of response text to the chunks backing it.
type GroundingSupport struct {
	Text         string
	ChunkIndices []int
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens    int
	CandidateTokens int
}

// GenerateResponse is the parsed result of one generation call.
type GenerateResponse struct {
	Text     string
	Chunks   []GroundingChunk
	Supports []GroundingSupport
	Usage    Usage
}

// APIError is a non-2xx reply from the API, preserved with its body so
// callers can classify it for retry.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *httpClient) {
		c.model = model
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// NewClient creates a Gemini API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		http: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Wire types for generateContent.

type apiRequest struct {
	Contents          []apiContent         `json:"contents"`
	SystemInstruction *apiContent          `json:"systemInstruction,omitempty"`
	Tools             []apiTool            `json:"tools,omitempty"`
	GenerationConfig  *apiGenerationConfig `json:"generationConfig,omitempty"`
}

type apiContent struct {
	Role  string    `json:"role,omitempty"`
	Parts []apiPart `json:"parts"`
}

type apiPart struct {
	Text string `json:"text"`
}

type apiTool struct {
	GoogleSearch *struct{} `json:"google_search,omitempty"`
}

type apiGenerationConfig struct {
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
}

type apiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []apiPart `json:"parts"`
		} `json:"content"`
		GroundingMetadata *struct {
			GroundingChunks []struct {
				Web struct {
					URI   string `json:"uri"`
					Title string `json:"title"`
				} `json:"web"`
				RetrievedContext struct {
					URI   string `json:"uri"`
					Title string `json:"title"`
					Text  string `json:"text"`
				} `json:"retrievedContext"`
			} `json:"groundingChunks"`
			GroundingSupports []struct {
				Segment struct {
					Text string `json:"text"`
				} `json:"segment"`
				GroundingChunkIndices []int `json:"groundingChunkIndices"`
			} `json:"groundingSupports"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func (c *httpClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	apiReq := apiRequest{
		Contents: []apiContent{
			{Role: "user", Parts: []apiPart{{Text: req.Prompt}}},
		},
	}
	if req.System != "" {
		apiReq.SystemInstruction = &apiContent{Parts: []apiPart{{Text: req.System}}}
	}
	if req.Grounding {
		apiReq.Tools = []apiTool{{GoogleSearch: &struct{}{}}}
	}
	if req.MaxTokens > 0 || req.Temperature != nil {
		apiReq.GenerationConfig = &apiGenerationConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
		}
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: marshal request")
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var parsed apiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, eris.Wrap(err, "gemini: unmarshal response")
	}

	out := &GenerateResponse{
		Usage: Usage{
			PromptTokens:    parsed.UsageMetadata.PromptTokenCount,
			CandidateTokens: parsed.UsageMetadata.CandidatesTokenCount,
		},
	}
	if len(parsed.Candidates) == 0 {
		return out, nil
	}

	cand := parsed.Candidates[0]
	var text bytes.Buffer
	for _, p := range cand.Content.Parts {
		text.WriteString(p.Text)
	}
	out.Text = text.String()

	if gm := cand.GroundingMetadata; gm != nil {
		for _, ch := range gm.GroundingChunks {
			chunk := GroundingChunk{
				URI:   ch.Web.URI,
				Title: ch.Web.Title,
			}
			if chunk.URI == "" {
				chunk.URI = ch.RetrievedContext.URI
				chunk.Title = ch.RetrievedContext.Title
				chunk.Excerpt = ch.RetrievedContext.Text
			}
			out.Chunks = append(out.Chunks, chunk)
		}
		for _, sup := range gm.GroundingSupports {
			out.Supports = append(out.Supports, GroundingSupport{
				Text:         sup.Segment.Text,
				ChunkIndices: sup.GroundingChunkIndices,
			})
		}
	}

	return out, nil
}
