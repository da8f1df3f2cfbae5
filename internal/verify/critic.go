package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tuition-cli/internal/model"
	"github.com/sells-group/tuition-cli/internal/resilience"
	"github.com/sells-group/tuition-cli/pkg/anthropic"
)

const critiqueSystemText = "You are a meticulous fact checker. Judge only whether the cited source text supports the stated facts. Reply with a valid JSON object and nothing else."

const critiquePrompt = `Below are tuition facts extracted for a university program, followed by excerpts from the cited sources.

School: %s
Program: %s

Extracted facts:
%s

Cited source excerpts:
%s

Do the cited excerpts actually support the extracted facts, in particular the tuition figures? Reply with a JSON object:
{"supported": <true | false>, "notes": "<one or two sentences explaining your judgment>"}`

// Critique is the structured outcome of the AI review.
type Critique struct {
	Supported bool   `json:"supported"`
	Notes     string `json:"notes"`
}

// Critic asks the review model whether cited text supports the facts.
type Critic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	retry     resilience.RetryConfig
}

// NewCritic creates a critic using the given review model.
func NewCritic(client anthropic.Client, reviewModel string, retry resilience.RetryConfig) *Critic {
	return &Critic{
		client:    client,
		model:     reviewModel,
		maxTokens: 1024,
		retry:     retry,
	}
}

// Review sends the facts and citation excerpts for judgment.
func (c *Critic) Review(ctx context.Context, facts *model.ExtractedFacts, citations []model.Citation, school, program string) (*Critique, model.TokenUsage, error) {
	factsJSON, err := json.MarshalIndent(facts, "", "  ")
	if err != nil {
		return nil, model.TokenUsage{}, eris.Wrap(err, "verify: marshal facts")
	}

	var excerpts strings.Builder
	for i, cit := range citations {
		fmt.Fprintf(&excerpts, "[%d] %s (%s)\n%s\n\n", i+1, cit.Title, cit.URL, cit.Excerpt)
	}
	if excerpts.Len() == 0 {
		excerpts.WriteString("(no cited sources)")
	}

	var usage model.TokenUsage
	critique, err := resilience.Execute(ctx, c.retry, "verification critique", func(ctx context.Context) (*Critique, error) {
		resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     c.model,
			MaxTokens: c.maxTokens,
			System:    critiqueSystemText,
			Messages: []anthropic.Message{{
				Role:    "user",
				Content: fmt.Sprintf(critiquePrompt, school, program, factsJSON, excerpts.String()),
			}},
		})
		if err != nil {
			return nil, err
		}
		usage.Add(model.TokenUsage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		})
		return parseCritique(resp.Text)
	})
	return critique, usage, err
}

// parseCritique pulls the JSON verdict out of the reply, tolerating
// surrounding prose or code fences.
func parseCritique(text string) (*Critique, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, resilience.NewTransientError(
			eris.New("verify: no JSON object in critique reply"), resilience.FailureInternal)
	}

	var c Critique
	if err := json.Unmarshal([]byte(text[start:end+1]), &c); err != nil {
		return nil, resilience.NewTransientError(
			eris.Wrap(err, "verify: parse critique reply"), resilience.FailureInternal)
	}
	return &c, nil
}
