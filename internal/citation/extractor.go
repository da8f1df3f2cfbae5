// Package citation turns grounding metadata from a model response into a
// deduplicated, sanitized, capped citation set.
package citation

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/sells-group/tuition-cli/internal/model"
	"github.com/sells-group/tuition-cli/internal/sanitize"
	"github.com/sells-group/tuition-cli/pkg/gemini"
)

// minExcerptChars is the threshold below which a chunk's own excerpt is
// considered trivial and the fallback chain continues.
const minExcerptChars = 10

// unavailableSentinels are placeholder strings some sources return in
// place of real content.
var unavailableSentinels = []string{
	"content not available",
	"no information available",
	"unavailable",
	"n/a",
}

// redirectParams are query parameters redirector URLs use to embed their
// destination.
var redirectParams = []string{"q", "url", "u", "target", "dest"}

// Extractor builds citations from grounding metadata.
type Extractor struct {
	// TruncationChars bounds the aggregate excerpt length across the
	// returned set. Zero disables the bound.
	TruncationChars int
}

// Extract converts the response's grounding chunks into at most
// model.MaxCitations citations, in chunk order, deduplicated by resolved
// URL. facts feeds the synthesized fallback excerpt for chunks with no
// usable source text.
func (e Extractor) Extract(resp *gemini.GenerateResponse, facts *model.ExtractedFacts) []model.Citation {
	if resp == nil || len(resp.Chunks) == 0 {
		return nil
	}

	fallback := FallbackSummary(facts)

	type entry struct {
		citation model.Citation
		order    int
	}
	byURL := make(map[string]*entry)
	var order []string

	for i, chunk := range resp.Chunks {
		resolved, original := resolveURL(chunk.URI)
		if resolved == "" {
			continue
		}

		excerpt, isFallback := buildExcerpt(chunk, i, resp.Supports, fallback)

		c := model.Citation{
			Title:     strings.TrimSpace(chunk.Title),
			URL:       resolved,
			SourceURL: original,
			Excerpt:   excerpt,
			Fallback:  isFallback,
		}

		existing, ok := byURL[resolved]
		if !ok {
			byURL[resolved] = &entry{citation: c, order: i}
			order = append(order, resolved)
			continue
		}
		// Duplicate URL: keep whichever has the longer real excerpt.
		if betterExcerpt(c, existing.citation) {
			c.SourceURL = firstNonEmpty(existing.citation.SourceURL, c.SourceURL)
			existing.citation = c
		}
	}

	var citations []model.Citation
	for _, u := range order {
		citations = append(citations, byURL[u].citation)
		if len(citations) == model.MaxCitations {
			break
		}
	}

	return e.truncateExcerpts(citations)
}

// truncateExcerpts enforces the aggregate excerpt character budget,
// marking the last kept excerpt when content was cut.
func (e Extractor) truncateExcerpts(citations []model.Citation) []model.Citation {
	if e.TruncationChars <= 0 {
		return citations
	}
	remaining := e.TruncationChars
	for i := range citations {
		if remaining <= 0 {
			citations[i].Excerpt = ""
			continue
		}
		if len(citations[i].Excerpt) <= remaining {
			remaining -= len(citations[i].Excerpt)
			continue
		}
		citations[i].Excerpt = sanitize.TruncateWithMarker(citations[i].Excerpt, remaining, len(citations))
		remaining = 0
	}
	return citations
}

// buildExcerpt applies the fallback chain: supporting-segment text for
// this chunk index, then the chunk's own excerpt if non-trivial, then the
// synthesized fact summary.
func buildExcerpt(chunk gemini.GroundingChunk, idx int, supports []gemini.GroundingSupport, fallback string) (string, bool) {
	var segments []string
	for _, sup := range supports {
		for _, ci := range sup.ChunkIndices {
			if ci == idx && strings.TrimSpace(sup.Text) != "" {
				segments = append(segments, strings.TrimSpace(sup.Text))
				break
			}
		}
	}
	if len(segments) > 0 {
		return sanitize.StripControl(strings.Join(segments, " ")), false
	}

	own := strings.TrimSpace(chunk.Excerpt)
	if len(own) > minExcerptChars && !isSentinel(own) {
		return sanitize.StripControl(own), false
	}

	return fallback, true
}

func isSentinel(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	for _, sentinel := range unavailableSentinels {
		if lower == sentinel {
			return true
		}
	}
	return false
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// betterExcerpt reports whether a should replace b for the same URL.
func betterExcerpt(a, b model.Citation) bool {
	if a.Fallback != b.Fallback {
		return !a.Fallback
	}
	return len(a.Excerpt) > len(b.Excerpt)
}

// resolveURL unwraps redirector URLs that embed their destination as a
// query parameter, returning (display URL, original URL). The original is
// empty when no rewrite happened.
func resolveURL(raw string) (resolved, original string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return raw, ""
	}

	query := parsed.Query()
	for _, param := range redirectParams {
		dest := query.Get(param)
		if dest == "" {
			continue
		}
		destURL, err := url.Parse(dest)
		if err != nil || destURL.Host == "" {
			continue
		}
		if destURL.Scheme == "http" || destURL.Scheme == "https" {
			return dest, raw
		}
	}
	return raw, ""
}

// FallbackSummary synthesizes a one-line excerpt from the extracted facts
// for sources whose text could not be retrieved. Never returns "".
func FallbackSummary(facts *model.ExtractedFacts) string {
	if facts == nil {
		return "Source content unavailable; see cited URL."
	}

	var parts []string
	if facts.OfficialName != nil {
		parts = append(parts, "Program: "+*facts.OfficialName)
	}
	if facts.TuitionAmount != nil {
		parts = append(parts, "Tuition: "+*facts.TuitionAmount)
	}
	if facts.PerUnitCost != nil {
		parts = append(parts, "Per credit: "+*facts.PerUnitCost)
	}
	if facts.CreditCount != nil {
		parts = append(parts, fmt.Sprintf("Credits: %g", *facts.CreditCount))
	}
	if facts.ProgramLength != nil {
		parts = append(parts, "Length: "+*facts.ProgramLength)
	}
	if len(parts) == 0 {
		return "Source content unavailable; see cited URL."
	}
	return strings.Join(parts, ", ")
}
