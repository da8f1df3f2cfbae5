package citation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tuition-cli/internal/model"
	"github.com/sells-group/tuition-cli/pkg/gemini"
)

func strPtr(s string) *string { return &s }

func sampleFacts() *model.ExtractedFacts {
	credits := 63.0
	return &model.ExtractedFacts{
		OfficialName:  strPtr("Part-Time MBA"),
		TuitionAmount: strPtr("$76,000"),
		PerUnitCost:   strPtr("$2,541"),
		CreditCount:   &credits,
		Status:        model.StatusSuccess,
	}
}

func TestExtract_CapAndUniqueness(t *testing.T) {
	resp := &gemini.GenerateResponse{
		Chunks: []gemini.GroundingChunk{
			{URI: "https://example.edu/tuition", Title: "Tuition"},
			{URI: "https://example.edu/mba", Title: "MBA"},
			{URI: "https://example.edu/tuition", Title: "Tuition dup"},
			{URI: "https://example.edu/fees", Title: "Fees"},
			{URI: "https://example.edu/apply", Title: "Apply"},
		},
	}

	citations := Extractor{}.Extract(resp, sampleFacts())
	require.LessOrEqual(t, len(citations), model.MaxCitations)

	seen := make(map[string]bool)
	for _, c := range citations {
		assert.False(t, seen[c.URL], "duplicate URL %s", c.URL)
		seen[c.URL] = true
	}

	// Chunk order preserved; first is primary.
	assert.Equal(t, "https://example.edu/tuition", citations[0].URL)
}

func TestExtract_ExcerptFallbackChain(t *testing.T) {
	resp := &gemini.GenerateResponse{
		Chunks: []gemini.GroundingChunk{
			{URI: "https://example.edu/a", Title: "A"},                                  // support segment
			{URI: "https://example.edu/b", Title: "B", Excerpt: "Tuition for the part-time program is $76,000."}, // own excerpt
			{URI: "https://example.edu/c", Title: "C", Excerpt: "N/A"},                  // sentinel -> fallback
		},
		Supports: []gemini.GroundingSupport{
			{Text: "The program costs $2,541 per credit.", ChunkIndices: []int{0}},
		},
	}

	citations := Extractor{}.Extract(resp, sampleFacts())
	require.Len(t, citations, 3)

	assert.Equal(t, "The program costs $2,541 per credit.", citations[0].Excerpt)
	assert.False(t, citations[0].Fallback)

	assert.Equal(t, "Tuition for the part-time program is $76,000.", citations[1].Excerpt)
	assert.False(t, citations[1].Fallback)

	assert.True(t, citations[2].Fallback)
	assert.Contains(t, citations[2].Excerpt, "Tuition: $76,000")
	assert.NotEmpty(t, citations[2].Excerpt)
}

func TestExtract_DuplicateKeepsLongerExcerpt(t *testing.T) {
	resp := &gemini.GenerateResponse{
		Chunks: []gemini.GroundingChunk{
			{URI: "https://example.edu/tuition", Title: "Tuition", Excerpt: "Short excerpt."},
			{URI: "https://example.edu/tuition", Title: "Tuition", Excerpt: "A considerably longer excerpt with the actual tuition figure of $76,000."},
		},
	}

	citations := Extractor{}.Extract(resp, sampleFacts())
	require.Len(t, citations, 1)
	assert.Contains(t, citations[0].Excerpt, "$76,000")
}

func TestExtract_DuplicateKeepsSourceURL(t *testing.T) {
	resp := &gemini.GenerateResponse{
		Chunks: []gemini.GroundingChunk{
			{URI: "https://www.google.com/url?q=https%3A%2F%2Fexample.edu%2Ftuition", Title: "Tuition", Excerpt: "Short excerpt."},
			{URI: "https://example.edu/tuition", Title: "Tuition", Excerpt: "A considerably longer excerpt with the actual tuition figure of $76,000."},
		},
	}

	citations := Extractor{}.Extract(resp, sampleFacts())
	require.Len(t, citations, 1)
	assert.Contains(t, citations[0].Excerpt, "$76,000")
	// The redirector origin survives even though the direct chunk's
	// excerpt won.
	assert.Contains(t, citations[0].SourceURL, "google.com/url")
}

func TestExtract_RedirectorResolved(t *testing.T) {
	resp := &gemini.GenerateResponse{
		Chunks: []gemini.GroundingChunk{
			{URI: "https://www.google.com/url?q=https%3A%2F%2Fexample.edu%2Ftuition&sa=D", Title: "Tuition"},
		},
	}

	citations := Extractor{}.Extract(resp, sampleFacts())
	require.Len(t, citations, 1)
	assert.Equal(t, "https://example.edu/tuition", citations[0].URL)
	assert.Contains(t, citations[0].SourceURL, "google.com/url")
}

func TestExtract_AggregateTruncation(t *testing.T) {
	long := strings.Repeat("tuition details ", 100)
	resp := &gemini.GenerateResponse{
		Chunks: []gemini.GroundingChunk{
			{URI: "https://example.edu/a", Title: "A", Excerpt: long},
			{URI: "https://example.edu/b", Title: "B", Excerpt: long},
		},
	}

	citations := Extractor{TruncationChars: 500}.Extract(resp, sampleFacts())
	require.Len(t, citations, 2)

	total := len(citations[0].Excerpt) + len(citations[1].Excerpt)
	assert.LessOrEqual(t, total, 500)
	assert.True(t, strings.Contains(citations[0].Excerpt, "[truncated,") ||
		strings.Contains(citations[1].Excerpt, "[truncated,"))
}

func TestExtract_EmptyChunks(t *testing.T) {
	assert.Nil(t, Extractor{}.Extract(&gemini.GenerateResponse{}, sampleFacts()))
	assert.Nil(t, Extractor{}.Extract(nil, sampleFacts()))
}

func TestFallbackSummary_NeverEmpty(t *testing.T) {
	assert.NotEmpty(t, FallbackSummary(nil))
	assert.NotEmpty(t, FallbackSummary(&model.ExtractedFacts{Status: model.StatusNotFound}))
	assert.Contains(t, FallbackSummary(sampleFacts()), "Credits: 63")
}

func TestResolveURL(t *testing.T) {
	resolved, original := resolveURL("https://redirect.example.com/r?url=https://example.edu/mba")
	assert.Equal(t, "https://example.edu/mba", resolved)
	assert.NotEmpty(t, original)

	resolved, original = resolveURL("https://example.edu/tuition?tab=fees")
	assert.Equal(t, "https://example.edu/tuition?tab=fees", resolved)
	assert.Empty(t, original)
}
