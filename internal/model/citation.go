package model

// MaxCitations caps the citation set persisted with a record. The first
// entry is treated as the primary source.
const MaxCitations = 3

// Citation is one cited web source backing extracted facts. URL is the
// redirect-resolved display URL; SourceURL retains the original for the
// audit trail when resolution rewrote it.
type Citation struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	SourceURL string `json:"source_url,omitempty"`
	Excerpt   string `json:"excerpt"`

	// Fallback marks an excerpt synthesized from the extracted facts
	// because the source text was unavailable.
	Fallback bool `json:"fallback,omitempty"`
}
