package model

// CredibilityScore is the scored provenance of one document.
type CredibilityScore struct {
	SourceURL          string  `json:"source_url"`
	DomainAuthority    float64 `json:"domain_authority"`
	CitationIndicators float64 `json:"citation_indicators"`
	Recency            float64 `json:"recency"`
	Overall            float64 `json:"overall_score"`
}
