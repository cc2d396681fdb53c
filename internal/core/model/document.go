package model

import (
	"fmt"
	"strings"
	"time"
)

// Document is a raw source retrieved by the search layer. It is immutable
// once created; the graph store owns it after ingestion.
type Document struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Text        string    `json:"text"`
	Domain      string    `json:"domain"`
	RetrievedAt time.Time `json:"retrieved_at"`
	QueryUsed   string    `json:"query_used"`
}

func (d Document) Validate() error {
	if strings.TrimSpace(d.URL) == "" {
		return fmt.Errorf("%w: document url is empty", ErrInvalidInput)
	}
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: document title is empty", ErrInvalidInput)
	}
	if strings.TrimSpace(d.Text) == "" {
		return fmt.Errorf("%w: document text is empty", ErrInvalidInput)
	}
	if strings.TrimSpace(d.Domain) == "" {
		return fmt.Errorf("%w: document domain is empty", ErrInvalidInput)
	}
	return nil
}

// Age reports how old the document is relative to the given reference time.
func (d Document) Age(now time.Time) time.Duration {
	return now.Sub(d.RetrievedAt)
}
