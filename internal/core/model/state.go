package model

import (
	"fmt"
	"strings"
	"unicode"
)

// Phase names a step of the workflow state machine.
type Phase string

const (
	PhaseInit       Phase = "init"
	PhaseGather     Phase = "gather"
	PhaseExtract    Phase = "extract"
	PhaseCritique   Phase = "critique"
	PhaseScore      Phase = "score"
	PhaseSynthesize Phase = "synthesize"
	PhaseComplete   Phase = "complete"
	PhaseFailed     Phase = "failed"
)

func (p Phase) Valid() bool {
	switch p {
	case PhaseInit, PhaseGather, PhaseExtract, PhaseCritique,
		PhaseScore, PhaseSynthesize, PhaseComplete, PhaseFailed:
		return true
	}
	return false
}

// Terminal reports whether the machine stops in this phase.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed
}

// Status is the user-visible session outcome.
type Status string

const (
	StatusRunning               Status = "running"
	StatusCompleted             Status = "completed"
	StatusCompletedWithWarnings Status = "completed_with_warnings"
	StatusFailed                Status = "failed"
)

// Battleground is a resolved conflict surfaced in the final report.
type Battleground struct {
	Topic              string   `json:"topic"`
	Claims             []string `json:"claims"`
	DisagreementReason string   `json:"disagreement_reason"`
	Verdict            string   `json:"verdict"`
	VerdictConfidence  float64  `json:"verdict_confidence"`
}

// WorkflowState is the full session state. It is created once on a valid
// topic submission, mutated exactly once per phase by that phase's handler,
// and checkpointed between phases.
type WorkflowState struct {
	SessionID       string          `json:"session_id"`
	Topic           string          `json:"topic"`
	Phase           Phase           `json:"phase"`
	Iteration       int             `json:"iteration"`
	MaxIterations   int             `json:"max_iterations"`
	Documents       []Document      `json:"documents"`
	Graph           KnowledgeGraph  `json:"knowledge_graph"`
	PendingQueries  []string        `json:"pending_queries"`
	ExecutedQueries map[string]bool `json:"executed_queries"`

	// ExtractedDocs counts documents already handed to extraction, so a
	// resumed session does not re-extract earlier batches.
	ExtractedDocs int `json:"extracted_docs"`

	Report        string         `json:"report,omitempty"`
	Consensus     []string       `json:"consensus,omitempty"`
	Battlegrounds []Battleground `json:"battlegrounds,omitempty"`

	Status        Status   `json:"status"`
	StatusMessage string   `json:"status_message,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

// ValidateTopic rejects empty, whitespace-only and punctuation-only topics.
func ValidateTopic(topic string) error {
	if strings.TrimSpace(topic) == "" {
		return fmt.Errorf("%w: topic is empty", ErrInvalidInput)
	}
	for _, r := range topic {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return nil
		}
	}
	return fmt.Errorf("%w: topic has no alphanumeric content", ErrInvalidInput)
}

// Validate checks the invariants a checkpoint must satisfy before a session
// resumes from it.
func (s WorkflowState) Validate() error {
	if err := ValidateTopic(s.Topic); err != nil {
		return err
	}
	if s.SessionID == "" {
		return fmt.Errorf("%w: missing session id", ErrStateCorruption)
	}
	if !s.Phase.Valid() {
		return fmt.Errorf("%w: unknown phase %q", ErrStateCorruption, s.Phase)
	}
	if s.Iteration < 0 {
		return fmt.Errorf("%w: negative iteration %d", ErrStateCorruption, s.Iteration)
	}
	if s.MaxIterations < 1 {
		return fmt.Errorf("%w: max iterations %d", ErrStateCorruption, s.MaxIterations)
	}
	if s.ExtractedDocs < 0 || s.ExtractedDocs > len(s.Documents) {
		return fmt.Errorf("%w: extracted document marker %d out of range", ErrStateCorruption, s.ExtractedDocs)
	}
	if err := s.Graph.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrStateCorruption, err)
	}
	return nil
}

// MarkExecuted records queries as issued. Recording happens together with
// dispatch so an in-flight query is never re-issued.
func (s *WorkflowState) MarkExecuted(queries []string) {
	if s.ExecutedQueries == nil {
		s.ExecutedQueries = make(map[string]bool, len(queries))
	}
	for _, q := range queries {
		s.ExecutedQueries[q] = true
	}
}

func (s WorkflowState) Executed(query string) bool {
	return s.ExecutedQueries[query]
}

func (s *WorkflowState) AddWarning(msg string) {
	s.Warnings = append(s.Warnings, msg)
}

// Clone returns a deep copy, used for last-known-good snapshots.
func (s WorkflowState) Clone() WorkflowState {
	out := s
	out.Documents = append([]Document(nil), s.Documents...)
	out.Graph = s.Graph.Clone()
	out.PendingQueries = append([]string(nil), s.PendingQueries...)
	out.Consensus = append([]string(nil), s.Consensus...)
	out.Battlegrounds = append([]Battleground(nil), s.Battlegrounds...)
	out.Warnings = append([]string(nil), s.Warnings...)
	if s.ExecutedQueries != nil {
		out.ExecutedQueries = make(map[string]bool, len(s.ExecutedQueries))
		for q, v := range s.ExecutedQueries {
			out.ExecutedQueries[q] = v
		}
	}
	return out
}
