package domain

import (
	"fmt"
	"hash/fnv"
	"time"
)

// DocInput is the caller-supplied description of a document to process.
type DocInput struct {
	DocumentURI   string `json:"document_uri" mapstructure:"document_uri"`
	DocumentTitle string `json:"document_title,omitempty" mapstructure:"document_title"`
	PageCount     int    `json:"page_count,omitempty" mapstructure:"page_count"`
}

// ExtractedDocument is the extraction service's view of a document.
type ExtractedDocument struct {
	SourceURI string `json:"source_uri" mapstructure:"source_uri"`
	Title     string `json:"title,omitempty" mapstructure:"title"`
	PageCount int    `json:"page_count,omitempty" mapstructure:"page_count"`
	Text      string `json:"text" mapstructure:"text"`
}

// ComplianceResult is the evaluator's typed verdict. NeedsReview drives the
// suspend-vs-forward branch; the engine never inspects payload fields to
// decide it.
type ComplianceResult struct {
	Compliant   bool   `json:"compliant"`
	NeedsReview bool   `json:"needs_review"`
	Notes       string `json:"notes,omitempty"`
}

// Run outcome statuses recorded in ResultRecord.Status.
const (
	StatusApproved        = "approved"
	StatusAutoApproved    = "auto_approved"
	StatusRejectedByHuman = "rejected_by_human"
)

// ResultRecord is the final outcome written to the result sink. SourceURI
// plus ApprovalID form the logical key: storing the same key twice
// overwrites (sinks are idempotent on retry).
type ResultRecord struct {
	SourceURI  string    `json:"source_uri"`
	Status     string    `json:"overall_status"`
	Comment    string    `json:"comment,omitempty"`
	ApprovalID string    `json:"approval_id,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	Timestamp  time.Time `json:"timestamp_utc"`
}

// LogicalKey derives the stable storage key for this record. Retrying a
// store with the same key overwrites the previous write.
func (r ResultRecord) LogicalKey() string {
	h := fnv.New64a()
	h.Write([]byte(r.SourceURI))
	h.Write([]byte("|"))
	h.Write([]byte(r.ApprovalID))
	return fmt.Sprintf("%016x", h.Sum64())
}
