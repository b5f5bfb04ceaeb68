// Package static provides scripted collaborators for demos and tests. The
// extractor and evaluator return deterministic canned results so runs are
// reproducible without any external services.
package static

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/docweave/docweave/pkg/domain"
)

// Extractor returns canned extraction results. Locators registered through
// WithDocument get their scripted text; everything else gets a synthesized
// placeholder derived from the locator.
type Extractor struct {
	mu   sync.RWMutex
	docs map[string]domain.ExtractedDocument
}

// ExtractorOption configures the scripted extractor.
type ExtractorOption func(*Extractor)

// WithDocument registers a canned extraction result for a locator.
func WithDocument(locator string, doc domain.ExtractedDocument) ExtractorOption {
	return func(e *Extractor) {
		e.docs[locator] = doc
	}
}

// NewExtractor creates a scripted extractor.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{docs: make(map[string]domain.ExtractedDocument)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the scripted document for the locator, or a synthesized one.
func (e *Extractor) Extract(ctx context.Context, locator string) (domain.ExtractedDocument, error) {
	if err := ctx.Err(); err != nil {
		return domain.ExtractedDocument{}, err
	}
	if locator == "" {
		return domain.ExtractedDocument{}, fmt.Errorf("empty document locator")
	}

	e.mu.RLock()
	doc, ok := e.docs[locator]
	e.mu.RUnlock()
	if ok {
		doc.SourceURI = locator
		return doc, nil
	}

	return domain.ExtractedDocument{
		SourceURI: locator,
		Title:     titleFromLocator(locator),
		PageCount: 1,
		Text:      fmt.Sprintf("Extracted contents of %s.", locator),
	}, nil
}

func titleFromLocator(locator string) string {
	trimmed := strings.TrimRight(locator, "/")
	if i := strings.LastIndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	if trimmed == "" {
		return "Untitled document"
	}
	return trimmed
}

// Evaluator applies keyword rules to decide compliance. Documents whose text
// contains any review keyword are flagged for human review; ones containing
// a violation keyword are marked non-compliant outright.
type Evaluator struct {
	reviewKeywords    []string
	violationKeywords []string
}

// EvaluatorOption configures the scripted evaluator.
type EvaluatorOption func(*Evaluator)

// WithReviewKeywords overrides the keywords that trigger human review.
func WithReviewKeywords(keywords ...string) EvaluatorOption {
	return func(e *Evaluator) {
		e.reviewKeywords = keywords
	}
}

// WithViolationKeywords overrides the keywords that mark a document
// non-compliant.
func WithViolationKeywords(keywords ...string) EvaluatorOption {
	return func(e *Evaluator) {
		e.violationKeywords = keywords
	}
}

// NewEvaluator creates a keyword-rule evaluator with sensible defaults.
func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		reviewKeywords:    []string{"confidential", "redacted", "manual review"},
		violationKeywords: []string{"prohibited"},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate judges the document against the configured keyword rules.
func (e *Evaluator) Evaluate(ctx context.Context, doc domain.ExtractedDocument) (domain.ComplianceResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ComplianceResult{}, err
	}

	text := strings.ToLower(doc.Text)
	for _, kw := range e.violationKeywords {
		if strings.Contains(text, kw) {
			return domain.ComplianceResult{
				Compliant:   false,
				NeedsReview: true,
				Notes:       fmt.Sprintf("contains prohibited term %q", kw),
			}, nil
		}
	}
	for _, kw := range e.reviewKeywords {
		if strings.Contains(text, kw) {
			return domain.ComplianceResult{
				Compliant:   true,
				NeedsReview: true,
				Notes:       fmt.Sprintf("flagged for review: contains %q", kw),
			}, nil
		}
	}

	return domain.ComplianceResult{Compliant: true, Notes: "no issues found"}, nil
}

// Policy is a fixed DecisionPolicy: it answers every request with the same
// verdict. Used by the headless auto-approve run mode.
type Policy struct {
	approve bool
	comment string
}

// NewPolicy creates a policy that always answers with the given verdict.
func NewPolicy(approve bool, comment string) *Policy {
	return &Policy{approve: approve, comment: comment}
}

// Decide answers the request with the configured verdict.
func (p *Policy) Decide(ctx context.Context, req domain.ApprovalRequest) (domain.ApprovalDecision, error) {
	if err := ctx.Err(); err != nil {
		return domain.ApprovalDecision{}, err
	}
	return domain.ApprovalDecision{
		RequestID: req.ID,
		Approved:  p.approve,
		Comment:   p.comment,
	}, nil
}
