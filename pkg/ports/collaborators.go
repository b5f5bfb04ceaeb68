package ports

import (
	"context"

	"github.com/docweave/docweave/pkg/domain"
)

// Extractor turns a document locator into extracted text. Latency and
// availability failures surface as errors and abort the run; retry policy,
// if any, belongs to the implementation.
type Extractor interface {
	Extract(ctx context.Context, locator string) (domain.ExtractedDocument, error)
}

// ComplianceEvaluator judges an extracted document. The typed result drives
// the suspend-vs-forward branch in the review coordinator.
type ComplianceEvaluator interface {
	Evaluate(ctx context.Context, doc domain.ExtractedDocument) (domain.ComplianceResult, error)
}

// ResultSink persists the final outcome of a run and returns a locator for
// the stored record. Store is idempotent per logical key: writing the same
// key again overwrites.
type ResultSink interface {
	Store(ctx context.Context, rec domain.ResultRecord) (string, error)
}

// DecisionPolicy answers approval requests without a human. Used by the
// headless run mode and by tests.
type DecisionPolicy interface {
	Decide(ctx context.Context, req domain.ApprovalRequest) (domain.ApprovalDecision, error)
}
