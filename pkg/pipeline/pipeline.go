// Package pipeline assembles the document-review workflow graph:
//
//	prompt -> extract -> extract_result -> compliance -> compliance_result
//	       -> coordinator <-> review_gate (human loop) -> finalize
//
// Extraction, compliance evaluation and result storage are external
// collaborators injected through the ports interfaces; the steps here only
// orchestrate them.
package pipeline

import (
	"github.com/docweave/docweave/pkg/domain"
	"github.com/docweave/docweave/pkg/graph"
	"github.com/docweave/docweave/pkg/ports"
)

// Node IDs of the review workflow.
const (
	NodePrompt           = "prompt"
	NodeExtract          = "extract"
	NodeExtractResult    = "extract_result"
	NodeCompliance       = "compliance"
	NodeComplianceResult = "compliance_result"
	NodeCoordinator      = "coordinator"
	NodeReviewGate       = "review_gate"
	NodeFinalize         = "finalize"
)

// reviewPayload travels from the compliance step to the coordinator.
type reviewPayload struct {
	Doc    domain.ExtractedDocument
	Result domain.ComplianceResult
}

// Deps are the external collaborators of the pipeline.
type Deps struct {
	Extractor ports.Extractor
	Evaluator ports.ComplianceEvaluator
	Sink      ports.ResultSink
}

// Build constructs the review workflow graph. The coordinator/review_gate
// cycle is intentional recursion bounded by the engine's iteration limit,
// not a configuration mistake.
func Build(deps Deps) (*graph.Graph, error) {
	p := &steps{deps: deps}

	nodes := []domain.Node{
		{ID: NodePrompt, Step: p.prompt},
		{ID: NodeExtract, Step: p.extract},
		{ID: NodeExtractResult, Step: p.extractResult},
		{ID: NodeCompliance, Step: p.compliance},
		{ID: NodeComplianceResult, Step: p.complianceResult},
		{ID: NodeCoordinator, Step: p.coordinate},
		{ID: NodeReviewGate, Step: p.reviewGate},
		{ID: NodeFinalize, Step: p.finalize, Terminal: true},
	}

	edges := []domain.Edge{
		{From: NodePrompt, To: NodeExtract},
		{From: NodeExtract, To: NodeExtractResult},
		{From: NodeExtractResult, To: NodeCompliance},
		{From: NodeCompliance, To: NodeComplianceResult},
		{From: NodeComplianceResult, To: NodeCoordinator},
		{From: NodeCoordinator, To: NodeReviewGate},
		{From: NodeReviewGate, To: NodeCoordinator},
		{From: NodeCoordinator, To: NodeFinalize},
	}

	return graph.Build(nodes, edges, NodePrompt)
}
