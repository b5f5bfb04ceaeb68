package pipeline

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/docweave/docweave/pkg/domain"
)

// previewLimit caps the approval-request preview text.
const previewLimit = 240

type steps struct {
	deps Deps
}

// prompt normalizes the run input into a DocInput. Accepts either a plain
// locator string or a full DocInput.
func (s *steps) prompt(ctx context.Context, msg domain.Message, emit domain.EmitFunc) (domain.StepResult, error) {
	switch v := msg.Payload.(type) {
	case string:
		return domain.Broadcast(domain.DocInput{DocumentURI: v}), nil
	case domain.DocInput:
		return domain.Broadcast(v), nil
	case *domain.DocInput:
		return domain.Broadcast(*v), nil
	}

	var doc domain.DocInput
	if err := msg.Decode(&doc); err != nil || doc.DocumentURI == "" {
		return domain.StepResult{}, fmt.Errorf("unsupported input payload %T", msg.Payload)
	}
	return domain.Broadcast(doc), nil
}

func (s *steps) extract(ctx context.Context, msg domain.Message, emit domain.EmitFunc) (domain.StepResult, error) {
	doc, ok := msg.Payload.(domain.DocInput)
	if !ok {
		return domain.StepResult{}, fmt.Errorf("extract expects DocInput, got %T", msg.Payload)
	}

	emit(domain.ProgressEvent{Phase: "extraction", Status: "running"})

	extracted, err := s.deps.Extractor.Extract(ctx, doc.DocumentURI)
	if err != nil {
		return domain.StepResult{}, fmt.Errorf("extraction: %w", err)
	}
	if extracted.Title == "" {
		extracted.Title = doc.DocumentTitle
	}
	return domain.Broadcast(extracted), nil
}

// extractResult closes the extraction phase. The running event is emitted
// at phase entry in extract, so only completion is reported here.
func (s *steps) extractResult(ctx context.Context, msg domain.Message, emit domain.EmitFunc) (domain.StepResult, error) {
	emit(domain.ProgressEvent{Phase: "extraction", Status: "completed"})
	return domain.Broadcast(msg.Payload), nil
}

func (s *steps) compliance(ctx context.Context, msg domain.Message, emit domain.EmitFunc) (domain.StepResult, error) {
	doc, ok := msg.Payload.(domain.ExtractedDocument)
	if !ok {
		return domain.StepResult{}, fmt.Errorf("compliance expects ExtractedDocument, got %T", msg.Payload)
	}

	emit(domain.ProgressEvent{Phase: "compliance", Status: "running"})

	result, err := s.deps.Evaluator.Evaluate(ctx, doc)
	if err != nil {
		return domain.StepResult{}, fmt.Errorf("compliance evaluation: %w", err)
	}
	return domain.Broadcast(reviewPayload{Doc: doc, Result: result}), nil
}

func (s *steps) complianceResult(ctx context.Context, msg domain.Message, emit domain.EmitFunc) (domain.StepResult, error) {
	emit(domain.ProgressEvent{Phase: "compliance", Status: "completed"})
	return domain.Broadcast(msg.Payload), nil
}

// coordinate drives the review loop. On the first visit it either fast-paths
// a compliant document straight to finalize or routes a review request
// through the gate; on the second visit (after the gate's suspension is
// answered) it turns the decision into the final record.
func (s *steps) coordinate(ctx context.Context, msg domain.Message, emit domain.EmitFunc) (domain.StepResult, error) {
	switch v := msg.Payload.(type) {
	case reviewPayload:
		if v.Result.Compliant && !v.Result.NeedsReview {
			rec := domain.ResultRecord{
				SourceURI: v.Doc.SourceURI,
				Status:    domain.StatusAutoApproved,
				Notes:     v.Result.Notes,
				Timestamp: time.Now().UTC(),
			}
			return domain.Forward(domain.Send{Payload: rec, Target: NodeFinalize}), nil
		}

		req := domain.ApprovalRequest{
			Title:   "Manual approval required",
			Message: "Please review the extracted result.",
			Context: map[string]any{
				"source_uri": v.Doc.SourceURI,
				"preview":    preview(v.Doc.Text),
				"notes":      v.Result.Notes,
			},
		}
		return domain.Forward(domain.Send{Payload: req, Target: NodeReviewGate}), nil

	case domain.ResolvedApproval:
		emit(domain.ApprovalStatusEvent{
			RequestID: v.Request.ID,
			Approved:  v.Decision.Approved,
		})

		sourceURI, _ := v.Request.Context["source_uri"].(string)
		notes, _ := v.Request.Context["notes"].(string)

		rec := domain.ResultRecord{
			SourceURI:  sourceURI,
			ApprovalID: v.Request.ID,
			Comment:    v.Decision.Comment,
			Notes:      notes,
			Timestamp:  time.Now().UTC(),
		}
		if v.Decision.Approved {
			rec.Status = domain.StatusApproved
		} else {
			rec.Status = domain.StatusRejectedByHuman
			if rec.Comment == "" {
				rec.Comment = "Rejected"
			}
		}
		return domain.Forward(domain.Send{Payload: rec, Target: NodeFinalize}), nil
	}

	return domain.StepResult{}, fmt.Errorf("coordinator received unexpected payload %T", msg.Payload)
}

// reviewGate raises the suspension for a prepared request and, once the
// engine re-invokes it with the answer, hands the correlated pair back to
// the coordinator.
func (s *steps) reviewGate(ctx context.Context, msg domain.Message, emit domain.EmitFunc) (domain.StepResult, error) {
	switch v := msg.Payload.(type) {
	case domain.ApprovalRequest:
		return domain.Suspend(v), nil
	case domain.ResolvedApproval:
		return domain.Forward(domain.Send{Payload: v, Target: NodeCoordinator}), nil
	}
	return domain.StepResult{}, fmt.Errorf("review gate received unexpected payload %T", msg.Payload)
}

// finalize stores the outcome through the result sink and yields the run's
// final output.
func (s *steps) finalize(ctx context.Context, msg domain.Message, emit domain.EmitFunc) (domain.StepResult, error) {
	rec, ok := msg.Payload.(domain.ResultRecord)
	if !ok {
		return domain.StepResult{}, fmt.Errorf("finalize expects ResultRecord, got %T", msg.Payload)
	}

	locator, err := s.deps.Sink.Store(ctx, rec)
	if err != nil {
		return domain.StepResult{}, fmt.Errorf("store result: %w", err)
	}

	return domain.Yield(Outcome{Record: rec, Locator: locator}), nil
}

// Outcome is the run's final output: the stored record and where it landed.
type Outcome struct {
	Record  domain.ResultRecord `json:"record"`
	Locator string              `json:"record_locator"`
}

func preview(text string) string {
	if len(text) <= previewLimit {
		return text
	}
	// Back up to a rune boundary so the cut never splits a multi-byte
	// character.
	cut := previewLimit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "…"
}
