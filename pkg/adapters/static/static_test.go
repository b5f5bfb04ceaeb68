package static_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docweave/docweave/pkg/adapters/static"
	"github.com/docweave/docweave/pkg/domain"
)

func TestExtractor_ScriptedDocument(t *testing.T) {
	ex := static.NewExtractor(
		static.WithDocument("s3://docs/nda.pdf", domain.ExtractedDocument{
			Title:     "NDA",
			PageCount: 4,
			Text:      "This agreement is confidential.",
		}),
	)

	doc, err := ex.Extract(context.Background(), "s3://docs/nda.pdf")
	require.NoError(t, err)
	assert.Equal(t, "s3://docs/nda.pdf", doc.SourceURI)
	assert.Equal(t, "NDA", doc.Title)
	assert.Equal(t, 4, doc.PageCount)
}

func TestExtractor_SynthesizesUnknownLocator(t *testing.T) {
	ex := static.NewExtractor()

	doc, err := ex.Extract(context.Background(), "file:///tmp/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "file:///tmp/report.pdf", doc.SourceURI)
	assert.Equal(t, "report.pdf", doc.Title)
	assert.NotEmpty(t, doc.Text)
}

func TestExtractor_EmptyLocator(t *testing.T) {
	ex := static.NewExtractor()

	_, err := ex.Extract(context.Background(), "")
	assert.Error(t, err)
}

func TestEvaluator_Verdicts(t *testing.T) {
	ev := static.NewEvaluator()

	tests := []struct {
		name        string
		text        string
		compliant   bool
		needsReview bool
	}{
		{"clean document", "A routine quarterly report.", true, false},
		{"review keyword", "This document is CONFIDENTIAL.", true, true},
		{"violation keyword", "Contains prohibited material.", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ev.Evaluate(context.Background(), domain.ExtractedDocument{Text: tt.text})
			require.NoError(t, err)
			assert.Equal(t, tt.compliant, result.Compliant)
			assert.Equal(t, tt.needsReview, result.NeedsReview)
			assert.NotEmpty(t, result.Notes)
		})
	}
}

func TestPolicy_Decide(t *testing.T) {
	policy := static.NewPolicy(true, "auto-approved")

	decision, err := policy.Decide(context.Background(), domain.ApprovalRequest{ID: "req-9"})
	require.NoError(t, err)
	assert.Equal(t, "req-9", decision.RequestID)
	assert.True(t, decision.Approved)
	assert.Equal(t, "auto-approved", decision.Comment)
}
