package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docweave/docweave/pkg/domain"
)

// RunResultSinkContract verifies that a ResultSink implementation adheres to
// the interface contract, in particular idempotence on the logical key.
func RunResultSinkContract(t *testing.T, sink ResultSink) {
	ctx := context.Background()

	rec := domain.ResultRecord{
		SourceURI:  "contract://doc-1",
		Status:     domain.StatusApproved,
		ApprovalID: "contract-approval-1",
		Timestamp:  time.Now().UTC(),
	}

	t.Run("Store returns locator", func(t *testing.T) {
		locator, err := sink.Store(ctx, rec)
		require.NoError(t, err, "Store should not return error")
		assert.NotEmpty(t, locator)
	})

	t.Run("Same key overwrites", func(t *testing.T) {
		first, err := sink.Store(ctx, rec)
		require.NoError(t, err)

		updated := rec
		updated.Comment = "second write"
		second, err := sink.Store(ctx, updated)
		require.NoError(t, err)

		assert.Equal(t, first, second, "idempotent key should map to the same locator")
	})

	t.Run("Distinct keys get distinct locators", func(t *testing.T) {
		other := rec
		other.ApprovalID = "contract-approval-2"

		a, err := sink.Store(ctx, rec)
		require.NoError(t, err)
		b, err := sink.Store(ctx, other)
		require.NoError(t, err)

		assert.NotEqual(t, a, b)
	})
}
