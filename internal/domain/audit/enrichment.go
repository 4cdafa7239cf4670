// Package audit provides utilities for audit field enrichment in domain entities.
package audit

import (
	"context"

	appctx "stockpile/internal/core/context"
)

// EnrichCreatedByDirect sets CreatedBy/UpdatedBy fields from context actor ID.
// Use in BeforeCreate hooks. If actor is not in context, this is a no-op.
func EnrichCreatedByDirect(ctx context.Context, createdBy, updatedBy *string) {
	actorID := appctx.GetActorID(ctx)
	if actorID != "" && createdBy != nil && updatedBy != nil {
		*createdBy = actorID
		*updatedBy = actorID
	}
}

// EnrichUpdatedByDirect sets only the UpdatedBy field from context actor ID.
// Use in BeforeUpdate hooks.
func EnrichUpdatedByDirect(ctx context.Context, updatedBy *string) {
	actorID := appctx.GetActorID(ctx)
	if actorID != "" && updatedBy != nil {
		*updatedBy = actorID
	}
}
