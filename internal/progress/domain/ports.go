package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// AttachmentCounter is served by the attachment service, which owns the
// uploaded tally-sheet photos.
type AttachmentCounter interface {
	AttachmentCount(ctx context.Context, mesaID snowflake.ID) (int64, error)
	// UnassignedCount counts attachments not yet matched to any mesa.
	UnassignedCount(ctx context.Context) (int64, error)
}

// ProblemChecker is served by the problem-reporting service.
type ProblemChecker interface {
	HasUnresolvedProblem(ctx context.Context, mesaID snowflake.ID) (bool, error)
}
