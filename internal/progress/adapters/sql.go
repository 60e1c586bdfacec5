// Package adapters reads the attachment and problem tables owned by the
// collaborating services.
package adapters

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/escrutinio/internal/progress/domain"
	"gorm.io/gorm"
)

// ProblemStateResolved is the only problem state that stops blocking a mesa.
const ProblemStateResolved = "resolved"

type attachmentCounter struct {
	db *gorm.DB
}

func NewAttachmentCounter(db *gorm.DB) domain.AttachmentCounter {
	return &attachmentCounter{db: db}
}

func (a *attachmentCounter) AttachmentCount(ctx context.Context, mesaID snowflake.ID) (int64, error) {
	var count int64
	err := a.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM attachments WHERE mesa_id = ?`,
		mesaID,
	).Scan(&count).Error
	return count, err
}

func (a *attachmentCounter) UnassignedCount(ctx context.Context) (int64, error) {
	var count int64
	err := a.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM attachments WHERE mesa_id IS NULL`,
	).Scan(&count).Error
	return count, err
}

type problemChecker struct {
	db *gorm.DB
}

func NewProblemChecker(db *gorm.DB) domain.ProblemChecker {
	return &problemChecker{db: db}
}

func (p *problemChecker) HasUnresolvedProblem(ctx context.Context, mesaID snowflake.ID) (bool, error) {
	var count int64
	err := p.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM problems WHERE mesa_id = ? AND state <> ?`,
		mesaID,
		ProblemStateResolved,
	).Scan(&count).Error
	return count > 0, err
}
