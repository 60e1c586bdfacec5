package importer

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"

	defaultRunsLimit = 20
)

// Run is the stored outcome of one import pass.
type Run struct {
	PassID     string            `json:"pass_id"`
	Status     string            `json:"status"`
	Report     datatypes.JSONMap `json:"report"`
	Error      *string           `json:"error,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// recordRun stores the pass outcome. A failure to record never fails the pass.
func (im *Importer) recordRun(ctx context.Context, startedAt time.Time, report Report, runErr error) {
	if im.db == nil {
		return
	}

	status := RunStatusSucceeded
	var errText *string
	if runErr != nil {
		status = RunStatusFailed
		text := runErr.Error()
		errText = &text
	}

	err := im.db.WithContext(ctx).Exec(
		`INSERT INTO import_runs (pass_id, status, report, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		report.PassID, status, reportMap(report), errText, startedAt, im.clock.Now(),
	).Error
	if err != nil {
		im.log.Warn("import run not recorded", zap.String("pass_id", report.PassID), zap.Error(err))
	}
}

// Runs lists the most recent import passes first.
func (im *Importer) Runs(ctx context.Context, limit int) ([]Run, error) {
	if im.db == nil {
		return []Run{}, nil
	}
	if limit <= 0 {
		limit = defaultRunsLimit
	}

	var runs []Run
	err := im.db.WithContext(ctx).Raw(
		`SELECT pass_id, status, report, error, started_at, finished_at
		 FROM import_runs
		 ORDER BY started_at DESC, pass_id DESC
		 LIMIT ?`,
		limit,
	).Scan(&runs).Error
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []Run{}
	}
	return runs, nil
}

func reportMap(report Report) datatypes.JSONMap {
	return datatypes.JSONMap{
		"rows":                report.Rows,
		"mesas":               report.Mesas,
		"associations":        report.Associations,
		"weighted_projection": report.WeightedProjection,
	}
}
