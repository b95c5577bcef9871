package task

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/leadlens/internal/model"
)

// FetchRollupConfig defines rollup behavior.
type FetchRollupConfig struct {
	RetentionDays int
}

// FetchRollupJob aggregates the raw record-fetch audit rows into daily
// per-visitor rollups and prunes rows older than the retention window.
type FetchRollupJob struct {
	database *gorm.DB
	logger   *zap.Logger
	config   FetchRollupConfig
}

// NewFetchRollupJob builds a FetchRollupJob.
func NewFetchRollupJob(database *gorm.DB, logger *zap.Logger, config FetchRollupConfig) *FetchRollupJob {
	return &FetchRollupJob{
		database: database,
		logger:   logger,
		config:   config,
	}
}

// Run executes aggregation then pruning.
func (job *FetchRollupJob) Run(ctx context.Context) error {
	if err := job.aggregatePreviousDay(ctx); err != nil {
		return err
	}
	if job.config.RetentionDays > 0 {
		return job.pruneOldFetches(ctx)
	}
	return nil
}

func (job *FetchRollupJob) aggregatePreviousDay(ctx context.Context) error {
	day := time.Now().UTC().Add(-24 * time.Hour)
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	type aggregateResult struct {
		VisitorID  string
		FetchCount int64
		FoundCount int64
	}
	var results []aggregateResult
	err := job.database.WithContext(ctx).
		Model(&model.RecordFetch{}).
		Select("visitor_id, COUNT(*) as fetch_count, SUM(CASE WHEN found THEN 1 ELSE 0 END) as found_count").
		Where("occurred_at >= ? AND occurred_at < ?", start, end).
		Group("visitor_id").
		Scan(&results).Error
	if err != nil {
		return err
	}
	for _, res := range results {
		rollup, rollupErr := model.NewRecordFetchRollup(res.VisitorID, start, res.FetchCount, res.FoundCount)
		if rollupErr != nil {
			if job.logger != nil {
				job.logger.Warn("fetch_rollup_invalid", zap.Error(rollupErr), zap.String("visitor_id", res.VisitorID))
			}
			continue
		}
		if err := job.database.WithContext(ctx).
			Where("visitor_id = ? AND date = ?", rollup.VisitorID, rollup.Date).
			Assign(rollup).
			FirstOrCreate(&rollup).Error; err != nil && job.logger != nil {
			job.logger.Warn("fetch_rollup_save_failed", zap.Error(err), zap.String("visitor_id", rollup.VisitorID))
		}
	}
	return nil
}

func (job *FetchRollupJob) pruneOldFetches(ctx context.Context) error {
	if job.config.RetentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-time.Duration(job.config.RetentionDays) * 24 * time.Hour).Truncate(24 * time.Hour)
	return job.database.WithContext(ctx).Where("occurred_at < ?", cutoff).Delete(&model.RecordFetch{}).Error
}
