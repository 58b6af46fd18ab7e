package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/vaultry/vaultry/internal/rbac"
)

// RbacSeedJob backfills deny policies for controlled actions that gained
// coverage requirements since the last run.
type RbacSeedJob struct {
	seeder *rbac.Seeder
	logger *slog.Logger
}

// NewRbacSeedJob constructs the job.
func NewRbacSeedJob(seeder *rbac.Seeder, logger *slog.Logger) *RbacSeedJob {
	return &RbacSeedJob{seeder: seeder, logger: logger}
}

// Handle processes TaskRbacSeed tasks. Seeding failures are logged and
// swallowed: an incomplete backfill leaves evaluation fail-closed, and the
// next run picks up the remaining actions.
func (j *RbacSeedJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload RbacSeedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	count, err := j.seeder.SeedDefaultPolicies(ctx)
	if err != nil {
		j.logger.Error("policy seeding failed",
			slog.String("reason", payload.Reason),
			slog.Int64("seeded", count),
			slog.Any("error", err))
		return nil
	}

	j.logger.Info("policy seeding finished",
		slog.String("reason", payload.Reason),
		slog.Int64("seeded", count))
	return nil
}
