package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const defaultSeedBatchSize = 500

// Seeder backfills default policies so every governed role carries an
// explicit policy for every registered backend action. Evaluation already
// denies when no policy exists; the seeded rows make that deny visible and
// editable in the policy listing.
type Seeder struct {
	store     Store
	registry  *Registry
	cache     *DecisionCache
	batchSize int
	logger    *slog.Logger
}

// NewSeeder constructs a Seeder. batchSize <= 0 selects the default.
func NewSeeder(store Store, registry *Registry, cache *DecisionCache, batchSize int, logger *slog.Logger) *Seeder {
	if batchSize <= 0 {
		batchSize = defaultSeedBatchSize
	}
	return &Seeder{store: store, registry: registry, cache: cache, batchSize: batchSize, logger: logger}
}

// SeedDefaultPolicies registers the catalog's backend actions, then inserts a
// Deny policy for every (governed role, uncovered backend action) pair.
// Actions that already have any policy are skipped entirely, so reruns only
// touch actions added since the last run. Returns the number of policies
// created.
//
// Each batch commits in its own transaction: an interrupted run leaves
// complete batches behind and the next run resumes from the remaining
// uncovered actions.
func (s *Seeder) SeedDefaultPolicies(ctx context.Context) (int64, error) {
	names := s.registry.Catalog().BackendActionNames()
	if _, err := s.registry.RegisterBackendActions(ctx, names); err != nil {
		return 0, err
	}

	actions, err := s.store.UncoveredBackendActions(ctx, names)
	if err != nil {
		return 0, fmt.Errorf("rbac: list uncovered actions: %w", err)
	}
	if len(actions) == 0 {
		return 0, nil
	}

	roleIDs, err := s.store.GovernedRoleIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("rbac: list governed roles: %w", err)
	}
	if len(roleIDs) == 0 {
		s.logger.Info("no governed roles, nothing to seed")
		return 0, nil
	}

	now := time.Now().UTC()
	var (
		total int64
		batch []Policy
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
			n, err := tx.InsertMany(ctx, batch)
			if err != nil {
				return err
			}
			total += n
			return nil
		})
		if err != nil {
			return fmt.Errorf("rbac: seed batch: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	for _, action := range actions {
		for _, roleID := range roleIDs {
			batch = append(batch, Policy{
				ID:              uuid.New(),
				RoleID:          roleID,
				Kind:            KindBackendAction,
				ActionID:        action.ID,
				ControlFunction: ControlFunctionDeny,
				Created:         now,
				Modified:        now,
			})
			if len(batch) >= s.batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}

	if total > 0 {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.Warn("rbac cache bump failed", slog.Any("error", err))
		}
		s.logger.Info("seeded default policies",
			slog.Int64("count", total),
			slog.Int("actions", len(actions)),
			slog.Int("roles", len(roleIDs)))
	}
	return total, nil
}
