package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Cascade store.
var Migrations = migrate.NewGroup("cascade")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_cascade_tier_definitions",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS cascade_tier_definitions (
    id               TEXT PRIMARY KEY,
    tier_key         TEXT NOT NULL DEFAULT '',
    aliases          JSONB NOT NULL DEFAULT '[]',
    hierarchy_weight INT NOT NULL DEFAULT 0,
    stripe_price_ids JSONB NOT NULL DEFAULT '[]',
    metadata         JSONB NOT NULL DEFAULT '{}',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_cascade_tiers_key ON cascade_tier_definitions (tier_key);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS cascade_tier_definitions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_cascade_token_records",
			Version: "20260101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS cascade_token_records (
    id          TEXT PRIMARY KEY,
    scope_level TEXT NOT NULL DEFAULT '',
    vertical_id TEXT NOT NULL DEFAULT '',
    plan_tier   TEXT NOT NULL DEFAULT '',
    tenant_id   TEXT NOT NULL DEFAULT '',
    payload     JSONB NOT NULL DEFAULT '{}',
    active      BOOLEAN NOT NULL DEFAULT TRUE,
    weight      INT NOT NULL DEFAULT 0,
    changed_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_cascade_tokens_scope ON cascade_token_records (scope_level, vertical_id, plan_tier, tenant_id) WHERE active;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS cascade_token_records`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_cascade_feature_limits",
			Version: "20260101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS cascade_feature_limits (
    id          TEXT PRIMARY KEY,
    vertical_id TEXT NOT NULL DEFAULT '',
    tier_key    TEXT NOT NULL DEFAULT '',
    features    JSONB NOT NULL DEFAULT '[]',
    limits      JSONB NOT NULL DEFAULT '{}',
    active      BOOLEAN NOT NULL DEFAULT TRUE,
    changed_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_cascade_limits_pair ON cascade_feature_limits (vertical_id, tier_key);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS cascade_feature_limits`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_cascade_limit_rules",
			Version: "20260101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS cascade_limit_rules (
    id                  TEXT PRIMARY KEY,
    vertical_id         TEXT NOT NULL DEFAULT '',
    tier_key            TEXT NOT NULL DEFAULT '',
    feature_key         TEXT NOT NULL DEFAULT '',
    limit_value         BIGINT NOT NULL DEFAULT 0,
    upgrade_message     TEXT NOT NULL DEFAULT '',
    expected_conversion DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_cascade_rules_triple ON cascade_limit_rules (vertical_id, tier_key, feature_key);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS cascade_limit_rules`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_cascade_usage_counters",
			Version: "20260101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS cascade_usage_counters (
    tenant_id   TEXT NOT NULL,
    feature_key TEXT NOT NULL,
    period_id   TEXT NOT NULL,
    count       BIGINT NOT NULL DEFAULT 0,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (tenant_id, feature_key, period_id)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS cascade_usage_counters`)
				return err
			},
		},
	)
}
