package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/helioswap/dca-engine/internal/asset"
	"github.com/helioswap/dca-engine/internal/engine"
)

func (p *PostgresBackend) GetGlobalConfig(ctx context.Context) (*engine.GlobalConfig, error) {
	if p.pool == nil {
		return nil, fmt.Errorf("database pool is nil")
	}

	query := `
        SELECT admin_addr, router_endpoint, factory_endpoint, max_hops, max_spread, per_hop_fee, tip_asset, whitelist
        FROM global_config
        WHERE id = 1`

	var (
		cfg           engine.GlobalConfig
		tipAsset      string
		whitelistJSON []byte
	)
	err := p.pool.QueryRow(ctx, query).Scan(
		&cfg.Admin,
		&cfg.RouterEndpoint,
		&cfg.FactoryEndpoint,
		&cfg.MaxHops,
		&cfg.MaxSpread,
		&cfg.PerHopFee,
		&tipAsset,
		&whitelistJSON,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get global config: %w", err)
	}

	if cfg.TipAsset, err = asset.ParseRef(tipAsset); err != nil {
		return nil, fmt.Errorf("failed to parse stored tip asset: %w", err)
	}
	var refs []string
	if err := json.Unmarshal(whitelistJSON, &refs); err != nil {
		return nil, fmt.Errorf("failed to decode whitelist: %w", err)
	}
	for _, s := range refs {
		ref, err := asset.ParseRef(s)
		if err != nil {
			return nil, fmt.Errorf("failed to parse whitelisted asset: %w", err)
		}
		cfg.Whitelist = append(cfg.Whitelist, ref)
	}
	return &cfg, nil
}

func (p *PostgresBackend) UpsertGlobalConfigTx(ctx context.Context, dbTx pgx.Tx, cfg engine.GlobalConfig) error {
	refs := make([]string, 0, len(cfg.Whitelist))
	for _, ref := range cfg.Whitelist {
		refs = append(refs, ref.String())
	}
	whitelistJSON, err := json.Marshal(refs)
	if err != nil {
		return fmt.Errorf("failed to marshal whitelist: %w", err)
	}

	query := `
        INSERT INTO global_config (id, admin_addr, router_endpoint, factory_endpoint, max_hops, max_spread, per_hop_fee, tip_asset, whitelist, updated_at)
        VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, now())
        ON CONFLICT (id) DO UPDATE SET
            admin_addr = EXCLUDED.admin_addr,
            router_endpoint = EXCLUDED.router_endpoint,
            factory_endpoint = EXCLUDED.factory_endpoint,
            max_hops = EXCLUDED.max_hops,
            max_spread = EXCLUDED.max_spread,
            per_hop_fee = EXCLUDED.per_hop_fee,
            tip_asset = EXCLUDED.tip_asset,
            whitelist = EXCLUDED.whitelist,
            updated_at = now()`

	_, err = dbTx.Exec(ctx, query,
		cfg.Admin,
		cfg.RouterEndpoint,
		cfg.FactoryEndpoint,
		cfg.MaxHops,
		cfg.MaxSpread,
		cfg.PerHopFee,
		cfg.TipAsset.String(),
		whitelistJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert global config: %w", err)
	}
	return nil
}

func (p *PostgresBackend) ListUserConfigs(ctx context.Context) (map[string]engine.UserConfig, error) {
	if p.pool == nil {
		return nil, fmt.Errorf("database pool is nil")
	}

	rows, err := p.pool.Query(ctx, `
        SELECT owner, max_hops, max_spread, tip_balance
        FROM user_configs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	configs := make(map[string]engine.UserConfig)
	for rows.Next() {
		var (
			owner     string
			maxHops   *int
			maxSpread *decimal.Decimal
			cfg       engine.UserConfig
		)
		if err := rows.Scan(&owner, &maxHops, &maxSpread, &cfg.TipBalance); err != nil {
			return nil, err
		}
		cfg.MaxHops = maxHops
		cfg.MaxSpread = maxSpread
		configs[owner] = cfg
	}
	return configs, rows.Err()
}

func (p *PostgresBackend) UpsertUserConfigTx(ctx context.Context, dbTx pgx.Tx, owner string, cfg engine.UserConfig) error {
	query := `
        INSERT INTO user_configs (owner, max_hops, max_spread, tip_balance, updated_at)
        VALUES ($1, $2, $3, $4, now())
        ON CONFLICT (owner) DO UPDATE SET
            max_hops = EXCLUDED.max_hops,
            max_spread = EXCLUDED.max_spread,
            tip_balance = EXCLUDED.tip_balance,
            updated_at = now()`

	_, err := dbTx.Exec(ctx, query, owner, cfg.MaxHops, cfg.MaxSpread, cfg.TipBalance)
	if err != nil {
		return fmt.Errorf("failed to upsert user config for %s: %w", owner, err)
	}
	return nil
}
