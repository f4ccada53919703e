package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/helioswap/dca-engine/internal/asset"
	"github.com/helioswap/dca-engine/internal/engine"
)

func (p *PostgresBackend) ListOrders(ctx context.Context) ([]engine.Order, error) {
	if p.pool == nil {
		return nil, fmt.Errorf("database pool is nil")
	}

	rows, err := p.pool.Query(ctx, `
        SELECT owner, initial_asset, remaining_amount, target_asset, dca_amount, interval_seconds, last_purchase
        FROM dca_orders`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []engine.Order
	for rows.Next() {
		var (
			order           engine.Order
			initial, target string
			intervalSeconds int64
		)
		err := rows.Scan(
			&order.Owner,
			&initial,
			&order.Remaining,
			&target,
			&order.DCAAmount,
			&intervalSeconds,
			&order.LastPurchase,
		)
		if err != nil {
			return nil, err
		}
		if order.InitialAsset, err = asset.ParseRef(initial); err != nil {
			return nil, fmt.Errorf("failed to parse stored initial asset: %w", err)
		}
		if order.TargetAsset, err = asset.ParseRef(target); err != nil {
			return nil, fmt.Errorf("failed to parse stored target asset: %w", err)
		}
		order.Interval = time.Duration(intervalSeconds) * time.Second
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (p *PostgresBackend) UpsertOrderTx(ctx context.Context, dbTx pgx.Tx, order engine.Order) error {
	query := `
        INSERT INTO dca_orders (owner, initial_asset, remaining_amount, target_asset, dca_amount, interval_seconds, last_purchase, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, now())
        ON CONFLICT (owner, initial_asset) DO UPDATE SET
            remaining_amount = EXCLUDED.remaining_amount,
            target_asset = EXCLUDED.target_asset,
            dca_amount = EXCLUDED.dca_amount,
            interval_seconds = EXCLUDED.interval_seconds,
            last_purchase = EXCLUDED.last_purchase,
            updated_at = now()`

	_, err := dbTx.Exec(ctx, query,
		order.Owner,
		order.InitialAsset.String(),
		order.Remaining,
		order.TargetAsset.String(),
		order.DCAAmount,
		int64(order.Interval/time.Second),
		order.LastPurchase,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert order for %s: %w", order.Owner, err)
	}
	return nil
}

func (p *PostgresBackend) DeleteOrderTx(ctx context.Context, dbTx pgx.Tx, owner string, initial asset.Ref) error {
	_, err := dbTx.Exec(ctx, `
        DELETE FROM dca_orders
        WHERE owner = $1 AND initial_asset = $2`, owner, initial.String())
	if err != nil {
		return fmt.Errorf("failed to delete order for %s: %w", owner, err)
	}
	return nil
}
