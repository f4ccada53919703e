package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/helioswap/dca-engine/common"
	"github.com/helioswap/dca-engine/internal/asset"
	"github.com/helioswap/dca-engine/internal/types"
)

func (p *PostgresBackend) CreateExecution(ctx context.Context, rec types.ExecutionRecord) error {
	if p.pool == nil {
		return fmt.Errorf("database pool is nil")
	}
	return p.createExecution(ctx, p.pool, rec)
}

func (p *PostgresBackend) CreateExecutionTx(ctx context.Context, dbTx pgx.Tx, rec types.ExecutionRecord) error {
	return p.createExecution(ctx, dbTx, rec)
}

// rowExecutor covers both pgxpool.Pool and pgx.Tx so an execution row can be
// written standalone (rejections) or inside a purchase transaction.
type rowExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (p *PostgresBackend) createExecution(ctx context.Context, q rowExecutor, rec types.ExecutionRecord) error {
	query := `
        INSERT INTO executions (id, owner, executor, initial_asset, target_asset, amount_in, amount_out, hop_count, tip, status, reason, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := q.Exec(ctx, query,
		rec.ID,
		rec.Owner,
		rec.Executor,
		rec.InitialAsset.String(),
		rec.TargetAsset.String(),
		rec.AmountIn,
		rec.AmountOut,
		rec.HopCount,
		rec.Tip,
		string(rec.Status),
		rec.Reason,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert execution record: %w", err)
	}
	return nil
}

func (p *PostgresBackend) GetExecutions(ctx context.Context, owner string, sort string, take int, skip int) ([]types.ExecutionRecord, error) {
	if p.pool == nil {
		return nil, fmt.Errorf("database pool is nil")
	}

	orderBy, orderDirection := common.GetSortingCondition(sort)

	query := fmt.Sprintf(`
        SELECT id, owner, executor, initial_asset, target_asset, amount_in, amount_out, hop_count, tip, status, reason, created_at
        FROM executions
        WHERE owner = $1
        ORDER BY %s %s
        LIMIT $2 OFFSET $3`, orderBy, orderDirection)

	rows, err := p.pool.Query(ctx, query, owner, take, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []types.ExecutionRecord
	for rows.Next() {
		var (
			rec                     types.ExecutionRecord
			initial, target, status string
		)
		err := rows.Scan(
			&rec.ID,
			&rec.Owner,
			&rec.Executor,
			&initial,
			&target,
			&rec.AmountIn,
			&rec.AmountOut,
			&rec.HopCount,
			&rec.Tip,
			&status,
			&rec.Reason,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		rec.Status = types.ExecutionStatus(status)
		if initial != "" {
			if rec.InitialAsset, err = asset.ParseRef(initial); err != nil {
				return nil, fmt.Errorf("failed to parse stored initial asset: %w", err)
			}
		}
		if target != "" {
			if rec.TargetAsset, err = asset.ParseRef(target); err != nil {
				return nil, fmt.Errorf("failed to parse stored target asset: %w", err)
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
