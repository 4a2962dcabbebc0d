package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// RoundRobinRepository holds the per-role assignment cursor. Advance
// atomically increments the cursor and returns the reserved slot, starting at
// 1; two callers never receive the same slot for a role.
type RoundRobinRepository interface {
	Get(ctx context.Context, role domain.StaffRole) (int64, error)
	Advance(ctx context.Context, role domain.StaffRole) (int64, error)
}

type pgRoundRobinRepository struct {
	pool *pgxpool.Pool
}

// NewRoundRobinRepository stores cursors in Postgres next to the rule tables.
func NewRoundRobinRepository(pool *pgxpool.Pool) RoundRobinRepository {
	return &pgRoundRobinRepository{pool: pool}
}

func (r *pgRoundRobinRepository) Get(ctx context.Context, role domain.StaffRole) (int64, error) {
	var position int64
	err := r.pool.QueryRow(ctx, `SELECT position FROM round_robin_cursors WHERE role=$1`, role).Scan(&position)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return position, err
}

func (r *pgRoundRobinRepository) Advance(ctx context.Context, role domain.StaffRole) (int64, error) {
	const query = `
        INSERT INTO round_robin_cursors (role, position, updated_at) VALUES ($1, 1, NOW())
        ON CONFLICT (role) DO UPDATE SET position = round_robin_cursors.position + 1, updated_at = NOW()
        RETURNING position`
	var position int64
	if err := r.pool.QueryRow(ctx, query, role).Scan(&position); err != nil {
		return 0, err
	}
	return position, nil
}

type redisRoundRobinRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisRoundRobinRepository keeps cursors in Redis counters shared by all
// replicas.
func NewRedisRoundRobinRepository(client *redis.Client, prefix string) RoundRobinRepository {
	prefix = strings.TrimSuffix(prefix, ":")
	if prefix == "" {
		prefix = "helpdesk:rr"
	}
	return &redisRoundRobinRepository{client: client, prefix: prefix}
}

func (r *redisRoundRobinRepository) key(role domain.StaffRole) string {
	return fmt.Sprintf("%s:%s", r.prefix, role)
}

func (r *redisRoundRobinRepository) Get(ctx context.Context, role domain.StaffRole) (int64, error) {
	position, err := r.client.Get(ctx, r.key(role)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return position, err
}

func (r *redisRoundRobinRepository) Advance(ctx context.Context, role domain.StaffRole) (int64, error) {
	return r.client.Incr(ctx, r.key(role)).Result()
}
