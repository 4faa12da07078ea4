package session

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// PostgresBackend stores slots in the session_slots table.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend constructs the backend.
func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

func (p *PostgresBackend) Get(ctx context.Context, key string) (string, bool, error) {
	const query = `SELECT value FROM session_slots WHERE key=$1`
	var val string
	if err := p.pool.QueryRow(ctx, query, key).Scan(&val); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return val, true, nil
}

func (p *PostgresBackend) Set(ctx context.Context, key, value string) error {
	const query = `
        INSERT INTO session_slots (key, value, updated_at)
        VALUES ($1,$2,NOW())
        ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`
	_, err := p.pool.Exec(ctx, query, key, value)
	return err
}

func (p *PostgresBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	const query = `DELETE FROM session_slots WHERE key = ANY($1)`
	_, err := p.pool.Exec(ctx, query, keys)
	return err
}

func (p *PostgresBackend) DeletePrefix(ctx context.Context, prefix string) error {
	const query = `DELETE FROM session_slots WHERE key LIKE $1 ESCAPE '\'`
	_, err := p.pool.Exec(ctx, query, likeEscaper.Replace(prefix)+"%")
	return err
}

func (p *PostgresBackend) Ping(ctx context.Context) error {
	if p.pool == nil {
		return errors.New("postgres pool not configured")
	}
	return p.pool.Ping(ctx)
}
