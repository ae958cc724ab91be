// README: Settings store backed by PostgreSQL.
package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("setting not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, key string) (Setting, error) {
	row := s.db.QueryRow(ctx, `
		SELECT key, value, COALESCE(description, ''), updated_at
		FROM settings
		WHERE key = $1`, key,
	)
	var st Setting
	err := row.Scan(&st.Key, &st.Value, &st.Description, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Setting{}, ErrNotFound
	}
	if err != nil {
		return Setting{}, err
	}
	return st, nil
}

func (s *Store) List(ctx context.Context) ([]Setting, error) {
	rows, err := s.db.Query(ctx, `
		SELECT key, value, COALESCE(description, ''), updated_at
		FROM settings
		ORDER BY key`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Setting
	for rows.Next() {
		var st Setting
		if err := rows.Scan(&st.Key, &st.Value, &st.Description, &st.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) Upsert(ctx context.Context, key, value, description string) (Setting, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO settings (key, value, description, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
		    description = COALESCE(EXCLUDED.description, settings.description),
		    updated_at = NOW()
		RETURNING key, value, COALESCE(description, ''), updated_at`,
		key, value, description,
	)
	var st Setting
	if err := row.Scan(&st.Key, &st.Value, &st.Description, &st.UpdatedAt); err != nil {
		return Setting{}, err
	}
	return st, nil
}
