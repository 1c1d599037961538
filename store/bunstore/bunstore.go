// Package bunstore persists session credentials in SQLite through Bun, so a
// credential record written before a restart is visible to the next process —
// the reload-survival behavior the in-memory store cannot provide. Several
// processes pointing at the same database file share one storage scope, which
// is what makes another instance's logout observable here.
package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type credentialRow struct {
	bun.BaseModel `bun:"table:session_credentials,alias:sc"`

	Key       string    `bun:"key,pk"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// Store is a CredentialStore backed by a single key/value table.
type Store struct {
	db *bun.DB
}

// New wraps an existing Bun handle. The caller owns the handle's lifecycle.
func New(db *bun.DB) *Store {
	return &Store{db: db}
}

// Open opens (creating if needed) a SQLite-backed store at path. Use ":memory:"
// for a throwaway store in tests.
func Open(path string) (*Store, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, err
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	s := &Store{db: db}
	if err := s.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*credentialRow)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get implements session.CredentialStore.
func (s *Store) Get(key string) (string, bool, error) {
	row := new(credentialRow)
	err := s.db.NewSelect().
		Model(row).
		Where("key = ?", key).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return row.Value, true, nil
}

// Set implements session.CredentialStore with an upsert.
func (s *Store) Set(key, value string) error {
	row := &credentialRow{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(context.Background())
	return err
}

// Remove implements session.CredentialStore. Removing a missing key is not an
// error; absence is a valid value.
func (s *Store) Remove(key string) error {
	_, err := s.db.NewDelete().
		Model((*credentialRow)(nil)).
		Where("key = ?", key).
		Exec(context.Background())
	return err
}
