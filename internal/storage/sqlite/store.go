// Package sqlite persists the golden-profile catalog. Profiles are stored
// as canonical JSON blobs keyed by (strain, style), so a load after save
// reproduces byte-identical profiles across process restarts.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/brewtrace/brewtrace/internal/ferm/profile"
)

// CatalogStore is the durable home of the profile catalog.
type CatalogStore struct {
	db *sql.DB
}

// Open opens (creating if absent) the catalog database at path and applies
// pending migrations.
func Open(path string) (*CatalogStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}
	store := &CatalogStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying database handle.
func (s *CatalogStore) Close() error { return s.db.Close() }

// Save upserts every profile in the catalog plus the synthesis config.
// Existing rows for the same key are replaced; profiles absent from the
// catalog are left untouched (revisions add entries, never destroy them).
func (s *CatalogStore) Save(c *profile.Catalog) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	catalogBlob, err := profile.MarshalCatalog(c)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(
		`INSERT INTO catalog_meta (id, document) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET document = excluded.document`,
		string(catalogBlob),
	); err != nil {
		return fmt.Errorf("save catalog meta: %w", err)
	}

	for _, key := range c.Keys() {
		p := c.Get(key.Strain, key.Style)
		blob, err := profile.MarshalProfile(p)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT INTO golden_profiles (strain, style, profile) VALUES (?, ?, ?)
			 ON CONFLICT(strain, style) DO UPDATE SET profile = excluded.profile`,
			key.Strain, key.Style, string(blob),
		); err != nil {
			return fmt.Errorf("save profile %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// Load rebuilds the catalog from storage. Returns sql.ErrNoRows wrapped
// when the store has never been saved to.
func (s *CatalogStore) Load() (*profile.Catalog, error) {
	var doc string
	err := s.db.QueryRow(`SELECT document FROM catalog_meta WHERE id = 1`).Scan(&doc)
	if err != nil {
		return nil, fmt.Errorf("load catalog meta: %w", err)
	}
	catalog, err := profile.UnmarshalCatalog([]byte(doc))
	if err != nil {
		return nil, err
	}

	// Individual rows may carry profiles added after the last full-document
	// save; fold them in.
	rows, err := s.db.Query(`SELECT profile FROM golden_profiles ORDER BY strain, style`)
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		p, err := profile.UnmarshalProfile([]byte(blob))
		if err != nil {
			return nil, err
		}
		if err := catalog.Put(p); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return catalog, nil
}

// ProfileBlob returns the stored canonical JSON for one key, for
// byte-level comparisons and debugging.
func (s *CatalogStore) ProfileBlob(strain, style string) ([]byte, error) {
	var blob string
	err := s.db.QueryRow(
		`SELECT profile FROM golden_profiles WHERE strain = ? AND style = ?`,
		strain, style,
	).Scan(&blob)
	if err != nil {
		return nil, fmt.Errorf("load profile blob %s/%s: %w", strain, style, err)
	}
	return []byte(blob), nil
}
