package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const fragmentsSchema = `
CREATE TABLE IF NOT EXISTS fragments (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	name       TEXT NOT NULL,
	start_line INTEGER NOT NULL,
	start_col  INTEGER NOT NULL,
	end_line   INTEGER NOT NULL,
	end_col    INTEGER NOT NULL,
	parent_id  TEXT,
	file_path  TEXT NOT NULL,
	language   TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fragments_file_path ON fragments(file_path);
CREATE INDEX IF NOT EXISTS idx_fragments_parent_id ON fragments(parent_id);

CREATE TABLE IF NOT EXISTS annotations (
	fragment_id  TEXT PRIMARY KEY REFERENCES fragments(id) ON DELETE CASCADE,
	signature    TEXT NOT NULL,
	summary      TEXT NOT NULL,
	complexity   INTEGER NOT NULL,
	dependencies TEXT NOT NULL, -- json array
	snippet      TEXT NOT NULL,
	language     TEXT NOT NULL,
	file_path    TEXT NOT NULL,
	created_at   TIMESTAMP NOT NULL,
	updated_at   TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
	path         TEXT PRIMARY KEY,
	content_hash TEXT NOT NULL,
	mod_time     TIMESTAMP NOT NULL,
	fragment_ids TEXT NOT NULL -- json array
);

CREATE TABLE IF NOT EXISTS store_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
INSERT OR IGNORE INTO store_meta (key, value) VALUES ('index_version', '0');
`

func upsertFileFragmentsTx(ctx context.Context, tx *sql.Tx, file, contentHash string, modTime time.Time, frags []*Fragment, anns []*Annotation) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM annotations WHERE file_path = ?`, file); err != nil {
		return fmt.Errorf("delete existing annotations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM fragments WHERE file_path = ?`, file); err != nil {
		return fmt.Errorf("delete existing fragments: %w", err)
	}

	now := time.Now().UTC()
	fragIDs := make([]string, 0, len(frags))
	for _, f := range frags {
		fragIDs = append(fragIDs, f.ID)
		if f.CreatedAt.IsZero() {
			f.CreatedAt = now
		}
		f.UpdatedAt = now
		_, err := tx.ExecContext(ctx, `
			INSERT INTO fragments
				(id, kind, name, start_line, start_col, end_line, end_col, parent_id, file_path, language, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			f.ID, f.Kind, f.Name, f.StartLine, f.StartCol, f.EndLine, f.EndCol, nullableString(f.ParentID), f.FilePath, f.Language, f.CreatedAt, f.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert fragment %s: %w", f.ID, err)
		}
	}

	for _, a := range anns {
		deps, err := json.Marshal(a.Dependencies)
		if err != nil {
			return fmt.Errorf("marshal dependencies for %s: %w", a.FragmentID, err)
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		a.UpdatedAt = now
		_, err = tx.ExecContext(ctx, `
			INSERT INTO annotations
				(fragment_id, signature, summary, complexity, dependencies, snippet, language, file_path, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.FragmentID, a.Signature, a.Summary, a.Complexity, string(deps), a.Snippet, a.Language, a.FilePath, a.CreatedAt, a.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert annotation %s: %w", a.FragmentID, err)
		}
	}

	idsJSON, err := json.Marshal(fragIDs)
	if err != nil {
		return fmt.Errorf("marshal fragment ids: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO files (path, content_hash, mod_time, fragment_ids)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			content_hash = excluded.content_hash,
			mod_time     = excluded.mod_time,
			fragment_ids = excluded.fragment_ids`,
		file, contentHash, modTime, string(idsJSON))
	if err != nil {
		return fmt.Errorf("upsert file record: %w", err)
	}

	return bumpIndexVersionTx(ctx, tx)
}

func deleteFileTx(ctx context.Context, tx *sql.Tx, file string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM annotations WHERE file_path = ?`, file); err != nil {
		return fmt.Errorf("delete annotations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM fragments WHERE file_path = ?`, file); err != nil {
		return fmt.Errorf("delete fragments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE path = ?`, file); err != nil {
		return fmt.Errorf("delete file record: %w", err)
	}
	return bumpIndexVersionTx(ctx, tx)
}

func bumpIndexVersionTx(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE store_meta SET value = CAST(CAST(value AS INTEGER) + 1 AS TEXT) WHERE key = 'index_version'`)
	return err
}

func currentIndexVersionTx(ctx context.Context, q queryer) (int64, error) {
	var v int64
	err := q.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = 'index_version'`).Scan(&v)
	return v, err
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getFragmentTx(ctx context.Context, q queryer, id string) (*Fragment, error) {
	f := &Fragment{}
	var parentID sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT id, kind, name, start_line, start_col, end_line, end_col, parent_id, file_path, language, created_at, updated_at
		FROM fragments WHERE id = ?`, id).Scan(
		&f.ID, &f.Kind, &f.Name, &f.StartLine, &f.StartCol, &f.EndLine, &f.EndCol, &parentID, &f.FilePath, &f.Language, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	f.ParentID = parentID.String
	return f, nil
}

func getAnnotationTx(ctx context.Context, q queryer, fragmentID string) (*Annotation, error) {
	a := &Annotation{FragmentID: fragmentID}
	var depsJSON string
	err := q.QueryRowContext(ctx, `
		SELECT signature, summary, complexity, dependencies, snippet, language, file_path, created_at, updated_at
		FROM annotations WHERE fragment_id = ?`, fragmentID).Scan(
		&a.Signature, &a.Summary, &a.Complexity, &depsJSON, &a.Snippet, &a.Language, &a.FilePath, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(depsJSON), &a.Dependencies); err != nil {
		return nil, fmt.Errorf("unmarshal dependencies: %w", err)
	}
	return a, nil
}

func getFileRecordTx(ctx context.Context, q queryer, path string) (*FileRecord, error) {
	fr := &FileRecord{Path: path}
	var idsJSON string
	err := q.QueryRowContext(ctx, `
		SELECT content_hash, mod_time, fragment_ids FROM files WHERE path = ?`, path).Scan(
		&fr.ContentHash, &fr.ModTime, &idsJSON)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(idsJSON), &fr.FragmentIDs); err != nil {
		return nil, fmt.Errorf("unmarshal fragment ids: %w", err)
	}
	return fr, nil
}

func allFileRecords(ctx context.Context, db *sql.DB) ([]*FileRecord, error) {
	rows, err := db.QueryContext(ctx, `SELECT path, content_hash, mod_time, fragment_ids FROM files`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*FileRecord
	for rows.Next() {
		fr := &FileRecord{}
		var idsJSON string
		if err := rows.Scan(&fr.Path, &fr.ContentHash, &fr.ModTime, &idsJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(idsJSON), &fr.FragmentIDs); err != nil {
			return nil, fmt.Errorf("unmarshal fragment ids for %s: %w", fr.Path, err)
		}
		out = append(out, fr)
	}
	return out, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
