package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"blockedit.ai/internal/blocks"
)

// SQLiteIndex records every save of a source file along with the block rows
// it wrote.
type SQLiteIndex struct {
	db   *sql.DB
	once sync.Once
}

type SaveRecord struct {
	SaveID     string
	Path       string
	Digest     string
	Blocks     int
	Bytes      int64
	BackupPath string
	SavedAt    time.Time
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteIndex{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS saves (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			save_id TEXT NOT NULL UNIQUE,
			path TEXT NOT NULL,
			digest TEXT NOT NULL,
			blocks INTEGER NOT NULL,
			bytes INTEGER NOT NULL,
			backup_path TEXT NOT NULL,
			saved_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_saves_path ON saves(path, seq);`,
		`CREATE TABLE IF NOT EXISTS save_blocks (
			save_id TEXT NOT NULL REFERENCES saves(save_id) ON DELETE CASCADE,
			pos INTEGER NOT NULL,
			block_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (save_id, pos)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_save_blocks_id ON save_blocks(block_id);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	if s == nil {
		return nil
	}
	var err error
	s.once.Do(func() { err = s.db.Close() })
	return err
}

// RecordSave stores one save of path. size is the byte length of the file
// written; backupPath may be empty when nothing existed before.
func (s *SQLiteIndex) RecordSave(ctx context.Context, path string, recs []blocks.Record, size int64, backupPath string) (SaveRecord, error) {
	if s == nil {
		return SaveRecord{}, nil
	}
	r := SaveRecord{
		SaveID:     uuid.NewString(),
		Path:       path,
		Digest:     blocks.Digest(recs),
		Blocks:     len(recs),
		Bytes:      size,
		BackupPath: backupPath,
		SavedAt:    time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SaveRecord{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO saves(save_id,path,digest,blocks,bytes,backup_path,saved_at) VALUES(?,?,?,?,?,?,?)`,
		r.SaveID, r.Path, r.Digest, r.Blocks, r.Bytes, r.BackupPath, r.SavedAt.Format(time.RFC3339Nano),
	); err != nil {
		return SaveRecord{}, err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO save_blocks(save_id,pos,block_id,name,raw_json) VALUES(?,?,?,?,?)`)
	if err != nil {
		return SaveRecord{}, err
	}
	defer stmt.Close()
	for i, rec := range recs {
		b, err := json.Marshal(rec)
		if err != nil {
			return SaveRecord{}, err
		}
		if _, err := stmt.ExecContext(ctx, r.SaveID, i, rec.ID, rec.Name, string(b)); err != nil {
			return SaveRecord{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return SaveRecord{}, err
	}
	return r, nil
}

// History lists saves newest first. An empty path lists all files; limit <= 0
// means no limit.
func (s *SQLiteIndex) History(ctx context.Context, path string, limit int) ([]SaveRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	q := `SELECT save_id,path,digest,blocks,bytes,backup_path,saved_at FROM saves`
	args := []any{}
	if path != "" {
		q += ` WHERE path=?`
		args = append(args, path)
	}
	q += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SaveRecord
	for rows.Next() {
		var (
			r       SaveRecord
			savedAt string
		)
		if err := rows.Scan(&r.SaveID, &r.Path, &r.Digest, &r.Blocks, &r.Bytes, &r.BackupPath, &savedAt); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, savedAt); err == nil {
			r.SavedAt = ts
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// BlocksAt returns the records written by one save, in file order.
func (s *SQLiteIndex) BlocksAt(ctx context.Context, saveID string) ([]blocks.Record, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM saves WHERE save_id=?`, saveID).Scan(&n); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("save %s: %w", saveID, sql.ErrNoRows)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT raw_json FROM save_blocks WHERE save_id=? ORDER BY pos`, saveID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []blocks.Record{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var rec blocks.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("save %s: %w", saveID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// BlockHistory returns every saved version of the block with the given id in
// path, newest first.
func (s *SQLiteIndex) BlockHistory(ctx context.Context, path string, id int) ([]SaveRecord, []blocks.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.save_id,s.path,s.digest,s.blocks,s.bytes,s.backup_path,s.saved_at,b.raw_json
		FROM save_blocks b JOIN saves s ON s.save_id=b.save_id
		WHERE s.path=? AND b.block_id=?
		ORDER BY s.seq DESC, b.pos`, path, id)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var (
		saves []SaveRecord
		recs  []blocks.Record
	)
	for rows.Next() {
		var (
			r       SaveRecord
			savedAt string
			raw     string
		)
		if err := rows.Scan(&r.SaveID, &r.Path, &r.Digest, &r.Blocks, &r.Bytes, &r.BackupPath, &savedAt, &raw); err != nil {
			return nil, nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, savedAt); err == nil {
			r.SavedAt = ts
		}
		var rec blocks.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, nil, err
		}
		saves = append(saves, r)
		recs = append(recs, rec)
	}
	return saves, recs, rows.Err()
}
