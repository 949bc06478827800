// Package editor holds one editing session over a source file and its atlas:
// the operations a front end calls, each applied synchronously to the block
// store and recorded in the edit journal.
package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"

	"blockedit.ai/internal/atlas"
	"blockedit.ai/internal/blocks"
	"blockedit.ai/internal/codec/blockjs"
	"blockedit.ai/internal/config"
	"blockedit.ai/internal/persistence/backup"
	"blockedit.ai/internal/persistence/indexdb"
	persistlog "blockedit.ai/internal/persistence/log"
	"blockedit.ai/internal/persistence/r2s3"
	"blockedit.ai/internal/persistence/sourcefile"
)

var ErrNotLoaded = errors.New("no source file loaded")

type Options struct {
	Logger *log.Logger

	// Ephemeral skips backups, the save index and the journal.
	Ephemeral bool
}

type Session struct {
	cfg    config.Config
	logger *log.Logger

	store    *blocks.Store
	file     sourcefile.File
	loaded   bool
	dirty    bool
	selected int

	atlas   *atlas.Atlas
	backups *backup.Store
	mirror  *r2s3.Mirror
	index   *indexdb.SQLiteIndex
	journal *persistlog.EditLogger
}

// Status is a summary of the session for front ends.
type Status struct {
	Path     string
	Loaded   bool
	Dirty    bool
	Count    int
	Selected int
}

type SaveResult struct {
	Path    string
	Bytes   int
	Backup  string
	SaveID  string
	Changed bool
}

func Open(cfg config.Config, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	a, err := atlas.Open(cfg.Atlas.Path, atlas.Grid{Size: cfg.Atlas.Size, Cells: cfg.Atlas.Grid})
	if err != nil {
		return nil, err
	}
	s := &Session{
		cfg:      cfg,
		logger:   logger,
		store:    blocks.NewStore(nil, cfg.Presets()),
		selected: -1,
		atlas:    a,
	}
	if opts.Ephemeral {
		return s, nil
	}

	s.backups, err = backup.New(cfg.Backup.Dir, backup.Codec(cfg.Backup.Codec), cfg.Backup.Keep)
	if err != nil {
		return nil, err
	}
	if rc := cfg.Backup.Remote; rc.Enabled() {
		client, err := r2s3.New(rc.Endpoint, rc.Bucket, rc.Region, r2s3.CredentialsFromEnv())
		if err != nil {
			return nil, fmt.Errorf("backup remote: %w", err)
		}
		s.mirror = r2s3.NewMirror(client, cfg.Backup.Dir, rc.Prefix, rc.Workers, logger)
	}
	s.index, err = indexdb.OpenSQLite(cfg.IndexDB)
	if err != nil {
		s.mirror.Close()
		return nil, fmt.Errorf("index db: %w", err)
	}
	s.journal = persistlog.NewEditLogger(cfg.JournalDir)
	return s, nil
}

// Close flushes the journal and closes the index and mirror. Later calls are
// no-ops.
func (s *Session) Close() error {
	s.mirror.Close()
	err1 := s.journal.Close()
	err2 := s.index.Close()
	s.mirror, s.journal, s.index = nil, nil, nil
	if err1 != nil {
		return err1
	}
	return err2
}

func (s *Session) Config() config.Config       { return s.cfg }
func (s *Session) Atlas() *atlas.Atlas         { return s.atlas }
func (s *Session) Backups() *backup.Store      { return s.backups }
func (s *Session) Index() *indexdb.SQLiteIndex { return s.index }
func (s *Session) Presets() blocks.Presets     { return s.store.Presets() }

func (s *Session) Status() Status {
	return Status{
		Path:     s.file.Path,
		Loaded:   s.loaded,
		Dirty:    s.dirty,
		Count:    s.store.Len(),
		Selected: s.selected,
	}
}

// Records lists every record in store order.
func (s *Session) Records() []blocks.Record { return s.store.Records() }

func (s *Session) Record(i int) (blocks.Record, error) { return s.store.At(i) }

// Load replaces the table with the one in path, or the configured source
// file when path is empty. On failure the table is left empty.
func (s *Session) Load(path string) error {
	if path == "" {
		path = s.cfg.SourcePath
	}
	f, recs, err := sourcefile.Load(path)
	if err != nil {
		s.store.Replace(nil)
		s.file = sourcefile.File{}
		s.loaded = false
		s.dirty = false
		s.selected = -1
		return err
	}
	s.store.Replace(recs)
	s.file = f
	s.loaded = true
	s.dirty = false
	s.selected = -1
	s.logger.Printf("loaded %d blocks from %s", len(recs), path)
	s.record(persistlog.EditEntry{Op: "load", Path: path, Index: -1, Detail: fmt.Sprintf("%d blocks", len(recs))})
	return nil
}

// Save writes the table into path, or the loaded file when path is empty.
// The text around the table is re-read from disk so outside edits survive;
// a target that is missing or has no table gets the loaded file's text.
// A failed save leaves the table and the loaded file untouched.
func (s *Session) Save(ctx context.Context, path string) (SaveResult, error) {
	if !s.loaded {
		return SaveResult{}, ErrNotLoaded
	}
	if path == "" {
		path = s.file.Path
	}
	if path == "" {
		path = s.cfg.SourcePath
	}
	tmpl, cur, err := s.saveTemplate(path)
	if err != nil {
		return SaveResult{}, err
	}
	recs := s.store.Records()
	text, err := sourcefile.Render(tmpl, recs)
	if err != nil {
		return SaveResult{}, err
	}

	res := SaveResult{Path: path, Bytes: len(text), Changed: cur == nil || text != cur.Text}
	if res.Changed && cur != nil && s.backups != nil {
		e, err := s.backup(path, cur.Text)
		if err != nil {
			return SaveResult{}, fmt.Errorf("backup before save: %w", err)
		}
		res.Backup = e.Path
	}

	written, err := sourcefile.Write(path, tmpl, text)
	if err != nil {
		return SaveResult{}, err
	}
	s.file = written
	s.loaded = true
	s.dirty = false

	if s.index != nil {
		rec, err := s.index.RecordSave(ctx, path, recs, int64(len(text)), res.Backup)
		if err != nil {
			s.logger.Printf("index save %s: %v", path, err)
		} else {
			res.SaveID = rec.SaveID
		}
	}
	s.logger.Printf("saved %d blocks to %s (%d bytes)", len(recs), path, len(text))
	s.record(persistlog.EditEntry{Op: "save", Path: path, Index: -1, Detail: res.SaveID})
	return res, nil
}

// saveTemplate picks the text the table is spliced into and returns the
// current contents of path, nil when it does not exist.
func (s *Session) saveTemplate(path string) (sourcefile.File, *sourcefile.File, error) {
	cur, err := sourcefile.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s.file, nil, nil
	}
	if err != nil {
		return sourcefile.File{}, nil, err
	}
	if path != s.file.Path {
		if _, err := blockjs.Locate(cur.Text); err != nil {
			return s.file, &cur, nil
		}
	}
	return cur, &cur, nil
}

// Restore writes the contents of a backup back over path (the loaded file
// when empty) and reloads it. The current contents are backed up first.
func (s *Session) Restore(ctx context.Context, backupPath, path string) error {
	raw, err := backup.Read(backupPath)
	if err != nil {
		return err
	}
	if _, err := blockjs.Locate(string(raw)); err != nil {
		return fmt.Errorf("backup %s: %w", backupPath, err)
	}
	if path == "" {
		path = s.file.Path
	}
	if path == "" {
		path = s.cfg.SourcePath
	}
	cur, err := sourcefile.Read(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err == nil && cur.Text != string(raw) && s.backups != nil {
		if _, err := s.backup(path, cur.Text); err != nil {
			return fmt.Errorf("backup before restore: %w", err)
		}
	}
	if _, err := sourcefile.Write(path, cur, string(raw)); err != nil {
		return err
	}
	if err := s.Load(path); err != nil {
		return err
	}
	s.record(persistlog.EditEntry{Op: "restore", Path: path, Index: -1, Detail: backupPath})
	return nil
}

// Replace swaps the whole table, e.g. after a JSON import.
func (s *Session) Replace(recs []blocks.Record, reason string) {
	s.store.Replace(recs)
	s.dirty = true
	s.selected = -1
	s.record(persistlog.EditEntry{Op: "replace", Index: -1, Detail: reason})
}

func (s *Session) Dirty() bool { return s.dirty }

// backup stores text as a backup of path and queues it for the remote mirror.
func (s *Session) backup(path, text string) (backup.Entry, error) {
	e, err := s.backups.Write(path, []byte(text))
	if err != nil {
		return e, err
	}
	s.mirror.Enqueue(e.Path)
	return e, nil
}

func (s *Session) record(e persistlog.EditEntry) {
	if err := s.journal.WriteEdit(e); err != nil {
		s.logger.Printf("journal %s: %v", e.Op, err)
	}
}
