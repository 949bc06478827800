// Package backup keeps compressed copies of a source file taken right before
// it is overwritten.
package backup

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4"
)

type Codec string

const (
	CodecZstd Codec = "zstd"
	CodecLZ4  Codec = "lz4"
)

func (c Codec) ext() string {
	switch c {
	case CodecLZ4:
		return ".lz4"
	default:
		return ".zst"
	}
}

func codecForPath(path string) (Codec, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst":
		return CodecZstd, nil
	case ".lz4":
		return CodecLZ4, nil
	default:
		return "", fmt.Errorf("backup %s: unknown compression", filepath.Base(path))
	}
}

// stampLayout sorts lexically in time order.
const stampLayout = "20060102T150405.000000000Z"

type Entry struct {
	Path    string
	Source  string // base name of the backed-up file
	Key     string // Source plus a hash of its absolute path
	Created time.Time
	Size    int64
	Codec   Codec
}

type Store struct {
	dir   string
	codec Codec
	keep  int

	now func() time.Time
}

// New returns a store writing into dir. keep <= 0 disables pruning.
func New(dir string, codec Codec, keep int) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("empty backup dir")
	}
	switch codec {
	case "":
		codec = CodecZstd
	case CodecZstd, CodecLZ4:
	default:
		return nil, fmt.Errorf("unknown backup codec %q", codec)
	}
	return &Store{dir: dir, codec: codec, keep: keep, now: time.Now}, nil
}

func (s *Store) Dir() string { return s.dir }

// sourceKey names the backups of one file. Files that share a base name in
// different directories get different keys.
func sourceKey(sourcePath string) string {
	abs, err := filepath.Abs(sourcePath)
	if err != nil {
		abs = filepath.Clean(sourcePath)
	}
	sum := sha256.Sum256([]byte(abs))
	return filepath.Base(sourcePath) + "-" + hex.EncodeToString(sum[:4])
}

// Write stores content as the newest backup of sourcePath and prunes older
// ones beyond the keep limit.
func (s *Store) Write(sourcePath string, content []byte) (Entry, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Entry{}, err
	}
	base := filepath.Base(sourcePath)
	key := sourceKey(sourcePath)
	created := s.now().UTC()
	path := filepath.Join(s.dir, key+"@"+created.Format(stampLayout)+s.codec.ext())

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return Entry{}, err
	}
	if err := compress(f, s.codec, content); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return Entry{}, fmt.Errorf("backup %s: %w", base, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return Entry{}, err
	}
	st, err := os.Stat(path)
	if err != nil {
		return Entry{}, err
	}
	if _, err := s.Prune(sourcePath); err != nil {
		return Entry{}, err
	}
	return Entry{Path: path, Source: base, Key: key, Created: created, Size: st.Size(), Codec: s.codec}, nil
}

func compress(w io.Writer, codec Codec, content []byte) error {
	switch codec {
	case CodecLZ4:
		zw := lz4.NewWriter(w)
		if _, err := zw.Write(content); err != nil {
			_ = zw.Close()
			return err
		}
		return zw.Close()
	default:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return err
		}
		bw := bufio.NewWriterSize(enc, 64*1024)
		if _, err := bw.Write(content); err != nil {
			_ = enc.Close()
			return err
		}
		if err := bw.Flush(); err != nil {
			_ = enc.Close()
			return err
		}
		return enc.Close()
	}
}

// List returns backups of sourcePath, newest first. An empty sourcePath
// lists every backup in the directory.
func (s *Store) List(sourcePath string) ([]Entry, error) {
	des, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	want := ""
	if sourcePath != "" {
		want = sourceKey(sourcePath)
	}
	var out []Entry
	for _, de := range des {
		if de.IsDir() {
			continue
		}
		e, ok := parseName(de.Name())
		if !ok || (want != "" && e.Key != want) {
			continue
		}
		e.Path = filepath.Join(s.dir, de.Name())
		if info, err := de.Info(); err == nil {
			e.Size = info.Size()
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Created.Equal(out[j].Created) {
			return out[i].Created.After(out[j].Created)
		}
		return out[i].Path > out[j].Path
	})
	return out, nil
}

func parseName(name string) (Entry, bool) {
	codec, err := codecForPath(name)
	if err != nil {
		return Entry{}, false
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	at := strings.LastIndexByte(stem, '@')
	if at <= 0 {
		return Entry{}, false
	}
	created, err := time.Parse(stampLayout, stem[at+1:])
	if err != nil {
		return Entry{}, false
	}
	key := stem[:at]
	dash := strings.LastIndexByte(key, '-')
	if dash <= 0 {
		return Entry{}, false
	}
	return Entry{Source: key[:dash], Key: key, Created: created, Codec: codec}, true
}

// Prune removes backups of sourcePath beyond the keep limit, oldest first.
func (s *Store) Prune(sourcePath string) ([]string, error) {
	if s.keep <= 0 {
		return nil, nil
	}
	entries, err := s.List(sourcePath)
	if err != nil {
		return nil, err
	}
	if len(entries) <= s.keep {
		return nil, nil
	}
	var removed []string
	for _, e := range entries[s.keep:] {
		if err := os.Remove(e.Path); err != nil && !os.IsNotExist(err) {
			return removed, err
		}
		removed = append(removed, e.Path)
	}
	return removed, nil
}

// Latest returns the newest backup of sourcePath.
func (s *Store) Latest(sourcePath string) (Entry, bool, error) {
	entries, err := s.List(sourcePath)
	if err != nil || len(entries) == 0 {
		return Entry{}, false, err
	}
	return entries[0], true, nil
}

// Read decompresses a backup file. The codec is chosen by extension.
func Read(path string) ([]byte, error) {
	codec, err := codecForPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	switch codec {
	case CodecLZ4:
		if _, err := io.Copy(&buf, lz4.NewReader(f)); err != nil {
			return nil, fmt.Errorf("backup %s: %w", filepath.Base(path), err)
		}
	default:
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		if _, err := io.Copy(&buf, bufio.NewReaderSize(dec, 64*1024)); err != nil {
			return nil, fmt.Errorf("backup %s: %w", filepath.Base(path), err)
		}
	}
	return buf.Bytes(), nil
}
