package r2s3

import (
	"context"
	"fmt"
	"log"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Stats struct {
	Queued   uint64
	Uploaded uint64
	Failed   uint64
	Dropped  uint64
}

// Uploader is the part of Client the mirror needs.
type Uploader interface {
	PutFile(ctx context.Context, key, localPath string) error
}

// Mirror uploads files from a local directory in the background, keyed by
// their path relative to that directory under prefix.
type Mirror struct {
	up      Uploader
	baseDir string
	prefix  string
	logger  *log.Logger

	jobs    chan string
	wg      sync.WaitGroup
	closeMu sync.Mutex
	closed  bool
	backoff time.Duration

	queued   atomic.Uint64
	uploaded atomic.Uint64
	failed   atomic.Uint64
	dropped  atomic.Uint64
}

func NewMirror(up Uploader, baseDir, prefix string, workers int, logger *log.Logger) *Mirror {
	if workers <= 0 {
		workers = 1
	}
	m := &Mirror{
		up:      up,
		baseDir: baseDir,
		prefix:  strings.Trim(strings.ReplaceAll(prefix, "\\", "/"), "/"),
		logger:  logger,
		jobs:    make(chan string, 64),
		backoff: 200 * time.Millisecond,
	}
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for p := range m.jobs {
				m.uploadOne(p)
			}
		}()
	}
	return m
}

// Enqueue schedules localPath for upload. It never blocks: a full queue drops
// the file and counts it.
func (m *Mirror) Enqueue(localPath string) {
	if m == nil {
		return
	}
	m.closeMu.Lock()
	defer m.closeMu.Unlock()
	if m.closed {
		m.dropped.Add(1)
		return
	}
	select {
	case m.jobs <- localPath:
		m.queued.Add(1)
	default:
		m.dropped.Add(1)
		m.printf("mirror drop %s: queue full", localPath)
	}
}

// Close waits for queued uploads to finish. Later calls are no-ops.
func (m *Mirror) Close() {
	if m == nil {
		return
	}
	m.closeMu.Lock()
	if !m.closed {
		m.closed = true
		close(m.jobs)
	}
	m.closeMu.Unlock()
	m.wg.Wait()
}

func (m *Mirror) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	return Stats{
		Queued:   m.queued.Load(),
		Uploaded: m.uploaded.Load(),
		Failed:   m.failed.Load(),
		Dropped:  m.dropped.Load(),
	}
}

func (m *Mirror) uploadOne(localPath string) {
	key, err := m.ObjectKey(localPath)
	if err != nil {
		m.failed.Add(1)
		m.printf("mirror skip %s: %v", localPath, err)
		return
	}
	const maxAttempts = 4
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		err = m.up.PutFile(ctx, key, localPath)
		cancel()
		if err == nil {
			m.uploaded.Add(1)
			m.printf("mirror uploaded %s", key)
			return
		}
		if attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*attempt) * m.backoff)
	}
	m.failed.Add(1)
	m.printf("mirror upload %s failed: %v", key, err)
}

// ObjectKey maps a file under the base directory to its bucket key.
func (m *Mirror) ObjectKey(localPath string) (string, error) {
	absBase, err := filepath.Abs(m.baseDir)
	if err != nil {
		return "", err
	}
	absLocal, err := filepath.Abs(localPath)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absBase, absLocal)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside %s", absLocal, absBase)
	}
	if m.prefix != "" {
		rel = path.Join(m.prefix, rel)
	}
	return rel, nil
}

func (m *Mirror) printf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}
