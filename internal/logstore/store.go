package logstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	// ErrFinalized is returned by Append and Finalize once the log has been closed.
	ErrFinalized = errors.New("logstore: log already finalized")
)

const (
	openingFragment = "{\"logs\": [\n"
	closingFragment = "\n]}"
	entrySuffix     = ",\n"
)

// State reports where a Store is in its lifecycle.
type State string

const (
	StateOpen      State = "open"
	StateFinalized State = "finalized"
)

// Store appends raw payloads to a single JSON document on disk.
// The file is opened once and is only valid JSON after Finalize.
type Store struct {
	file     *os.File
	path     string
	mu       sync.Mutex
	state    State
	entries  int64
	written  int64
	openedAt time.Time
	sync     bool
}

type options struct {
	now  func() time.Time
	sync bool
	mode os.FileMode
}

// Option configures Open.
type Option func(*options)

// WithClock overrides the clock used to name the log file.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithSync makes every Append fsync the file before returning.
func WithSync(enabled bool) Option {
	return func(o *options) { o.sync = enabled }
}

// WithFileMode sets the permission bits used when creating the log file.
func WithFileMode(mode os.FileMode) Option {
	return func(o *options) { o.mode = mode }
}

// Open creates dir if needed and opens a fresh log file named after the
// current time. The opening fragment is written immediately.
func Open(dir string, opts ...Option) (*Store, error) {
	o := options{now: time.Now, mode: 0644}
	for _, opt := range opts {
		opt(&o)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log dir %s: %w", dir, err)
	}

	openedAt := o.now()
	f, path, err := openFresh(dir, openedAt, o.mode)
	if err != nil {
		return nil, err
	}

	s := &Store{
		file:     f,
		path:     path,
		state:    StateOpen,
		openedAt: openedAt,
		sync:     o.sync,
	}

	n, err := f.WriteString(openingFragment)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("write opening fragment: %w", err)
	}
	s.written = int64(n)

	return s, nil
}

// openFresh opens the first candidate name that is still empty. A non-empty
// file or an archive under the same name belongs to another run started
// within the same second.
func openFresh(dir string, ts time.Time, mode os.FileMode) (*os.File, string, error) {
	for seq := 0; ; seq++ {
		path := filepath.Join(dir, FileName(ts, seq))
		if _, err := os.Stat(path + ArchiveSuffix); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return nil, "", fmt.Errorf("stat %s: %w", path+ArchiveSuffix, err)
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, mode)
		if err != nil {
			return nil, "", fmt.Errorf("open log file %s: %w", path, err)
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, "", fmt.Errorf("stat %s: %w", path, err)
		}
		if info.Size() == 0 {
			return f, path, nil
		}
		f.Close()
	}
}

// Append writes one entry. Entries land in the order Append is called.
func (s *Store) Append(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpen {
		return ErrFinalized
	}

	// Single write so concurrent entries never interleave.
	buf := make([]byte, 0, len(payload)+3)
	buf = append(buf, '\t')
	buf = append(buf, payload...)
	buf = append(buf, entrySuffix...)

	n, err := s.file.Write(buf)
	s.written += int64(n)
	if err != nil {
		return fmt.Errorf("append to %s: %w", s.path, err)
	}
	s.entries++

	if s.sync {
		if err := s.file.Sync(); err != nil {
			return fmt.Errorf("sync %s: %w", s.path, err)
		}
	}
	return nil
}

// Finalize turns the file into valid JSON and closes it. It must only be
// called once no Append can still be running; later calls return ErrFinalized.
func (s *Store) Finalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpen {
		return ErrFinalized
	}
	s.state = StateFinalized

	err := s.seal()
	if cerr := s.file.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("close %s: %w", s.path, cerr))
	}
	return err
}

func (s *Store) seal() error {
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", s.path, err)
	}

	// With no entries the opening fragment stays intact and the array is empty.
	if s.entries > 0 {
		end, err := s.file.Seek(-int64(len(entrySuffix)), io.SeekEnd)
		if err != nil {
			return fmt.Errorf("seek %s: %w", s.path, err)
		}
		if err := s.file.Truncate(end); err != nil {
			return fmt.Errorf("truncate %s: %w", s.path, err)
		}
		s.written = end
	}

	n, err := s.file.WriteString(closingFragment)
	s.written += int64(n)
	if err != nil {
		return fmt.Errorf("write closing fragment: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", s.path, err)
	}
	return nil
}

// Path returns the log file location.
func (s *Store) Path() string {
	return s.path
}

// Stats returns a snapshot of the store.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Path:     s.path,
		State:    s.state,
		Entries:  s.entries,
		Bytes:    s.written,
		OpenedAt: s.openedAt,
	}
}
