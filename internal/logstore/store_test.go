package logstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

var fixedStart = time.Date(2024, 1, 31, 23, 59, 58, 0, time.Local)

func fixedClock() time.Time { return fixedStart }

func openTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(dir, WithClock(fixedClock))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s
}

func readLogs(t *testing.T, path string) []json.RawMessage {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var doc struct {
		Logs []json.RawMessage `json:"logs"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("finalized file is not valid JSON: %v\n%s", err, data)
	}
	if doc.Logs == nil {
		t.Fatalf("missing logs array in %s", data)
	}
	return doc.Logs
}

func TestOpen_CreatesDirAndPrefix(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	s := openTestStore(t, dir)
	defer s.Finalize()

	want := filepath.Join(dir, "log_20240131_235958.json")
	if s.Path() != want {
		t.Errorf("Path = %q, want %q", s.Path(), want)
	}

	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "{\"logs\": [\n" {
		t.Errorf("opening fragment = %q", data)
	}
}

func TestOpen_FailsWhenDirIsFile(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "logs")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(blocker); err == nil {
		t.Fatal("expected error when log dir is a regular file")
	}
}

func TestOpen_NameCollisionPicksNewFile(t *testing.T) {
	dir := t.TempDir()
	first := openTestStore(t, dir)
	if err := first.Append([]byte(`{"run":1}`)); err != nil {
		t.Fatal(err)
	}
	if err := first.Finalize(); err != nil {
		t.Fatal(err)
	}

	second := openTestStore(t, dir)
	if second.Path() == first.Path() {
		t.Fatalf("second run reused %s", first.Path())
	}
	if filepath.Base(second.Path()) != "log_20240131_235958_1.json" {
		t.Errorf("unexpected collision name %s", second.Path())
	}
	if err := second.Append([]byte(`{"run":2}`)); err != nil {
		t.Fatal(err)
	}
	if err := second.Finalize(); err != nil {
		t.Fatal(err)
	}

	if got := readLogs(t, first.Path()); len(got) != 1 || string(got[0]) != `{"run":1}` {
		t.Errorf("first file changed: %s", got)
	}
	if got := readLogs(t, second.Path()); len(got) != 1 || string(got[0]) != `{"run":2}` {
		t.Errorf("second file = %s", got)
	}
}

func TestAppendFinalize_RoundTrip(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	if err := s.Append([]byte(`{"x":1}`)); err != nil {
		t.Fatal(err)
	}
	if err := s.Finalize(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "{\"logs\": [\n\t{\"x\":1}\n]}" {
		t.Errorf("file = %q", data)
	}

	var got, want interface{}
	json.Unmarshal(data, &got)
	json.Unmarshal([]byte(`{"logs": [{"x":1}]}`), &want)
	gotJSON, _ := json.Marshal(got)
	wantJSON, _ := json.Marshal(want)
	if !bytes.Equal(gotJSON, wantJSON) {
		t.Errorf("parsed = %s, want %s", gotJSON, wantJSON)
	}
}

func TestFinalize_PreservesOrder(t *testing.T) {
	payloads := []string{`1`, `"two"`, `{"three":3}`, `[4,4]`, `null`}

	s := openTestStore(t, t.TempDir())
	for _, p := range payloads {
		if err := s.Append([]byte(p)); err != nil {
			t.Fatalf("Append(%s): %v", p, err)
		}
	}
	if err := s.Finalize(); err != nil {
		t.Fatal(err)
	}

	logs := readLogs(t, s.Path())
	if len(logs) != len(payloads) {
		t.Fatalf("got %d entries, want %d", len(logs), len(payloads))
	}
	for i, p := range payloads {
		if string(logs[i]) != p {
			t.Errorf("entry %d = %s, want %s", i, logs[i], p)
		}
	}
}

func TestFinalize_ZeroEntries(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	if err := s.Finalize(); err != nil {
		t.Fatal(err)
	}

	if logs := readLogs(t, s.Path()); len(logs) != 0 {
		t.Errorf("expected empty array, got %d entries", len(logs))
	}
}

func TestFinalize_Twice(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	s.Append([]byte(`1`))
	if err := s.Finalize(); err != nil {
		t.Fatal(err)
	}
	before, _ := os.ReadFile(s.Path())

	if err := s.Finalize(); !errors.Is(err, ErrFinalized) {
		t.Errorf("second Finalize = %v, want ErrFinalized", err)
	}
	after, _ := os.ReadFile(s.Path())
	if !bytes.Equal(before, after) {
		t.Errorf("second Finalize modified the file:\n%q\n%q", before, after)
	}
}

func TestAppend_AfterFinalize(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	if err := s.Finalize(); err != nil {
		t.Fatal(err)
	}
	if err := s.Append([]byte(`1`)); !errors.Is(err, ErrFinalized) {
		t.Errorf("Append after Finalize = %v, want ErrFinalized", err)
	}
	if logs := readLogs(t, s.Path()); len(logs) != 0 {
		t.Errorf("file gained entries after Finalize: %d", len(logs))
	}
}

func TestAppend_Concurrent(t *testing.T) {
	const writers = 64
	s, err := Open(t.TempDir(), WithClock(fixedClock), WithSync(false))
	if err != nil {
		t.Fatal(err)
	}

	// Large markers make torn writes visible.
	marker := func(i int) string {
		return fmt.Sprintf(`{"id":%d,"pad":"%s"}`, i, strings.Repeat(string(rune('a'+i%26)), 4096))
	}

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.Append([]byte(marker(i))); err != nil {
				t.Errorf("Append %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if err := s.Finalize(); err != nil {
		t.Fatal(err)
	}

	logs := readLogs(t, s.Path())
	if len(logs) != writers {
		t.Fatalf("got %d entries, want %d", len(logs), writers)
	}
	seen := make(map[string]bool, writers)
	for _, l := range logs {
		seen[string(l)] = true
	}
	for i := 0; i < writers; i++ {
		if !seen[marker(i)] {
			t.Errorf("marker %d missing or torn", i)
		}
	}

	// Every entry sits on its own line between the array brackets.
	data, _ := os.ReadFile(s.Path())
	lines := strings.Split(string(data), "\n")
	if len(lines) != writers+2 {
		t.Fatalf("got %d lines, want %d", len(lines), writers+2)
	}
	for _, line := range lines[1 : len(lines)-1] {
		entry := strings.TrimSuffix(strings.TrimPrefix(line, "\t"), ",")
		if !seen[entry] {
			t.Errorf("line is not a whole marker: %.40q", line)
		}
	}
}

func TestStats(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	s.Append([]byte(`{"a":1}`))
	s.Append([]byte(`{"b":2}`))

	st := s.Stats()
	if st.State != StateOpen || st.Entries != 2 {
		t.Errorf("open stats = %+v", st)
	}
	if !st.OpenedAt.Equal(fixedStart) {
		t.Errorf("OpenedAt = %v", st.OpenedAt)
	}

	if err := s.Finalize(); err != nil {
		t.Fatal(err)
	}
	st = s.Stats()
	info, err := os.Stat(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	if st.State != StateFinalized || st.Bytes != info.Size() {
		t.Errorf("final stats = %+v, file size %d", st, info.Size())
	}
}

func TestOpen_SkipsNameWithArchive(t *testing.T) {
	dir := t.TempDir()
	archived := filepath.Join(dir, FileName(fixedStart, 0)+ArchiveSuffix)
	if err := os.WriteFile(archived, []byte("zst"), 0644); err != nil {
		t.Fatal(err)
	}

	s := openTestStore(t, dir)
	defer s.Finalize()

	if filepath.Base(s.Path()) != FileName(fixedStart, 1) {
		t.Errorf("Path = %s, want the _1 name", s.Path())
	}
	if _, err := os.Stat(filepath.Join(dir, FileName(fixedStart, 0))); !os.IsNotExist(err) {
		t.Errorf("archived run's plain name should stay free, stat err = %v", err)
	}
}

func TestFinalize_SealFailureStillCloses(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	if err := s.Append([]byte(`1`)); err != nil {
		t.Fatal(err)
	}
	// A closed handle makes every step of sealing fail.
	s.file.Close()

	if err := s.Finalize(); err == nil {
		t.Fatal("expected Finalize to report the failure")
	}
	if st := s.Stats(); st.State != StateFinalized {
		t.Errorf("State = %s, want %s", st.State, StateFinalized)
	}
	if err := s.Finalize(); !errors.Is(err, ErrFinalized) {
		t.Errorf("second Finalize = %v, want ErrFinalized", err)
	}
	if err := s.Append([]byte(`2`)); !errors.Is(err, ErrFinalized) {
		t.Errorf("Append after failed Finalize = %v, want ErrFinalized", err)
	}
}
