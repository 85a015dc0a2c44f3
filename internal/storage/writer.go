package storage

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/coffersTech/jsonsink/internal/logstore"
	"github.com/klauspost/compress/zstd"
	"github.com/valyala/fastjson"
)

// Archiver compresses finalized log files with zstd.
type Archiver struct {
	encoder *zstd.Encoder
}

func NewArchiver() (*Archiver, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	return &Archiver{encoder: enc}, nil
}

// ArchiveFile writes path+".zst" and removes path on success. An existing
// archive is left alone and reported as an error wrapping os.ErrExist.
func (a *Archiver) ArchiveFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	compressed := a.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2))

	dst := path + logstore.ArchiveSuffix
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0644); err != nil {
		return "", fmt.Errorf("write archive: %w", err)
	}
	// Link fails if dst exists, so an older archive is never replaced.
	err = os.Link(tmp, dst)
	os.Remove(tmp)
	if err != nil {
		return "", fmt.Errorf("publish archive %s: %w", dst, err)
	}
	if err := os.Remove(path); err != nil {
		return dst, fmt.Errorf("remove archived source: %w", err)
	}
	return dst, nil
}

// ArchiveDir archives every finalized log file in dir except keep.
// Files that are not valid JSON (runs that never finalized) are skipped.
func (a *Archiver) ArchiveDir(dir, keep string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	keep = filepath.Base(keep)
	var archived []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == keep || strings.HasSuffix(name, logstore.ArchiveSuffix) {
			continue
		}
		if !logstore.IsLogFile(name) {
			continue
		}

		path := filepath.Join(dir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Archive: failed to read %s: %v", name, err)
			continue
		}
		if err := fastjson.ValidateBytes(raw); err != nil {
			log.Printf("Archive: skipping unfinalized %s: %v", name, err)
			continue
		}

		dst, err := a.ArchiveFile(path)
		if err != nil {
			return archived, fmt.Errorf("archive %s: %w", name, err)
		}
		archived = append(archived, dst)
	}
	return archived, nil
}

// Close releases encoder resources.
func (a *Archiver) Close() error {
	return a.encoder.Close()
}
