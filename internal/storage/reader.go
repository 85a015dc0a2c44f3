package storage

import (
	"fmt"
	"os"
	"strings"

	"github.com/coffersTech/jsonsink/internal/logstore"
	"github.com/klauspost/compress/zstd"
)

// ReadLog returns the JSON bytes of a log file, decompressing .zst archives.
func ReadLog(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, logstore.ArchiveSuffix) {
		return raw, nil
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	data, err := dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", path, err)
	}
	return data, nil
}
