// Package validate checks whether a file on disk holds one well-formed JSON
// document. It is meant to be run against a finalized log file.
package validate

import (
	"fmt"
	"os"

	"github.com/coffersTech/jsonsink/internal/storage"
	"github.com/valyala/fastjson"
)

// Result describes the outcome of CheckFile.
type Result struct {
	Path   string
	Exists bool
	Valid  bool
	Err    error // read or decode error, nil when Valid
}

// Message renders the result for people.
func (r Result) Message() string {
	switch {
	case !r.Exists:
		return fmt.Sprintf("File %s does not exist.", r.Path)
	case r.Valid:
		return fmt.Sprintf("File %s is a valid JSON.", r.Path)
	default:
		return fmt.Sprintf("File %s is not a valid JSON. Error: %v", r.Path, r.Err)
	}
}

// CheckFile parses path as JSON. Archived (.zst) logs are decompressed first.
func CheckFile(path string) Result {
	res := Result{Path: path}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return res
	}
	res.Exists = true

	data, err := storage.ReadLog(path)
	if err != nil {
		res.Err = err
		return res
	}

	if err := fastjson.ValidateBytes(data); err != nil {
		res.Err = err
		return res
	}
	res.Valid = true
	return res
}
