package logstore

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the timestamp embedded in log file names.
const TimeLayout = "20060102_150405"

const (
	filePrefix    = "log_"
	fileExt       = ".json"
	ArchiveSuffix = ".zst"
)

// FileName returns the log file name for a run started at ts.
// seq > 0 disambiguates runs started within the same second.
//
//	log_20240131_235959.json
//	log_20240131_235959_1.json
func FileName(ts time.Time, seq int) string {
	name := filePrefix + ts.Format(TimeLayout)
	if seq > 0 {
		name += "_" + strconv.Itoa(seq)
	}
	return name + fileExt
}

// IsLogFile reports whether name looks like a log file or its archive.
func IsLogFile(name string) bool {
	_, err := ParseFileTime(name)
	return err == nil
}

// ParseFileTime extracts the run start time from a log or archive file name.
// The result is in the local time zone, matching FileName.
func ParseFileTime(name string) (time.Time, error) {
	base := strings.TrimSuffix(name, ArchiveSuffix)
	if !strings.HasPrefix(base, filePrefix) || !strings.HasSuffix(base, fileExt) {
		return time.Time{}, fmt.Errorf("invalid log file name %q", name)
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(base, filePrefix), fileExt)

	// Optional _<seq> after the timestamp.
	if len(stamp) > len(TimeLayout) {
		seq := stamp[len(TimeLayout):]
		if seq[0] != '_' {
			return time.Time{}, fmt.Errorf("invalid log file name %q", name)
		}
		if !validSeq(seq[1:]) {
			return time.Time{}, fmt.Errorf("invalid sequence in %q", name)
		}
		stamp = stamp[:len(TimeLayout)]
	}

	ts, err := time.ParseInLocation(TimeLayout, stamp, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp in %q: %w", name, err)
	}
	return ts, nil
}

// validSeq accepts the decimal form FileName produces for seq > 0.
func validSeq(seq string) bool {
	if seq == "" || seq[0] == '0' {
		return false
	}
	for _, c := range seq {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
