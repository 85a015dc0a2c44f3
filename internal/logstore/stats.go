package logstore

import "time"

// Stats is a point-in-time view of a Store for the status API.
type Stats struct {
	Path     string    `json:"path"`
	State    State     `json:"state"`
	Entries  int64     `json:"entries"`  // entries appended this run
	Bytes    int64     `json:"bytes"`    // current file size
	OpenedAt time.Time `json:"opened_at"`
}
