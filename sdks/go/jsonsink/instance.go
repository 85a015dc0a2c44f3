package jsonsink

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ensureInstanceID returns a stable id stored under ~/.jsonsink, or an
// ephemeral one when the home directory is unusable.
func ensureInstanceID() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return uuid.New().String()
	}
	return instanceIDIn(filepath.Join(homeDir, ".jsonsink"))
}

func instanceIDIn(dir string) string {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return uuid.New().String()
	}

	idFile := filepath.Join(dir, "id")
	if data, err := os.ReadFile(idFile); err == nil {
		if id, err := uuid.Parse(strings.TrimSpace(string(data))); err == nil {
			return id.String()
		}
	}

	newID := uuid.New().String()
	_ = os.WriteFile(idFile, []byte(newID), 0644)
	return newID
}
