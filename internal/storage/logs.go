package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// LogStorage writes step output under <base>/<run-id>/<entry>/.
type LogStorage struct {
	BaseDir string
}

// NewLogStorage creates a log storage handler rooted at baseDir.
func NewLogStorage(baseDir string) *LogStorage {
	return &LogStorage{BaseDir: baseDir}
}

// SaveStepLog writes one step's captured output and returns the file path.
// The sequence number keeps files in step order.
func (ls *LogStorage) SaveStepLog(runID, entry string, seq int, step string, output string) (string, error) {
	dir := filepath.Join(ls.BaseDir, sanitize(runID), sanitize(entry))
	if err := os.MkdirAll(dir, 0o775); err != nil {
		return "", errors.Wrap(err, "create log directory")
	}

	filename := fmt.Sprintf("%02d_%s.log", seq, sanitize(step))
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(output), 0o644); err != nil {
		return "", errors.Wrap(err, "write step log")
	}
	return path, nil
}

// sanitize keeps names filesystem-safe.
func sanitize(name string) string {
	clean := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			clean = append(clean, r)
		case r == '-' || r == '_' || r == '.':
			clean = append(clean, r)
		default:
			clean = append(clean, '_')
		}
	}
	if len(clean) == 0 {
		return "step"
	}
	return string(clean)
}
