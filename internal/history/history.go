// Package history persists completed run records as an append-only file of
// JSON lines, one record per run.
package history

import (
	"bytes"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"

	"matrixci/internal/core"
	"matrixci/pkg/utils"
)

// Record is the persisted summary of one workflow run.
type Record struct {
	ID          string          `json:"id"`
	Workflow    string          `json:"workflow"`
	Event       core.Event      `json:"event"`
	Conclusion  core.Conclusion `json:"conclusion"`
	StartedAt   time.Time       `json:"startedAt"`
	CompletedAt time.Time       `json:"completedAt"`
	Entries     []EntryRecord   `json:"entries"`
}

// EntryRecord summarizes one matrix entry.
type EntryRecord struct {
	Job        string            `json:"job"`
	Name       string            `json:"name"`
	Values     map[string]string `json:"values,omitempty"`
	Conclusion core.Conclusion   `json:"conclusion"`
	Steps      []StepRecord      `json:"steps"`
}

// StepRecord summarizes one step. LogHash is the sha256 of the log file so a
// record can be checked against the logs it points at.
type StepRecord struct {
	Name       string          `json:"name"`
	Conclusion core.Conclusion `json:"conclusion"`
	LogPath    string          `json:"logPath,omitempty"`
	LogHash    string          `json:"logHash,omitempty"`
}

// NewRecord converts a run result into a persistable record, hashing each
// step's log file. Hashing is best-effort: a missing log leaves the hash empty.
func NewRecord(res *core.RunResult) Record {
	rec := Record{
		ID:          res.ID,
		Workflow:    res.Workflow,
		Event:       res.Event,
		Conclusion:  res.Conclusion,
		StartedAt:   res.StartedAt,
		CompletedAt: res.CompletedAt,
		Entries:     make([]EntryRecord, 0, len(res.Entries)),
	}
	for _, entry := range res.Entries {
		er := EntryRecord{
			Job:        entry.Job,
			Name:       entry.Name,
			Values:     entry.Values,
			Conclusion: entry.Conclusion,
			Steps:      make([]StepRecord, 0, len(entry.Steps)),
		}
		for _, step := range entry.Steps {
			sr := StepRecord{
				Name:       step.Name,
				Conclusion: step.Conclusion,
				LogPath:    step.LogPath,
			}
			if step.LogPath != "" {
				if hash, err := utils.HashFile(step.LogPath); err == nil {
					sr.LogHash = hash
				}
			}
			er.Steps = append(er.Steps, sr)
		}
		rec.Entries = append(rec.Entries, er)
	}
	return rec
}

// History is an append-only store of run records backed by a JSONL file.
type History struct {
	mu      sync.Mutex
	path    string
	records []Record
}

// Open loads an existing history file or starts an empty one.
func Open(path string) (*History, error) {
	h := &History{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return h, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read history")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			return nil, errors.Wrap(err, "decode history record")
		}
		h.records = append(h.records, rec)
	}
	return h, nil
}

// Append persists a record and keeps it in memory.
func (h *History) Append(rec Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrap(err, "open history")
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(rec); err != nil {
		return errors.Wrap(err, "write history record")
	}
	h.records = append(h.records, rec)
	return nil
}

// Records returns all records, oldest first.
func (h *History) Records() []Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Record, len(h.records))
	copy(out, h.records)
	return out
}

// Find returns the record with the given run id.
func (h *History) Find(id string) (Record, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, rec := range h.records {
		if rec.ID == id {
			return rec, true
		}
	}
	return Record{}, false
}
