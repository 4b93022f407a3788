package statestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Status values stored in a Document.
const (
	StatusInProgress = "in_progress"
	StatusPaused     = "paused"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusAborted    = "aborted"
)

// CompletedStep is one successful step in a persisted document.
type CompletedStep struct {
	StepName    string    `json:"step_name"`
	CompletedAt time.Time `json:"completed_at"`

	// Duration is in seconds.
	Duration float64 `json:"duration"`
}

// Document is the persisted execution state of one session.
type Document struct {
	SessionID      string                     `json:"session_id"`
	AgentID        string                     `json:"agent_id"`
	StartedAt      time.Time                  `json:"started_at"`
	Status         string                     `json:"status"`
	CompletedSteps []CompletedStep            `json:"completed_steps"`
	CurrentStep    *string                    `json:"current_step"`
	StepOutputs    map[string]json.RawMessage `json:"step_outputs"`
	PausedAt       *time.Time                 `json:"paused_at"`
	ResumedAt      *time.Time                 `json:"resumed_at"`
}

func newDocument(sessionID, agentID string, startedAt time.Time) *Document {
	return &Document{
		SessionID:      sessionID,
		AgentID:        agentID,
		StartedAt:      startedAt,
		Status:         StatusInProgress,
		CompletedSteps: make([]CompletedStep, 0),
		StepOutputs:    make(map[string]json.RawMessage),
	}
}

// StepNames returns the completed step names in completion order.
func (d *Document) StepNames() []string {
	names := make([]string, len(d.CompletedSteps))
	for i, s := range d.CompletedSteps {
		names[i] = s.StepName
	}
	return names
}

// Output decodes the recorded output of the named step.
func (d *Document) Output(stepName string) (any, bool, error) {
	raw, ok := d.StepOutputs[stepName]
	if !ok {
		return nil, false, nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, true, fmt.Errorf("decode output of %q: %w", stepName, err)
	}
	return out, true, nil
}

func readDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing state file %s: %w", path, err)
	}
	if doc.StepOutputs == nil {
		doc.StepOutputs = make(map[string]json.RawMessage)
	}
	return &doc, nil
}

// writeFileAtomic writes data to a temporary file in the target directory and renames
// it into place, so readers never observe a partially written document.
func writeFileAtomic(path string, data []byte) error {
	temporaryPath := path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating temporary state file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary state file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary state file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary state file: %w", err)
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming state file into place: %w", err)
	}
	return nil
}

// documentPath maps a session id to its file inside dir. Ids that could name a file
// outside dir are rejected.
func documentPath(dir, sessionID string) (string, error) {
	if sessionID == "" || sessionID == "." || sessionID == ".." ||
		strings.ContainsAny(sessionID, `/\`) || filepath.Base(sessionID) != sessionID {
		return "", fmt.Errorf("%w: %q", ErrInvalidSessionID, sessionID)
	}
	return filepath.Join(dir, sessionID+".json"), nil
}
