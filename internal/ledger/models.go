package ledger

import "time"

// RunRecord is one packaging run.
type RunRecord struct {
	ID            string     `json:"id"`
	Schema        string     `json:"schema"`
	Table         string     `json:"table"`
	SubmissionDir string     `json:"submission_dir"`
	Started       time.Time  `json:"started"`
	Finished      *time.Time `json:"finished,omitempty"`
	Status        string     `json:"status"`
	Manifests     int        `json:"manifests"`
	Error         string     `json:"error,omitempty"`
}

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ManifestRecord is one manifest written by a run.
type ManifestRecord struct {
	RunID     string    `json:"run_id"`
	Row       int       `json:"row"`
	Sample    string    `json:"sample"`
	Directory string    `json:"directory"`
	Path      string    `json:"path"`
	Files     int       `json:"files"`
	Bytes     int64     `json:"bytes"`
	Written   time.Time `json:"written"`
}

// SubmissionRecord is one invocation of the submission client.
type SubmissionRecord struct {
	Manifest  string    `json:"manifest"`
	Context   string    `json:"context"`
	Live      bool      `json:"live"`
	ExitCode  int       `json:"exit_code"`
	OutputDir string    `json:"output_dir"`
	Submitted time.Time `json:"submitted"`
}
