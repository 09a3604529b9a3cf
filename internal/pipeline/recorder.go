package pipeline

import "time"

// Run identifies one packaging run.
type Run struct {
	ID            string
	Schema        string // genome or reads
	Table         string
	SubmissionDir string
	Started       time.Time
}

// Recorder is notified as a run progresses. Recording failures are logged
// and never stop packaging.
type Recorder interface {
	RunStarted(run Run) error
	ManifestWritten(runID string, res Result) error
	RunFinished(runID string, manifests int, runErr error) error
}

type nopRecorder struct{}

func (nopRecorder) RunStarted(Run) error                 { return nil }
func (nopRecorder) ManifestWritten(string, Result) error { return nil }
func (nopRecorder) RunFinished(string, int, error) error { return nil }
