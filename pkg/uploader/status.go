package uploader

import "log/slog"

type State string

const (
	StateIdle         State = "idle"
	StateFileSelected State = "file-selected"
	StateUploading    State = "uploading"
	StateUploaded     State = "uploaded"
	StateRunTriggered State = "run-triggered"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// ProgressIndeterminate is reported while a transfer is in flight; byte level
// progress is not tracked.
const ProgressIndeterminate = -1

type Status struct {
	State     State
	Uploading bool
	Progress  float64
	ModelID   string
	RunID     string
	Err       error
}

func newStatus(s *Session) Status {
	st := Status{State: s.state, Err: s.err, RunID: s.RunID}
	if s.Target != nil {
		st.ModelID = s.Target.ModelID
	}
	switch s.state {
	case StateUploading, StateUploaded, StateRunTriggered:
		st.Uploading = true
		st.Progress = ProgressIndeterminate
	case StateDone:
		st.Progress = 1
	}
	return st
}

// Reporter observes every state change of a session.
type Reporter interface {
	Report(Status)
}

type ReporterFunc func(Status)

func (f ReporterFunc) Report(s Status) { f(s) }

// LogReporter writes state changes to a structured logger.
type LogReporter struct {
	Logger *slog.Logger
}

func (r LogReporter) Report(s Status) {
	if s.Err != nil && s.State == StateFailed {
		r.Logger.Error("model upload failed", "modelID", s.ModelID, "error", s.Err)
		return
	}
	r.Logger.Info("model upload", "state", s.State, "uploading", s.Uploading, "modelID", s.ModelID, "runID", s.RunID)
}
