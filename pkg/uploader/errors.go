package uploader

import (
	"errors"
	"fmt"
)

var (
	ErrUploadInProgress = errors.New("upload already in progress")
	ErrNoFileSelected   = errors.New("no model file selected")
)

// ConfigurationError means the client itself is unusable, e.g. no server URL.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// ValidationError rejects a model file before anything is sent.
type ValidationError struct {
	File   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid model file %q: %s", e.File, e.Reason)
}

// NetworkError covers transport failures and non-2xx answers of any step.
type NetworkError struct {
	Step       string
	StatusCode int
	Body       string
	Err        error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Step, e.StatusCode, e.Body)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// OrphanArtifactWarning is returned when the artifact reached the object
// store but no run was created for it. The artifact needs manual cleanup or
// the server's reaper.
type OrphanArtifactWarning struct {
	ModelID string
	Err     error
}

func (e *OrphanArtifactWarning) Error() string {
	return fmt.Sprintf("model %s uploaded without a run: %v", e.ModelID, e.Err)
}

func (e *OrphanArtifactWarning) Unwrap() error { return e.Err }
