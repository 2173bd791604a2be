package models

import "time"

type ModelEventType string

const (
	EventUploadRequested ModelEventType = "upload_requested"
	EventRunCreated      ModelEventType = "run_created"
	EventModelExpired    ModelEventType = "expired"
)

type ModelEvent struct {
	Type      ModelEventType `json:"type"`
	ModelID   string         `json:"model_id"`
	RunID     string         `json:"run_id,omitempty"`
	Status    string         `json:"status"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
}
