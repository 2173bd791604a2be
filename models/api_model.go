package models

import "time"

type UploadURLReq struct {
	ModelName string   `json:"modelName"`
	Tags      []string `json:"tags,omitempty"`
}

type UploadURLResp struct {
	URL      string            `json:"url"`
	Fields   map[string]string `json:"fields"`
	ModelID  string            `json:"modelID"`
	FileKey  string            `json:"fileKey"`
	Expires  time.Time         `json:"expires"`
	Provider string            `json:"provider"` // "native", "minio" or "aws"
}

type CreateRunResp struct {
	RunID   string `json:"runId"`
	ModelID string `json:"modelID"`
	Status  string `json:"status"`
}

type ErrorResp struct {
	Error string `json:"error"`
}
