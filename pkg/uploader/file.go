package uploader

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"model_upload_backend/pkg/policy"
)

var allowedExtensions = []string{".zip", ".fmu"}

// ModelFile is a local model artifact waiting to be uploaded.
type ModelFile struct {
	Name string
	Size int64

	open func() (io.ReadCloser, error)
}

// FileFromPath stats path; the content is read only when uploading.
func FileFromPath(path string) (*ModelFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat model file: %w", err)
	}
	if info.IsDir() {
		return nil, &ValidationError{File: path, Reason: "is a directory"}
	}
	return &ModelFile{
		Name: filepath.Base(path),
		Size: info.Size(),
		open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

func FileFromBytes(name string, data []byte) *ModelFile {
	return &ModelFile{
		Name: name,
		Size: int64(len(data)),
		open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

// HasModelExtension reports whether name ends in .zip or .fmu, ignoring case.
func HasModelExtension(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range allowedExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func validateName(f *ModelFile) error {
	if f == nil {
		return ErrNoFileSelected
	}
	if !HasModelExtension(f.Name) {
		return &ValidationError{File: f.Name, Reason: "only .zip and .fmu models can be uploaded"}
	}
	return nil
}

func validateSize(f *ModelFile) error {
	if f.Size > policy.MaxUploadSize {
		return &ValidationError{
			File:   f.Name,
			Reason: fmt.Sprintf("size %d bytes exceeds the %d byte upload limit", f.Size, policy.MaxUploadSize),
		}
	}
	return nil
}
