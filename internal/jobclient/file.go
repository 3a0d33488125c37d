package jobclient

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	// MaxFileSize is the largest upload the backend accepts (50 MiB).
	MaxFileSize int64 = 50 * 1024 * 1024
)

// AllowedExtensions lists the accepted upload extensions (lowercase, no dot).
var AllowedExtensions = []string{"xlsx", "csv"}

// File is an upload candidate. Open is called once per upload attempt.
type File struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// OpenFile describes the file at path. The file is not read until upload.
func OpenFile(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}
	return File{
		Name: filepath.Base(path),
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// BytesFile wraps in-memory content, e.g. a file received over HTTP.
func BytesFile(name string, data []byte) File {
	return File{
		Name: name,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

// Validate checks the extension and size limits. It never touches the network.
func Validate(f File) error {
	ext := extension(f.Name)
	allowed := false
	for _, a := range AllowedExtensions {
		if ext == a {
			allowed = true
			break
		}
	}
	if !allowed {
		return &ValidationError{Filename: f.Name, Reason: "Invalid file type. Please upload .xlsx or .csv file"}
	}
	if f.Size > MaxFileSize {
		return &ValidationError{Filename: f.Name, Reason: "File too large. Maximum size is 50MB"}
	}
	return nil
}

// extension returns the lowercase text after the last dot, or "" when there is none.
func extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}
