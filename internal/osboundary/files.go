package osboundary

import (
	"context"
	"os"
	"time"
)

// base implements the OS-independent parts of Boundary (files.*, time.now)
// shared by every platform backend by embedding.
type base struct{}

func (base) FilesCreateDir(_ context.Context, path string) error {
	return os.MkdirAll(path, 0o755)
}

func (base) FilesRead(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (base) FilesWrite(_ context.Context, path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func (base) FilesMove(_ context.Context, from, to string) error {
	return os.Rename(from, to)
}

func (base) FilesDelete(_ context.Context, path string) error {
	return os.Remove(path)
}

func (base) Now(_ context.Context) (time.Time, error) {
	return time.Now(), nil
}
