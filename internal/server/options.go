package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"example.com/gatherview/internal/gather"
)

// Options configures server creation.
type Options struct {
	// DataDir restricts which files sessions may open. Empty allows any
	// absolute path.
	DataDir string
	// DefaultWidth overrides the initial window width for new sessions.
	DefaultWidth int
}

func (o Options) defaultWidth() int {
	if o.DefaultWidth > 0 {
		return o.DefaultWidth
	}
	return gather.DefaultWindowWidth
}

// resolveDataPath validates a client-supplied file path against the
// configured data directory.
func resolveDataPath(dataDir, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("file path is empty")
	}
	if dataDir == "" {
		if !filepath.IsAbs(raw) {
			return "", fmt.Errorf("file path must be absolute")
		}
		return filepath.Clean(raw), nil
	}
	base, err := filepath.Abs(dataDir)
	if err != nil {
		return "", err
	}
	candidate := raw
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(base, candidate)
	}
	candidate = filepath.Clean(candidate)
	rel, err := filepath.Rel(base, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("file path escapes the data directory")
	}
	return candidate, nil
}
