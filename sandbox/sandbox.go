// Package sandbox confines tool file access to a single root directory.
//
// Information Hiding:
// - Path normalization and separator handling hidden
// - Containment check (separator-aware, not a naive string prefix) hidden
// - Lazy creation of the root directory hidden behind EnsureDirectory

package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxFileBytes bounds a single read or write.
const DefaultMaxFileBytes = 1024 * 1024 // 1MB

// ErrPathEscape is returned when a path resolves outside the sandbox root.
var ErrPathEscape = errors.New("path escapes sandbox root")

// Resolve joins userPath onto root and returns the cleaned absolute path.
// Absolute user paths are accepted only if they already lie under root.
// The result is either root itself or nested under root + separator.
func Resolve(root, userPath string) (string, error) {
	cleanRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve sandbox root %q: %w", root, err)
	}

	var target string
	if filepath.IsAbs(userPath) {
		target = filepath.Clean(userPath)
	} else {
		target = filepath.Join(cleanRoot, userPath)
	}

	if !within(cleanRoot, target) {
		return "", fmt.Errorf("%w: %q", ErrPathEscape, userPath)
	}
	return target, nil
}

// within reports whether target equals root or is nested under it.
// "sandbox2" is not under "sandbox".
func within(root, target string) bool {
	if target == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(target, prefix)
}

// EnsureDirectory creates root and any missing parents. Safe to call repeatedly.
func EnsureDirectory(root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create sandbox root %q: %w", root, err)
	}
	return nil
}

// Sandbox bundles the process-wide root with its file size limit.
// The zero value is not usable; construct with New.
type Sandbox struct {
	root         string
	maxFileBytes int64
}

// New returns a Sandbox rooted at the absolute form of root.
// The directory is not created until EnsureDirectory is called.
func New(root string, maxFileBytes int64) (Sandbox, error) {
	if strings.TrimSpace(root) == "" {
		return Sandbox{}, errors.New("new sandbox: root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Sandbox{}, fmt.Errorf("new sandbox: resolve root: %w", err)
	}
	if maxFileBytes <= 0 {
		maxFileBytes = DefaultMaxFileBytes
	}
	return Sandbox{root: abs, maxFileBytes: maxFileBytes}, nil
}

// Root returns the absolute sandbox root.
func (s Sandbox) Root() string {
	return s.root
}

// MaxFileBytes returns the per-file size limit.
func (s Sandbox) MaxFileBytes() int64 {
	return s.maxFileBytes
}

// Resolve confines userPath to the sandbox root.
func (s Sandbox) Resolve(userPath string) (string, error) {
	return Resolve(s.root, userPath)
}

// EnsureDirectory creates the sandbox root if it is missing.
func (s Sandbox) EnsureDirectory() error {
	return EnsureDirectory(s.root)
}
