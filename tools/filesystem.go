// Filesystem Tools - List, Read, Write operations inside the sandbox.
//
// Information Hiding:
// - File I/O implementation details hidden
// - Path confinement delegated to the sandbox resolver
// - Error handling for file operations abstracted

package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/richinex/sandboxagent/sandbox"
)

// Tool names.
const (
	ToolListFiles = "list_files"
	ToolReadFile  = "read_file"
	ToolWriteFile = "write_file"
)

// EmptyDirectoryMarker is returned by list_files when the sandbox has no entries.
const EmptyDirectoryMarker = "(empty directory)"

// ListFilesTool lists the top level of the sandbox.
type ListFilesTool struct {
	sandbox sandbox.Sandbox
}

// NewListFilesTool creates a new list files tool.
func NewListFilesTool(sb sandbox.Sandbox) *ListFilesTool {
	return &ListFilesTool{sandbox: sb}
}

// Metadata returns the tool metadata.
func (t *ListFilesTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        ToolListFiles,
		Description: "List the files and directories at the top level of the sandbox. Not recursive.",
		Parameters:  []ToolParameter{},
	}
}

// Validate rejects any argument.
func (t *ListFilesTool) Validate(args Args) error {
	return noArguments(args)
}

// Execute lists the sandbox root.
func (t *ListFilesTool) Execute(ctx context.Context, args Args) (string, error) {
	if err := t.sandbox.EnsureDirectory(); err != nil {
		return "", err
	}

	entries, err := os.ReadDir(t.sandbox.Root())
	if err != nil {
		return "", fmt.Errorf("list_files: %w", err)
	}
	if len(entries) == 0 {
		return EmptyDirectoryMarker, nil
	}

	names := make([]string, len(entries))
	for i, entry := range entries {
		names[i] = entry.Name()
	}
	return strings.Join(names, "\n"), nil
}

// ReadFileTool reads file contents from the sandbox.
type ReadFileTool struct {
	sandbox sandbox.Sandbox
}

// NewReadFileTool creates a new read file tool.
func NewReadFileTool(sb sandbox.Sandbox) *ReadFileTool {
	return &ReadFileTool{sandbox: sb}
}

// Metadata returns the tool metadata.
func (t *ReadFileTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        ToolReadFile,
		Description: "Read the full text contents of a file in the sandbox",
		Parameters: []ToolParameter{
			{Name: "filePath", ParamType: "string", Description: "Path relative to the sandbox root", Required: true},
		},
	}
}

// Validate validates the arguments.
func (t *ReadFileTool) Validate(args Args) error {
	_, err := stringArgument(args, "filePath")
	return err
}

// Execute reads the file.
func (t *ReadFileTool) Execute(ctx context.Context, args Args) (string, error) {
	filePath, err := stringArgument(args, "filePath")
	if err != nil {
		return "", err
	}

	resolved, err := t.sandbox.Resolve(filePath)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("read_file %q: %w", filePath, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("read_file %q: is a directory", filePath)
	}
	if info.Size() > t.sandbox.MaxFileBytes() {
		return "", fmt.Errorf("read_file %q: file too large: %d bytes (max: %d bytes)",
			filePath, info.Size(), t.sandbox.MaxFileBytes())
	}

	content, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("read_file %q: %w", filePath, err)
	}
	return string(content), nil
}

// WriteFileTool writes content to a file in the sandbox, overwriting it.
type WriteFileTool struct {
	sandbox sandbox.Sandbox
}

// NewWriteFileTool creates a new write file tool.
func NewWriteFileTool(sb sandbox.Sandbox) *WriteFileTool {
	return &WriteFileTool{sandbox: sb}
}

// Metadata returns the tool metadata.
func (t *WriteFileTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        ToolWriteFile,
		Description: "Write text content to a file in the sandbox, creating parent directories and overwriting any existing file",
		Parameters: []ToolParameter{
			{Name: "filePath", ParamType: "string", Description: "Path relative to the sandbox root", Required: true},
			{Name: "content", ParamType: "string", Description: "Text content to write", Required: true},
		},
	}
}

// Validate validates the arguments.
func (t *WriteFileTool) Validate(args Args) error {
	if _, err := stringArgument(args, "filePath"); err != nil {
		return err
	}
	_, err := nonEmptyString(args, "content")
	return err
}

// Execute writes to the file.
func (t *WriteFileTool) Execute(ctx context.Context, args Args) (string, error) {
	filePath, err := stringArgument(args, "filePath")
	if err != nil {
		return "", err
	}
	content, err := nonEmptyString(args, "content")
	if err != nil {
		return "", err
	}

	if int64(len(content)) > t.sandbox.MaxFileBytes() {
		return "", fmt.Errorf("write_file %q: content too large: %d bytes (max: %d bytes)",
			filePath, len(content), t.sandbox.MaxFileBytes())
	}

	resolved, err := t.sandbox.Resolve(filePath)
	if err != nil {
		return "", err
	}

	if err := t.sandbox.EnsureDirectory(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return "", fmt.Errorf("write_file %q: create parent directory: %w", filePath, err)
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write_file %q: %w", filePath, err)
	}

	return fmt.Sprintf("Successfully wrote %d bytes to %s", len(content), filePath), nil
}

// Verify tools implement Tool
var (
	_ Tool = (*ListFilesTool)(nil)
	_ Tool = (*ReadFileTool)(nil)
	_ Tool = (*WriteFileTool)(nil)
)
