package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dksnowdon/gomini/config"
	"github.com/dksnowdon/gomini/errors"
)

// ReadFileTool reads the entire content of a text file.
type ReadFileTool struct {
	fsAccess *config.FilesystemAccess
}

func NewReadFileTool(fsAccess *config.FilesystemAccess) *ReadFileTool {
	return &ReadFileTool{fsAccess: fsAccess}
}

func (t *ReadFileTool) Name() string { return "read_file" }
func (t *ReadFileTool) Description() string {
	return "Reads the entire content of a text file."
}
func (t *ReadFileTool) Sensitive() bool { return false }

func (t *ReadFileTool) Parameters() *Schema {
	return &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"filepath": {Type: "string", Description: "Absolute or relative path of the file to read"},
		},
		Required: []string{"filepath"},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	path, ok := args["filepath"].(string)
	if !ok {
		return "", errors.New("missing or invalid 'filepath' argument")
	}

	hidden, err := isPathRestricted(path, t.fsAccess.Hidden)
	if err != nil {
		return "", err
	}
	if hidden {
		return "", errors.New("access denied: path '%s' is hidden", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read file '%s'", path)
	}
	return string(content), nil
}

// WriteFileTool writes content to a file, replacing it entirely. Classified
// sensitive: under safe mode it runs only after user confirmation.
type WriteFileTool struct {
	fsAccess *config.FilesystemAccess
}

func NewWriteFileTool(fsAccess *config.FilesystemAccess) *WriteFileTool {
	return &WriteFileTool{fsAccess: fsAccess}
}

func (t *WriteFileTool) Name() string { return "write_file" }
func (t *WriteFileTool) Description() string {
	return "Writes content to a file, replacing it entirely. Parent directories are created as needed."
}
func (t *WriteFileTool) Sensitive() bool { return true }

func (t *WriteFileTool) Parameters() *Schema {
	return &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"filepath": {Type: "string", Description: "Absolute or relative path of the file to write"},
			"content":  {Type: "string", Description: "Text content to write to the file"},
		},
		Required: []string{"filepath", "content"},
	}
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	path, pathOk := args["filepath"].(string)
	content, contentOk := args["content"].(string)
	if !pathOk || !contentOk {
		return "", errors.New("missing or invalid 'filepath' or 'content' arguments")
	}

	hidden, err := isPathRestricted(path, t.fsAccess.Hidden)
	if err != nil {
		return "", err
	}
	if hidden {
		return "", errors.New("access denied: path '%s' is hidden", path)
	}

	readOnly, err := isPathRestricted(path, t.fsAccess.ReadOnly)
	if err != nil {
		return "", err
	}
	if readOnly {
		return "", errors.New("access denied: path '%s' is read-only", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", errors.Wrapf(err, "failed to create directory for '%s'", path)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", errors.Wrapf(err, "failed to write to file '%s'", path)
	}
	return fmt.Sprintf("Successfully wrote %d bytes to %s", len(content), path), nil
}

// ListDirectoryTool lists a directory, tagging each entry as file or
// directory.
type ListDirectoryTool struct{}

func NewListDirectoryTool() *ListDirectoryTool { return &ListDirectoryTool{} }

func (t *ListDirectoryTool) Name() string { return "list_directory" }
func (t *ListDirectoryTool) Description() string {
	return "Lists the contents of a directory."
}
func (t *ListDirectoryTool) Sensitive() bool { return false }

func (t *ListDirectoryTool) Parameters() *Schema {
	return &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"path": {Type: "string", Description: "Directory to list (default: current directory)"},
		},
	}
}

func (t *ListDirectoryTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	path, _ := args["path"].(string)
	if path == "" {
		path = "."
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to list directory '%s'", path)
	}

	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		tag := "FILE"
		if entry.IsDir() {
			tag = "DIR"
		}
		lines = append(lines, fmt.Sprintf("[%s] %s", tag, entry.Name()))
	}
	return strings.Join(lines, "\n"), nil
}

// SearchFilesTool finds files matching a glob pattern that contain a query
// string.
type SearchFilesTool struct {
	fsAccess *config.FilesystemAccess
}

func NewSearchFilesTool(fsAccess *config.FilesystemAccess) *SearchFilesTool {
	return &SearchFilesTool{fsAccess: fsAccess}
}

func (t *SearchFilesTool) Name() string { return "search_files" }
func (t *SearchFilesTool) Description() string {
	return "Searches for a text query inside files matching a glob pattern (e.g. '**/*.go')."
}
func (t *SearchFilesTool) Sensitive() bool { return false }

func (t *SearchFilesTool) Parameters() *Schema {
	return &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"pattern": {Type: "string", Description: "Glob pattern for the files to scan (e.g. '**/*.go')"},
			"query":   {Type: "string", Description: "Text to look for inside the files"},
		},
		Required: []string{"pattern", "query"},
	}
}

func (t *SearchFilesTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	pattern, patternOk := args["pattern"].(string)
	query, queryOk := args["query"].(string)
	if !patternOk || !queryOk {
		return "", errors.New("missing or invalid 'pattern' or 'query' arguments")
	}

	files, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return "", errors.Wrapf(err, "invalid glob pattern '%s'", pattern)
	}

	var matches []string
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		hidden, err := isPathRestricted(path, t.fsAccess.Hidden)
		if err != nil || hidden {
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if strings.Contains(string(content), query) {
			matches = append(matches, path)
		}
	}

	if len(matches) == 0 {
		return "No matches found.", nil
	}
	sort.Strings(matches)
	return "Found in files:\n" + strings.Join(matches, "\n"), nil
}
