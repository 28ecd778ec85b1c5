// ABOUTME: Filesystem tool: list directories and read files under a base path.
// ABOUTME: Paths are resolved against the base; traversal outside it is refused.

package builtins

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/2389/toolgate/internal/tools"
)

// FilesystemTool provides sandboxed read-only filesystem access. The base
// path is the sandbox boundary: every requested path resolves relative to it
// and must stay inside it.
type FilesystemTool struct {
	base string
}

// NewFilesystemTool creates a filesystem tool rooted at basePath.
func NewFilesystemTool(basePath string) (*FilesystemTool, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolving base path: %w", err)
	}
	// Resolve the base itself so containment checks compare real paths.
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return &FilesystemTool{base: abs}, nil
}

// Descriptor implements tools.Tool.
func (t *FilesystemTool) Descriptor() tools.Descriptor {
	return tools.Descriptor{
		ID:          "filesystem",
		Title:       "Filesystem Access",
		Description: "List directories and read files (safe, relative to base path).",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"action":{"type":"string","enum":["list","read"]},"path":{"type":"string"},"offset":{"type":"integer"},"length":{"type":"integer"}},"required":["action","path"]}`),
	}
}

type filesystemParams struct {
	Action string `json:"action"`
	Path   string `json:"path"`
	Offset int64  `json:"offset"`
	Length *int64 `json:"length"`
}

type dirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

type listResult struct {
	OK      bool       `json:"ok"`
	Entries []dirEntry `json:"entries"`
}

type readResult struct {
	OK         bool   `json:"ok"`
	ContentB64 string `json:"content_b64"`
}

// Call implements tools.Tool.
func (t *FilesystemTool) Call(_ context.Context, params json.RawMessage) (json.RawMessage, error) {
	var in filesystemParams
	if err := json.Unmarshal(params, &in); err != nil {
		return fail("invalid params: %v", err)
	}

	rel := in.Path
	if rel == "" {
		rel = "."
	}
	target, err := t.resolve(rel)
	if err != nil {
		return fail("%v", err)
	}

	switch in.Action {
	case "list":
		return t.list(target)
	case "read":
		return t.read(target, in.Offset, in.Length)
	default:
		return fail("unknown action")
	}
}

// resolve joins rel onto the base path and rejects anything that escapes it.
// Symlinks are followed before the containment check, so a link inside the
// base cannot reach a target outside it.
func (t *FilesystemTool) resolve(rel string) (string, error) {
	candidate := filepath.Clean(filepath.Join(t.base, rel))
	if !t.contains(candidate) {
		return "", fmt.Errorf("path outside of allowed base")
	}

	resolved, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		// Nonexistent targets keep the lexical path; the action handlers
		// report not-found themselves.
		return candidate, nil
	}
	if !t.contains(resolved) {
		return "", fmt.Errorf("path outside of allowed base")
	}
	return resolved, nil
}

func (t *FilesystemTool) contains(path string) bool {
	inside, err := filepath.Rel(t.base, path)
	return err == nil && inside != ".." && !strings.HasPrefix(inside, ".."+string(filepath.Separator))
}

func (t *FilesystemTool) list(target string) (json.RawMessage, error) {
	info, err := os.Stat(target)
	if err != nil {
		return fail("not found")
	}
	if !info.IsDir() {
		return fail("not a directory")
	}

	dirents, err := os.ReadDir(target)
	if err != nil {
		return fail("reading directory: %v", err)
	}
	sort.Slice(dirents, func(i, j int) bool { return dirents[i].Name() < dirents[j].Name() })

	entries := make([]dirEntry, 0, len(dirents))
	for _, d := range dirents {
		fi, err := d.Info()
		if err != nil {
			continue
		}
		entries = append(entries, dirEntry{
			Name:  d.Name(),
			IsDir: d.IsDir(),
			Size:  fi.Size(),
		})
	}
	return result(listResult{OK: true, Entries: entries})
}

func (t *FilesystemTool) read(target string, offset int64, length *int64) (json.RawMessage, error) {
	if offset < 0 {
		return fail("offset must be non-negative")
	}
	if length != nil && *length < 0 {
		return fail("length must be non-negative")
	}

	info, err := os.Stat(target)
	if err != nil || info.IsDir() {
		return fail("file not found")
	}

	f, err := os.Open(target)
	if err != nil {
		return fail("opening file: %v", err)
	}
	defer f.Close()

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return fail("seeking: %v", err)
		}
	}

	var r io.Reader = f
	if length != nil {
		r = io.LimitReader(f, *length)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return fail("reading file: %v", err)
	}

	// Base64 keeps binary content safe inside the JSON result.
	return result(readResult{OK: true, ContentB64: base64.StdEncoding.EncodeToString(content)})
}
