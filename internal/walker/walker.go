// Package walker discovers audit export files on disk for the offline
// CLI. Arguments may be plain file paths, directories or doublestar
// glob patterns; all expand to one deduplicated file list.
package walker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FileInfo describes one discovered export file.
type FileInfo struct {
	Path        string // Absolute path on disk.
	Size        int64  // File size in bytes.
	ContentHash string // SHA-256 hex digest of the file content.
}

// IsExport reports whether the filename looks like an audit export.
func IsExport(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".csv") || strings.HasSuffix(lower, ".csv.gz")
}

// Expand resolves each argument to export files: directories are
// walked recursively, glob patterns are expanded, and anything else
// must name an existing file. The same content appearing under two
// paths is returned once; re-ingesting a copied export would double
// every count downstream.
func Expand(args []string) ([]FileInfo, error) {
	var files []FileInfo
	for _, arg := range args {
		found, err := expandOne(arg)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}

	seen := make(map[string]struct{}, len(files))
	out := files[:0]
	for _, f := range files {
		if _, dup := seen[f.ContentHash]; dup {
			continue
		}
		seen[f.ContentHash] = struct{}{}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func expandOne(arg string) ([]FileInfo, error) {
	if info, err := os.Stat(arg); err == nil {
		if info.IsDir() {
			return walkDir(arg)
		}
		// A file named explicitly is taken as-is, whatever its
		// extension.
		f, err := describe(arg)
		if err != nil {
			return nil, err
		}
		return []FileInfo{f}, nil
	}

	matches, err := doublestar.FilepathGlob(arg)
	if err != nil {
		return nil, fmt.Errorf("walker: bad pattern %q: %w", arg, err)
	}

	var files []FileInfo
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || info.IsDir() || !IsExport(match) {
			continue
		}
		f, err := describe(match)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("walker: no export files match %q", arg)
	}
	return files, nil
}

func walkDir(root string) ([]FileInfo, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("walker: resolve root: %w", err)
	}

	var files []FileInfo
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Skip entries we cannot read instead of aborting.
			return nil
		}
		if d.IsDir() {
			if path != abs && shouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !IsExport(d.Name()) {
			return nil
		}
		f, err := describe(path)
		if err != nil {
			return nil
		}
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walker: traversal: %w", err)
	}
	return files, nil
}

// shouldSkipDir filters out trees that never hold exports.
func shouldSkipDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	return strings.EqualFold(name, "node_modules") || strings.EqualFold(name, "__pycache__")
}

func describe(path string) (FileInfo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("walker: resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return FileInfo{}, fmt.Errorf("walker: stat %s: %w", path, err)
	}
	hash, err := hashFile(abs)
	if err != nil {
		return FileInfo{}, fmt.Errorf("walker: hash %s: %w", path, err)
	}
	return FileInfo{Path: abs, Size: info.Size(), ContentHash: hash}, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
