package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/clipstash/internal/errors"
)

// PathCheckMode indicates whether the path check is for reading or writing.
type PathCheckMode int

const (
	PathCheckRead  PathCheckMode = iota // for import (read file)
	PathCheckWrite                      // for export (write file)
)

// ValidatePath checks an import/export path:
// 1. Path traversal (.. sequences)
// 2. Extension (one of exts)
// 3. Parent directory exists and is not a symlink
// 4. The file itself is not a symlink (and exists, for reads)
func ValidatePath(path string, mode PathCheckMode, exts ...string) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}

	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleaned))
	okExt := false
	for _, e := range exts {
		if ext == e {
			okExt = true
			break
		}
	}
	if !okExt {
		return errors.NewInvalidRequest(fmt.Sprintf("path must have one of these extensions: %s", strings.Join(exts, ", ")))
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	parentDir := filepath.Dir(absPath)
	info, err := os.Lstat(parentDir)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("directory does not exist: %s", parentDir))
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("parent directory must not be a symlink")
	}

	info, err = os.Lstat(absPath)
	switch {
	case err == nil && info.Mode()&os.ModeSymlink != 0:
		return errors.NewInvalidRequest("path must not be a symlink")
	case err != nil && mode == PathCheckRead:
		return errors.NewInvalidRequest(fmt.Sprintf("file not found: %s", path))
	}

	return nil
}

// containsTraversal checks if path contains ".." directory traversal.
func containsTraversal(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	// Also check for forward slashes on all platforms (e.g., user input)
	if filepath.Separator != '/' {
		for _, part := range strings.Split(path, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}
