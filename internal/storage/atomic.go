package storage

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/hpungsan/clipstash/internal/errors"
)

// WriteAtomic writes path by streaming into a sibling temp file, fsyncing it,
// and renaming it into place. Readers see either the old file or the new one.
// On any failure the temp file is removed and the destination is untouched.
func WriteAtomic(path string, perm os.FileMode, write func(w io.Writer) error) error {
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return fmt.Errorf("failed to generate temp file name: %w", err)
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"

	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	bw := bufio.NewWriter(file)
	if err := write(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := file.Sync(); err != nil {
		return err
	}

	// Close before atomic replace (required on Windows; fine elsewhere).
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	file = nil

	// os.Rename would follow a symlink at the destination.
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest(fmt.Sprintf("destination is a symlink: %s", path))
	}

	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return fmt.Errorf("destination %s already exists and cannot be replaced atomically on Windows: %w", path, err)
			}
		}
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}

	success = true
	return nil
}
