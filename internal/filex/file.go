// Package filex provides small filesystem helpers shared by the audio
// pipeline: directory creation and uniquely named temporary files.
package filex

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// EnsureDir creates dir (and parents) if it does not exist and returns
// the absolute path.
func EnsureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", dir, err)
	}

	if err := os.MkdirAll(abs, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}

	return abs, nil
}

// UniquePath returns a path inside dir that is unique per call:
// "<prefix><random uuid><ext>". Concurrent callers never receive the same
// path, so parallel operations cannot collide on disk.
func UniquePath(dir, prefix, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%s%s%s", prefix, uuid.New(), ext))
}

// SaveStream writes the contents of r to a new file at path. The file must
// not already exist; an existing file means a name collision and is an error.
func SaveStream(path string, r io.Reader) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o660)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}
