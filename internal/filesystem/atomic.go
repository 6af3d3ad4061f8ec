package filesystem

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Stages of WriteFileAtomic, reported through StageError.
const (
	StageWrite  = "write"
	StageBackup = "backup"
	StageRename = "rename"
)

// StageError reports which step of an atomic write failed.
type StageError struct {
	Stage string
	Path  string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Path, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// WriteFileAtomic writes data to path.tmp, copies any existing file at path
// to path.bak, and renames the temporary file into place. A failure at any
// step leaves the previous file untouched.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	start := time.Now()
	volume := defaultResolver.Resolve(path)

	err := writeFileAtomic(path, data, perm)
	if obs := observe(); obs != nil {
		obs.ObserveOperation(volume, "write", time.Since(start).Seconds(), err)
	}
	return err
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &StageError{Stage: StageWrite, Path: dir, Err: err}
		}
	}

	tmp := path + ".tmp"
	if err := writeSynced(tmp, data, perm); err != nil {
		_ = os.Remove(tmp)
		return &StageError{Stage: StageWrite, Path: tmp, Err: err}
	}

	if _, err := os.Stat(path); err == nil {
		if err := copyFile(path, path+".bak", perm); err != nil {
			_ = os.Remove(tmp)
			return &StageError{Stage: StageBackup, Path: path + ".bak", Err: err}
		}
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return &StageError{Stage: StageRename, Path: path, Err: err}
	}
	return nil
}

func writeSynced(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
