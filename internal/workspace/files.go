package workspace

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/labelhub/autotrain/internal/failure"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Bootstrap creates the project directory from the template tree if it does not
// exist yet and makes sure the working directories are present. It never deletes
// or overwrites anything. It reports whether the project directory was created.
func Bootstrap(l Layout, template string) (bool, error) {
	created := false
	if _, err := os.Stat(l.Dir()); errors.Is(err, fs.ErrNotExist) {
		if err := CopyTree(template, l.Dir()); err != nil {
			return false, failure.Wrap(failure.KindFileSystem, err, "create workspace %s from template", l.Dir())
		}
		created = true
	} else if err != nil {
		return false, failure.Wrap(failure.KindFileSystem, err, "stat workspace %s", l.Dir())
	}

	for _, dir := range []string{
		l.RawImages(),
		l.Dataset(),
		l.Snapshot(),
		filepath.Dir(l.SolverDescription()),
		filepath.Dir(l.Artifact()),
	} {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return created, failure.Wrap(failure.KindFileSystem, err, "create %s", dir)
		}
	}
	return created, nil
}

// CopyTree copies the contents of src into dst, creating dst. Existing files in
// dst are left alone. Symlinks in src are skipped.
func CopyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("template: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("template %s is not a directory", src)
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(target, dirPerm)
		case d.Type().IsRegular():
			if _, err := os.Stat(target); err == nil {
				return nil
			}
			return copyFile(path, target)
		default:
			return nil
		}
	})
}

// ClearDir removes everything inside dir, creating dir if it is missing.
func ClearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return wrapFS(os.MkdirAll(dir, dirPerm), "create %s", dir)
	}
	if err != nil {
		return failure.Wrap(failure.KindFileSystem, err, "read %s", dir)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return failure.Wrap(failure.KindFileSystem, err, "clear %s", dir)
		}
	}
	return nil
}

// CopyFile copies src over dst. dst is replaced atomically so a reader never
// sees a partially written artifact.
func CopyFile(src, dst string) error {
	return wrapFS(copyFile(src, dst), "copy %s to %s", src, dst)
}

// WriteFile writes data to path atomically, creating parent directories.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return failure.Wrap(failure.KindFileSystem, err, "create %s", filepath.Dir(path))
	}
	return wrapFS(writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}), "write %s", path)
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// RemoveIfEmpty removes dir if it has no entries. A missing dir is not an error.
func RemoveIfEmpty(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return failure.Wrap(failure.KindFileSystem, err, "read %s", dir)
	}
	if len(entries) > 0 {
		return nil
	}
	return wrapFS(os.Remove(dir), "remove %s", dir)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()

	if err := os.MkdirAll(filepath.Dir(dst), dirPerm); err != nil {
		return err
	}
	return writeAtomic(dst, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

// writeAtomic writes through a temp file in the destination directory and renames it into place.
func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func wrapFS(err error, format string, args ...any) error {
	return failure.Wrap(failure.KindFileSystem, err, format, args...)
}
