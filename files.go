package vegecast

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// rename is replaced in tests to simulate failures.
var rename = os.Rename

// A PendingFile is a file to be written by WriteFiles.
type PendingFile struct {
	Path string
	Data []byte
}

// WriteFiles replaces a group of files so that either all
// of them take their new contents or none of them change.
//
// Each file is written to a temporary sibling first.
// Existing destinations are moved aside while the
// temporaries are renamed into place, and restored if any
// rename fails.
//
// Destination directories are created as needed.
func WriteFiles(files ...PendingFile) error {
	for _, file := range files {
		if file.Path == "" {
			return errors.New("write files: empty path")
		}
		if info, err := os.Stat(file.Path); err == nil && info.IsDir() {
			return fmt.Errorf("write files: %s is a directory", file.Path)
		}
	}

	temps := make([]string, 0, len(files))
	removeTemps := func() {
		for _, t := range temps {
			os.Remove(t)
		}
	}
	for _, file := range files {
		temp, err := writeTemp(file)
		if err != nil {
			removeTemps()
			return err
		}
		temps = append(temps, temp)
	}

	backups := make([]string, len(files))
	for i, file := range files {
		backup, err := moveAside(file.Path)
		if err != nil {
			rollback(files[:i], backups[:i])
			removeTemps()
			return err
		}
		backups[i] = backup
		if err := rename(temps[i], file.Path); err != nil {
			if backup != "" {
				os.Rename(backup, file.Path)
			}
			rollback(files[:i], backups[:i])
			removeTemps()
			return err
		}
	}

	for _, b := range backups {
		if b != "" {
			os.Remove(b)
		}
	}
	return nil
}

func writeTemp(file PendingFile) (string, error) {
	dir := filepath.Dir(file.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(file.Path)+".tmp-*")
	if err != nil {
		return "", err
	}
	_, err = f.Write(file.Data)
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(f.Name(), 0644)
	}
	if err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// moveAside renames an existing file to a hidden backup
// and returns the backup path, or "" if there was no file.
func moveAside(path string) (string, error) {
	if _, err := os.Lstat(path); errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".bak-*")
	if err != nil {
		return "", err
	}
	backup := f.Name()
	f.Close()
	if err := rename(path, backup); err != nil {
		os.Remove(backup)
		return "", err
	}
	return backup, nil
}

// rollback restores the backups of files, removing new
// contents where there was nothing before.
func rollback(files []PendingFile, backups []string) {
	for i := len(files) - 1; i >= 0; i-- {
		if backups[i] != "" {
			os.Rename(backups[i], files[i].Path)
		} else {
			os.Remove(files[i].Path)
		}
	}
}
