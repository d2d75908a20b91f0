package project

import (
	"os"
	"path/filepath"

	"github.com/jonathan/cv-editor/internal/types"
)

// Save writes rec to path, choosing the format from the extension. The
// file is written to a sibling temporary file and renamed into place.
func Save(path string, rec types.Record) error {
	data, err := Encode(rec, FormatFor(path))
	if err != nil {
		return &PersistenceError{Op: "save", Path: path, Cause: err}
	}
	if err := writeFileAtomic(path, data); err != nil {
		return &PersistenceError{Op: "save", Path: path, Cause: err}
	}
	return nil
}

// Load reads the project at path and returns base with the document merged
// in. The caller applies the result with Store.Replace, so a failed load
// leaves the live record untouched.
func Load(path string, base types.Record) (types.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Record{}, &PersistenceError{Op: "load", Path: path, Cause: err}
	}
	rec, err := Decode(data, FormatFor(path), base)
	if err != nil {
		return types.Record{}, &PersistenceError{Op: "load", Path: path, Cause: err}
	}
	return rec, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
