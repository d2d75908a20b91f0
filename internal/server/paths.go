package server

import (
	"errors"
	"path/filepath"
	"strings"
)

// errPathOutsideProject rejects project paths that leave the project directory
var errPathOutsideProject = errors.New("path is outside the project directory")

// projectExtensions are the file types project load and save accept
var projectExtensions = map[string]bool{
	".cvproj": true,
	".json":   true,
	".yaml":   true,
	".yml":    true,
}

// projectRoot is the directory request paths are confined to
type projectRoot struct {
	dir  string
	real string
}

func newProjectRoot(projectPath string) (projectRoot, error) {
	dir, err := filepath.Abs(filepath.Dir(projectPath))
	if err != nil {
		return projectRoot{}, err
	}
	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		real = dir
	}
	return projectRoot{dir: dir, real: real}, nil
}

// resolve turns a request path into an absolute path inside the root.
// Relative paths are taken from the root. Symlinks may not lead out of it.
func (p projectRoot) resolve(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.dir, path)
	}
	path = filepath.Clean(path)
	if !within(p.dir, path) {
		return "", errPathOutsideProject
	}
	if !projectExtensions[strings.ToLower(filepath.Ext(path))] {
		return "", &ErrValidation{Field: "path", Message: "must end in .cvproj, .json, .yaml or .yml"}
	}

	// the file may not exist yet; then its directory decides
	target := path
	if real, err := filepath.EvalSymlinks(target); err == nil {
		target = real
	} else if real, err := filepath.EvalSymlinks(filepath.Dir(target)); err == nil {
		target = filepath.Join(real, filepath.Base(target))
	} else {
		return path, nil
	}
	if !within(p.real, target) {
		return "", errPathOutsideProject
	}
	return path, nil
}

// within reports whether path is strictly below dir
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
