package compiler

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultCompiler is the executable used for moderncv documents with fontspec
const DefaultCompiler = "xelatex"

// Locator resolves the compiler executable. Resolution order: explicit Path,
// the platform's well-known install locations, then a PATH lookup.
type Locator struct {
	// Name is the bare command name, e.g. "xelatex"
	Name string
	// Path, when set, is the only location tried
	Path string
	// GOOS selects the well-known install locations; empty means runtime.GOOS
	GOOS string

	// LookPath and Getenv are swappable for tests
	LookPath func(string) (string, error)
	Getenv   func(string) string
}

// NewLocator returns a locator for name on the current platform
func NewLocator(name string) *Locator {
	if name == "" {
		name = DefaultCompiler
	}
	return &Locator{Name: name}
}

// Candidates lists the well-known install paths checked before PATH.
// Windows has no reliable global command after a MiKTeX install, and macOS
// GUI launches often miss /Library/TeX/texbin.
func (l *Locator) Candidates() []string {
	goos := l.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	getenv := l.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	switch goos {
	case "windows":
		exe := l.Name + ".exe"
		paths := []string{
			winJoin(`C:\Program Files\MiKTeX\miktex\bin\x64`, exe),
			winJoin(`C:\Program Files (x86)\MiKTeX\miktex\bin`, exe),
		}
		if local := getenv("LOCALAPPDATA"); local != "" {
			paths = append(paths, winJoin(local, `Programs\MiKTeX\miktex\bin\x64`, exe))
		}
		if user := getenv("USERNAME"); user != "" {
			paths = append(paths, winJoin(`C:\Users`, user, `AppData\Local\Programs\MiKTeX\miktex\bin\x64`, exe))
		}
		if runtime.GOOS == "windows" {
			matches, _ := filepath.Glob(filepath.Join(`C:\texlive`, "*", "bin", "windows", exe))
			paths = append(paths, matches...)
		}
		return paths
	case "darwin":
		return []string{
			filepath.Join("/Library/TeX/texbin", l.Name),
			filepath.Join("/usr/local/texlive/bin/universal-darwin", l.Name),
		}
	default:
		return nil
	}
}

// Locate returns the path of the compiler executable or a *NotFoundError
func (l *Locator) Locate() (string, error) {
	if l.Path != "" {
		if isExecutableFile(l.Path) {
			return l.Path, nil
		}
		return "", &NotFoundError{Name: l.Name, Tried: []string{l.Path}}
	}

	tried := []string{}
	for _, candidate := range l.Candidates() {
		tried = append(tried, candidate)
		if isExecutableFile(candidate) {
			return candidate, nil
		}
	}

	lookPath := l.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	tried = append(tried, l.Name)
	path, err := lookPath(l.Name)
	if err != nil {
		return "", &NotFoundError{Name: l.Name, Tried: tried, Cause: err}
	}
	return path, nil
}

func winJoin(parts ...string) string {
	return strings.Join(parts, `\`)
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode()&0111 != 0
}
