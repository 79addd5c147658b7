// Package assets finds, serves and pre-scales the images shown by the
// display instances.
package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound is returned when an image does not exist.
	ErrNotFound = errors.New("image not found")
	// ErrForbidden is returned for names that would escape the image roots.
	ErrForbidden = errors.New("access denied")
)

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
}

// IsImage reports whether name has an accepted image extension.
func IsImage(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

// Placeholders are the names used when a folder cannot be listed at all.
func Placeholders() []string {
	names := make([]string, 10)
	for i := range names {
		names[i] = fmt.Sprintf("image%d.jpg", i+1)
	}
	return names
}

// ScaledFolder is the name of the directory holding the scaled variants of
// folder.
func ScaledFolder(folder string) string {
	return folder + "-scaled"
}

// Lister resolves image folders. A folder is looked up in the project root
// first and in the home directory when the project has no such folder. Scaled
// variants always live in the project root.
type Lister struct {
	root string
	home string
}

// NewLister creates a Lister over the project root and home directory. home
// may be empty.
func NewLister(root, home string) *Lister {
	l := new(Lister)
	l.root, _ = filepath.Abs(root)
	if home != "" {
		l.home, _ = filepath.Abs(home)
	}
	return l
}

// Root is the absolute project root.
func (l *Lister) Root() string {
	return l.root
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`) && !strings.Contains(name, "..")
}

// SourceDir returns the directory holding the originals of folder.
func (l *Lister) SourceDir(folder string) string {
	dir := filepath.Join(l.root, folder)
	if _, err := os.Stat(dir); err != nil && l.home != "" {
		return filepath.Join(l.home, folder)
	}
	return dir
}

func (l *Lister) scaledDir(folder string) string {
	return filepath.Join(l.root, ScaledFolder(folder))
}

// List returns the image names of folder: every scaled variant, plus any
// original without a scaled twin. A folder that does not exist lists empty.
func (l *Lister) List(folder string) ([]string, error) {
	if !validName(folder) {
		return nil, fmt.Errorf("folder %q: %w", folder, ErrForbidden)
	}

	src := l.SourceDir(folder)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return []string{}, nil
	}

	originals, err := readImages(src)
	if err != nil {
		return nil, err
	}

	scaled, err := readImages(l.scaledDir(folder))
	if err != nil {
		return originals, nil
	}

	seen := make(map[string]bool, len(scaled))
	for _, name := range scaled {
		seen[name] = true
	}
	for _, name := range originals {
		if !seen[name] {
			scaled = append(scaled, name)
		}
	}
	return scaled, nil
}

func readImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && IsImage(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Resolve returns the path of one image, preferring the scaled variant. The
// result is guaranteed to lie under the project root or the home directory.
func (l *Lister) Resolve(folder, file string) (string, error) {
	if !validName(folder) || !validName(file) {
		return "", ErrForbidden
	}

	path := filepath.Join(l.scaledDir(folder), file)
	if _, err := os.Stat(path); err != nil {
		path = filepath.Join(l.SourceDir(folder), file)
	}

	path, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if !within(path, l.root) && !within(path, l.home) {
		return "", ErrForbidden
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s/%s: %w", folder, file, ErrNotFound)
	}
	return path, nil
}

func within(path, dir string) bool {
	if dir == "" {
		return false
	}
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
