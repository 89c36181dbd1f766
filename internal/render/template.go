// Package render stages contest days into Typst workspaces and compiles them.
package render

import (
	"archive/tar"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	appErr "tuackng/pkg/errors"
)

const (
	// MainFile is the template entry compiled for every day.
	MainFile = "main.typ"
	// UtilsFile holds helpers imported by converted statements.
	UtilsFile = "utils.typ"
	// ArchiveExt marks a packed template.
	ArchiveExt = ".tar.zst"
	// DefaultTemplate is used when the command line names none.
	DefaultTemplate = "template"

	appName = "tuack-ng"
)

// RequiredFiles must exist in every template.
var RequiredFiles = []string{MainFile, UtilsFile}

// DefaultDirs returns the template search path: the working directory's
// templates folder, the user data directory and the system data directory.
func DefaultDirs() []string {
	dirs := []string{"templates"}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dataHome = filepath.Join(home, ".local", "share")
		}
	}
	if dataHome != "" {
		dirs = append(dirs, filepath.Join(dataHome, appName, "templates"))
	}
	return append(dirs, filepath.Join("/usr", "share", appName, "templates"))
}

// Template is a located template, either a directory or a .tar.zst archive.
type Template struct {
	Name    string
	Path    string
	Archive bool
}

// Locator searches template directories in order.
type Locator struct {
	Dirs []string
}

// Find returns the first template called name in the search path.
func (l Locator) Find(name string) (*Template, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return nil, appErr.BadRequest("invalid template name: " + name)
	}

	for _, dir := range l.Dirs {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return &Template{Name: name, Path: candidate}, nil
		}
		archive := candidate + ArchiveExt
		if info, err := os.Stat(archive); err == nil && info.Mode().IsRegular() {
			return &Template{Name: name, Path: archive, Archive: true}, nil
		}
	}
	return nil, appErr.Newf(appErr.TemplateNotFound, "template %q not found", name).
		WithDetail("template", name).
		WithDetail("searched", strings.Join(l.Dirs, string(os.PathListSeparator)))
}

// Validate checks that the template carries every required file.
func (t *Template) Validate() error {
	if t.Archive {
		return t.validateArchive()
	}
	for _, name := range RequiredFiles {
		info, err := os.Stat(filepath.Join(t.Path, name))
		if err != nil || !info.Mode().IsRegular() {
			return missingFile(t, name)
		}
	}
	return nil
}

func (t *Template) validateArchive() error {
	present := make(map[string]bool)
	err := walkArchive(t.Path, func(name string, hdr *tar.Header, _ io.Reader) error {
		if hdr.Typeflag == tar.TypeReg {
			present[name] = true
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, name := range RequiredFiles {
		if !present[name] {
			return missingFile(t, name)
		}
	}
	return nil
}

func missingFile(t *Template, name string) error {
	return appErr.Newf(appErr.TemplateMissingRequiredFile, "template %s is missing %s", t.Name, name).
		WithDetail("template", t.Path).
		WithDetail("file", name)
}

// Seed copies the template contents into dst, which must already exist.
func (t *Template) Seed(dst string) error {
	if t.Archive {
		return extractTemplate(t.Path, dst)
	}
	return copyTree(t.Path, dst)
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return appErr.FilesystemFailure(err, "walk", path)
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return appErr.FilesystemFailure(err, "resolve", path)
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return appErr.FilesystemFailure(err, "create", target)
			}
			return nil
		}
		info, err := os.Stat(path)
		if err != nil {
			return appErr.FilesystemFailure(err, "stat", path)
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		return copyFile(path, target, info.Mode().Perm())
	})
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return appErr.FilesystemFailure(err, "open", src)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return appErr.FilesystemFailure(err, "create", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return appErr.FilesystemFailure(err, "copy", dst)
	}
	if err := out.Close(); err != nil {
		return appErr.FilesystemFailure(err, "close", dst)
	}
	return nil
}

// walkArchive visits every entry of a .tar.zst file with a cleaned relative
// name. Entries escaping the archive root make the template invalid.
func walkArchive(path string, visit func(name string, hdr *tar.Header, r io.Reader) error) error {
	file, err := os.Open(path)
	if err != nil {
		return appErr.FilesystemFailure(err, "open", path)
	}
	defer file.Close()

	zstdReader, err := zstd.NewReader(file)
	if err != nil {
		return appErr.Wrapf(err, appErr.TemplateInvalid, "create zstd reader failed")
	}
	defer zstdReader.Close()

	tr := tar.NewReader(zstdReader)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return appErr.Wrapf(err, appErr.TemplateInvalid, "read template archive %s failed", path)
		}
		if hdr.Name == "" {
			continue
		}
		cleanName := filepath.Clean(hdr.Name)
		if cleanName == "." {
			continue
		}
		if strings.HasPrefix(cleanName, "..") || filepath.IsAbs(cleanName) {
			return appErr.Newf(appErr.TemplateInvalid, "invalid archive entry %s", hdr.Name).
				WithDetail("template", path)
		}
		if err := visit(cleanName, hdr, tr); err != nil {
			return err
		}
	}
}

func extractTemplate(path, dstDir string) error {
	root := filepath.Clean(dstDir) + string(filepath.Separator)
	return walkArchive(path, func(name string, hdr *tar.Header, r io.Reader) error {
		target := filepath.Join(dstDir, name)
		if !strings.HasPrefix(target, root) {
			return appErr.New(appErr.TemplateInvalid).WithMessage("archive entry escape detected")
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return appErr.FilesystemFailure(err, "create", target)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return appErr.FilesystemFailure(err, "create", filepath.Dir(target))
			}
			perm := fs.FileMode(hdr.Mode).Perm()
			if perm == 0 {
				perm = 0644
			}
			file, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
			if err != nil {
				return appErr.FilesystemFailure(err, "create", target)
			}
			if _, err := io.Copy(file, r); err != nil {
				_ = file.Close()
				return appErr.FilesystemFailure(err, "write", target)
			}
			_ = file.Close()
		default:
			// links and devices are not part of a template
		}
		return nil
	})
}
