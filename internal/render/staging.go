package render

import (
	"os"
	"path/filepath"

	"tuackng/internal/manifest"
	appErr "tuackng/pkg/errors"
)

const (
	stagingDirName = "tmp"
	noticeTypst    = "precaution.typ"
)

// Layout describes the filesystem layout for rendering one day.
type Layout struct {
	DayDir       string
	StagingDir   string
	ManifestPath string
	NoticePath   string
	PDFName      string
	StagedPDF    string
	FinalPDF     string
}

// NewLayout places a day's output under outputDir/<day>.
func NewLayout(outputDir, day string) Layout {
	dayDir := filepath.Join(outputDir, day)
	staging := filepath.Join(dayDir, stagingDirName)
	pdf := day + ".pdf"
	return Layout{
		DayDir:       dayDir,
		StagingDir:   staging,
		ManifestPath: filepath.Join(staging, manifest.FileName),
		NoticePath:   filepath.Join(staging, noticeTypst),
		PDFName:      pdf,
		StagedPDF:    filepath.Join(staging, pdf),
		FinalPDF:     filepath.Join(dayDir, pdf),
	}
}

// StatementPath is the staged Typst file for the problem at index.
func (l Layout) StatementPath(index int) string {
	return filepath.Join(l.StagingDir, manifest.StatementFile(index))
}

// Prepare creates the day directory and a fresh staging directory, removing
// anything left by an earlier run.
func (l Layout) Prepare() error {
	if err := os.MkdirAll(l.DayDir, 0755); err != nil {
		return appErr.FilesystemFailure(err, "create", l.DayDir)
	}
	if err := os.RemoveAll(l.StagingDir); err != nil {
		return appErr.FilesystemFailure(err, "remove", l.StagingDir)
	}
	if err := os.Mkdir(l.StagingDir, 0755); err != nil {
		return appErr.FilesystemFailure(err, "create", l.StagingDir)
	}
	return nil
}

// WriteFile writes data to path inside the staging directory.
func (l Layout) WriteFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return appErr.FilesystemFailure(err, "write", path)
	}
	return nil
}

// Promote copies the compiled PDF next to the staging directory and removes
// the staging directory.
func (l Layout) Promote() error {
	info, err := os.Stat(l.StagedPDF)
	if err != nil {
		return appErr.FilesystemFailure(err, "stat", l.StagedPDF)
	}
	if err := copyFile(l.StagedPDF, l.FinalPDF, info.Mode().Perm()); err != nil {
		return err
	}
	if err := os.RemoveAll(l.StagingDir); err != nil {
		return appErr.FilesystemFailure(err, "remove", l.StagingDir)
	}
	return nil
}
