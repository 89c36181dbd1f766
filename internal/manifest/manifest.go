// Package manifest projects one contest day into the flat data.json
// document read by the Typst template.
package manifest

import (
	"encoding/json"
	"fmt"
)

// FileName is the manifest file name inside a staging directory.
const FileName = "data.json"

// DataJSON is the template-facing manifest for one contest day.
type DataJSON struct {
	Title            string            `json:"title"`
	Subtitle         string            `json:"subtitle"`
	DayName          string            `json:"dayname"`
	Date             DateInfo          `json:"date"`
	UsePretest       bool              `json:"use_pretest"`
	NoiStyle         bool              `json:"noi_style"`
	FileIO           bool              `json:"file_io"`
	SupportLanguages []SupportLanguage `json:"support_languages"`
	Problems         []Problem         `json:"problems"`
	Images           []json.RawMessage `json:"images"`
}

// DateInfo holds the six-component start and end timestamps.
type DateInfo struct {
	Start [6]int `json:"start"`
	End   [6]int `json:"end"`
}

// SupportLanguage is one declared submission language.
type SupportLanguage struct {
	Name           string `json:"name"`
	CompileOptions string `json:"compile_options"`
}

// Problem is the presentation record of one problem. Index matches the
// problem-<index>.typ file staged next to the manifest.
type Problem struct {
	Index          int      `json:"index"`
	Name           string   `json:"name"`
	Title          string   `json:"title"`
	Type           string   `json:"type"`
	Dir            string   `json:"dir"`
	Exec           string   `json:"exec"`
	Input          string   `json:"input"`
	Output         string   `json:"output"`
	TimeLimit      string   `json:"time_limit"`
	MemoryLimit    string   `json:"memory_limit"`
	Testcase       string   `json:"testcase"`
	PointEqual     string   `json:"point_equal"`
	SubmitFilename []string `json:"submit_filename"`
}

// StatementFile returns the staged statement file name for the problem at index.
func StatementFile(index int) string {
	return fmt.Sprintf("problem-%d.typ", index)
}

// Encode serializes the manifest the way it is written to disk.
func (d DataJSON) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest failed: %w", err)
	}
	return data, nil
}
