// Package testutil builds contest directory trees for tests.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// ProblemFixture describes one problem directory.
type ProblemFixture struct {
	Folder    string
	Name      string
	Type      string
	TimeLimit float64
	Memory    string
	DataCount int
	// Statement is written to statement.md unless NoStatement is set.
	Statement   string
	NoStatement bool
	Version     int
}

// DayFixture describes one contest-day directory.
type DayFixture struct {
	Folder   string
	Name     string
	Title    string
	Problems []ProblemFixture
	Flags    map[string]bool
	Version  int
}

// ContestFixture describes a contest root.
type ContestFixture struct {
	Name       string
	Days       []DayFixture
	Precaution string
	Flags      map[string]bool
	Version    int
}

// WriteContest materializes fixture under root and returns root.
func WriteContest(t *testing.T, root string, fixture ContestFixture) string {
	t.Helper()

	name := fixture.Name
	if name == "" {
		name = "demo"
	}
	subdirs := make([]string, 0, len(fixture.Days))
	for _, day := range fixture.Days {
		subdirs = append(subdirs, day.Folder)
	}
	contest := map[string]interface{}{
		"version":     versionOr(fixture.Version),
		"folder":      "contest",
		"name":        name,
		"subdir":      subdirs,
		"title":       "Demo Contest",
		"short title": "DC",
	}
	for k, v := range fixture.Flags {
		contest[k] = v
	}
	WriteJSON(t, filepath.Join(root, "conf.json"), contest)
	if fixture.Precaution != "" {
		WriteFile(t, filepath.Join(root, "precaution.md"), fixture.Precaution)
	}

	for _, day := range fixture.Days {
		writeDay(t, filepath.Join(root, day.Folder), day)
	}
	return root
}

func writeDay(t *testing.T, dir string, day DayFixture) {
	t.Helper()

	subdirs := make([]string, 0, len(day.Problems))
	for _, p := range day.Problems {
		subdirs = append(subdirs, p.Folder)
	}
	name := day.Name
	if name == "" {
		name = day.Folder
	}
	title := day.Title
	if title == "" {
		title = name
	}
	record := map[string]interface{}{
		"version":    versionOr(day.Version),
		"folder":     day.Folder,
		"name":       name,
		"subdir":     subdirs,
		"title":      title,
		"compile":    map[string]string{"cpp": "-O2 -std=c++14", "c": "-O2 -std=c99"},
		"start time": []int{2024, 7, 1, 8, 0, 0},
		"end time":   []int{2024, 7, 1, 13, 0, 0},
	}
	for k, v := range day.Flags {
		record[k] = v
	}
	WriteJSON(t, filepath.Join(dir, "conf.json"), record)

	for _, p := range day.Problems {
		writeProblem(t, filepath.Join(dir, p.Folder), p)
	}
}

func writeProblem(t *testing.T, dir string, p ProblemFixture) {
	t.Helper()

	name := p.Name
	if name == "" {
		name = p.Folder
	}
	typ := p.Type
	if typ == "" {
		typ = "program"
	}
	tl := p.TimeLimit
	if tl == 0 {
		tl = 1
	}
	mem := p.Memory
	if mem == "" {
		mem = "512 MiB"
	}
	data := make([]map[string]interface{}, 0, p.DataCount)
	for i := 1; i <= p.DataCount; i++ {
		data = append(data, map[string]interface{}{"id": i, "score": 100 / p.DataCount})
	}
	record := map[string]interface{}{
		"version":       versionOr(p.Version),
		"folder":        p.Folder,
		"type":          typ,
		"name":          name,
		"title":         name,
		"time limit":    tl,
		"memory limit":  mem,
		"partial score": false,
		"samples":       []map[string]interface{}{{"id": 1}},
		"data":          data,
	}
	WriteJSON(t, filepath.Join(dir, "conf.json"), record)
	if !p.NoStatement {
		statement := p.Statement
		if statement == "" {
			statement = "# " + name + "\n\nCompute the answer.\n"
		}
		WriteFile(t, filepath.Join(dir, "statement.md"), statement)
	}
}

func versionOr(v int) int {
	if v == 0 {
		return 3
	}
	return v
}

// WriteJSON encodes v into path, creating parent directories.
func WriteJSON(t *testing.T, path string, v interface{}) {
	t.Helper()
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		t.Fatalf("marshal %s: %v", path, err)
	}
	WriteFile(t, path, string(data))
}

// WriteFile writes content into path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteTemplate creates a minimal template directory with the required
// entry files plus one nested asset.
func WriteTemplate(t *testing.T, dir string) string {
	t.Helper()
	WriteFile(t, filepath.Join(dir, "main.typ"), "#import \"utils.typ\": *\n")
	WriteFile(t, filepath.Join(dir, "utils.typ"), "#let sample = none\n")
	WriteFile(t, filepath.Join(dir, "fonts", "README"), "fonts go here\n")
	return dir
}
