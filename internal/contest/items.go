package contest

import "strconv"

// SampleItem is one sample case shown in the statement.
type SampleItem struct {
	ID     int    `json:"id" yaml:"id"`
	Input  string `json:"input,omitempty" yaml:"input"`
	Output string `json:"output,omitempty" yaml:"output"`
}

// Finalize fills empty file names with "{id}.in" / "{id}.ans".
func (s *SampleItem) Finalize() {
	s.Input, s.Output = defaultFiles(s.ID, s.Input, s.Output)
}

// DataItem is one scored test group.
type DataItem struct {
	ID     int    `json:"id" yaml:"id"`
	Score  int    `json:"score" yaml:"score"`
	Input  string `json:"input,omitempty" yaml:"input"`
	Output string `json:"output,omitempty" yaml:"output"`
}

// Finalize fills empty file names with "{id}.in" / "{id}.ans".
func (d *DataItem) Finalize() {
	d.Input, d.Output = defaultFiles(d.ID, d.Input, d.Output)
}

// Finalize applies default file names to every sample and data item.
func (p *ProblemConfig) Finalize() {
	for i := range p.Samples {
		p.Samples[i].Finalize()
	}
	for i := range p.Data {
		p.Data[i].Finalize()
	}
}

func defaultFiles(id int, input, output string) (string, string) {
	name := strconv.Itoa(id)
	if input == "" {
		input = name + ".in"
	}
	if output == "" {
		output = name + ".ans"
	}
	return input, output
}
