package pspnet

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Label is one dataset class with its display name and RGB color used
// for visualization.  Labels play no role in the prediction math.
type Label struct {
	ID    int      `yaml:"id"`
	Name  string   `yaml:"name"`
	Color [3]uint8 `yaml:"color"`
}

// LabelTable maps dataset class ids to display names and colors
type LabelTable struct {
	labels []Label
	byID   map[int]Label
	byName map[string]Label
}

// LoadLabelTable reads a dataset label table from a YAML file holding
// a list of id, name and color entries
func LoadLabelTable(file string) (*LabelTable, error) {

	data, err := os.ReadFile(file)

	if err != nil {
		return nil, fmt.Errorf("error reading label file: %w", err)
	}

	var labels []Label

	if err := yaml.Unmarshal(data, &labels); err != nil {
		return nil, fmt.Errorf("error parsing label file %s: %w", file, err)
	}

	if len(labels) == 0 {
		return nil, fmt.Errorf("label file %s contains no labels", file)
	}

	return NewLabelTable(labels), nil
}

// NewLabelTable builds a label table from the given labels
func NewLabelTable(labels []Label) *LabelTable {

	t := &LabelTable{
		labels: labels,
		byID:   make(map[int]Label, len(labels)),
		byName: make(map[string]Label, len(labels)),
	}

	for _, l := range labels {
		t.byID[l.ID] = l
		t.byName[l.Name] = l
	}

	return t
}

// ByID returns the label of a class id
func (t *LabelTable) ByID(id int) (Label, error) {

	l, ok := t.byID[id]

	if !ok {
		return Label{}, fmt.Errorf("no label for class id %d", id)
	}

	return l, nil
}

// ByName returns the label with the given display name
func (t *LabelTable) ByName(name string) (Label, error) {

	l, ok := t.byName[name]

	if !ok {
		return Label{}, fmt.Errorf("no label named %q", name)
	}

	return l, nil
}

// Labels returns all labels in file order
func (t *LabelTable) Labels() []Label {
	return t.labels
}

// Len returns the number of labels in the table
func (t *LabelTable) Len() int {
	return len(t.labels)
}

// LoadLabels reads a plain text class name list, one label per line,
// for models shipping bare label lists without colors
func LoadLabels(file string) ([]string, error) {

	// open the file
	f, err := os.Open(file)

	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}

	defer f.Close()

	// create a scanner to read the file
	scanner := bufio.NewScanner(f)

	var labels []string

	// read and trim each line
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		labels = append(labels, line)
	}

	// check for errors during scanning
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	return labels, nil
}
