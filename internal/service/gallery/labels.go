package gallery

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
)

//go:embed coco_labels.txt
var cocoLabels []byte

// Labels maps the detector's class indices to human-readable names.
// Index 0 is the background class.
type Labels struct {
	names []string
}

// LoadLabels reads one label per line; the line number is the class index.
func LoadLabels(r io.Reader) (*Labels, error) {
	var names []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			return nil, fmt.Errorf("blank label at index %d", len(names))
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}

	if len(names) < 2 {
		return nil, fmt.Errorf("label table needs a background entry and at least one class, got %d entries", len(names))
	}

	return &Labels{names: names}, nil
}

// DefaultLabels returns the COCO table the SSD MobileNet model was trained on.
func DefaultLabels() *Labels {
	labels, err := LoadLabels(bytes.NewReader(cocoLabels))
	if err != nil {
		panic(fmt.Sprintf("embedded label table is invalid: %v", err))
	}
	return labels
}

// LoadLabelsFile reads a label table from path, or returns the default table when path is empty.
func LoadLabelsFile(path string) (*Labels, error) {
	if path == "" {
		return DefaultLabels(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open labels file: %w", err)
	}
	defer f.Close()

	return LoadLabels(f)
}

// Label resolves a class index.
func (l *Labels) Label(index int) (string, bool) {
	if index < 0 || index >= len(l.names) {
		return "", false
	}
	return l.names[index], true
}

// Len returns the number of entries including the background class.
func (l *Labels) Len() int {
	return len(l.names)
}
