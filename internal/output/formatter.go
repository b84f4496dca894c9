// Package output provides formatters for displaying instance state in
// various formats (table, YAML, JSON).
package output

import (
	"fmt"

	"github.com/jbweber/harrow/internal/state"
	"github.com/jbweber/harrow/internal/status"
)

// Format represents an output format type.
type Format string

const (
	// FormatTable is a human-readable table format.
	FormatTable Format = "table"
	// FormatYAML is a YAML format.
	FormatYAML Format = "yaml"
	// FormatJSON is a JSON format for machine consumption.
	FormatJSON Format = "json"
)

// Row is one instance with its display phase.
type Row struct {
	state.Record `yaml:",inline"`
	Phase        status.Phase `json:"phase" yaml:"phase"`
}

// NewRow returns the row of inst in phase.
func NewRow(inst *state.Instance, phase status.Phase) Row {
	return Row{Record: inst.Record(), Phase: phase}
}

// Formatter formats instance rows for output.
type Formatter interface {
	// Format formats a single instance.
	Format(r Row) (string, error)

	// FormatList formats a list of instances.
	FormatList(rows []Row) (string, error)
}

// Options contains options for formatting output.
type Options struct {
	// Format specifies the output format.
	Format Format
	// NoHeaders omits headers in table format.
	NoHeaders bool
}

// NewFormatter creates a new Formatter based on the specified format.
func NewFormatter(opts Options) (Formatter, error) {
	switch opts.Format {
	case FormatTable:
		return &TableFormatter{NoHeaders: opts.NoHeaders}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, yaml, json)", opts.Format)
	}
}
