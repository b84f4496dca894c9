package output

import (
	"encoding/json"
	"fmt"
)

// JSONFormatter formats rows as JSON.
type JSONFormatter struct{}

func (f *JSONFormatter) Format(r Row) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s to JSON: %w", r.ID, err)
	}
	return string(data) + "\n", nil
}

// FormatList outputs a JSON array.
func (f *JSONFormatter) FormatList(rows []Row) (string, error) {
	if len(rows) == 0 {
		return "[]\n", nil
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal instances to JSON: %w", err)
	}
	return string(data) + "\n", nil
}
