package output

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter formats rows as YAML.
type YAMLFormatter struct{}

func (f *YAMLFormatter) Format(r Row) (string, error) {
	data, err := yaml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s to YAML: %w", r.ID, err)
	}
	return string(data), nil
}

// FormatList outputs a YAML stream, one document per instance.
func (f *YAMLFormatter) FormatList(rows []Row) (string, error) {
	var buf bytes.Buffer
	for i, r := range rows {
		data, err := f.Format(r)
		if err != nil {
			return "", err
		}
		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.WriteString(data)
	}
	return buf.String(), nil
}
