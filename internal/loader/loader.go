// Package loader provides functions for loading Blueprint resources from
// YAML files.
package loader

import (
	"fmt"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/jbweber/harrow/api/v1alpha1"
	"github.com/jbweber/harrow/internal/params"
	"github.com/jbweber/harrow/internal/state"
)

// LoadFromFile loads a Blueprint resource from a YAML file on fs.
func LoadFromFile(fs afero.Fs, path string) (*v1alpha1.Blueprint, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	return LoadFromYAML(data)
}

// LoadFromYAML loads a Blueprint resource from YAML bytes.
// The YAML must be in the harrow.cofront.xyz/v1alpha1 format.
func LoadFromYAML(data []byte) (*v1alpha1.Blueprint, error) {
	var b v1alpha1.Blueprint
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	if b.APIVersion == "" {
		return nil, fmt.Errorf("missing required field: apiVersion")
	}
	if b.Kind == "" {
		return nil, fmt.Errorf("missing required field: kind")
	}

	expectedAPIVersion := v1alpha1.GroupName + "/" + v1alpha1.Version
	if b.APIVersion != expectedAPIVersion {
		return nil, fmt.Errorf("unsupported apiVersion: %s (expected: %s)", b.APIVersion, expectedAPIVersion)
	}
	if b.Kind != v1alpha1.BlueprintKind {
		return nil, fmt.Errorf("unsupported kind: %s (expected: %s)", b.Kind, v1alpha1.BlueprintKind)
	}

	b.Normalize()

	if err := validateSpec(&b); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &b, nil
}

// SaveToFile saves a Blueprint resource to a YAML file on fs.
func SaveToFile(fs afero.Fs, b *v1alpha1.Blueprint, path string) error {
	v1alpha1.SetDefaultAPIVersion(b)

	data, err := yaml.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal blueprint to YAML: %w", err)
	}

	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	return nil
}

// validateSpec checks node names, types and relationships.
func validateSpec(b *v1alpha1.Blueprint) error {
	if len(b.Spec.Nodes) == 0 {
		return fmt.Errorf("spec.nodes must have at least one node")
	}

	seen := make(map[string]bool)
	for i, n := range b.Spec.Nodes {
		if n.Name == "" {
			return fmt.Errorf("spec.nodes[%d].name is required", i)
		}
		if seen[n.Name] {
			return fmt.Errorf("spec.nodes[%d].name %q is duplicated", i, n.Name)
		}
		seen[n.Name] = true

		if !n.Type.Valid() {
			return fmt.Errorf("spec.nodes[%d].type %q is not one of %v", i, n.Type, v1alpha1.NodeTypes)
		}
		if n.Instances < 0 {
			return fmt.Errorf("spec.nodes[%d].instances must not be negative", i)
		}
	}

	for i, n := range b.Spec.Nodes {
		for _, target := range n.ConnectedTo {
			if target == n.Name {
				return fmt.Errorf("spec.nodes[%d] is connected to itself", i)
			}
			if !seen[target] {
				return fmt.Errorf("spec.nodes[%d].connectedTo references unknown node %q", i, target)
			}
		}
	}

	return nil
}

// Defaults fill node fields the blueprint leaves empty.
type Defaults struct {
	LibvirtAuth string
	BackupDir   string
}

// Nodes converts the blueprint nodes into state nodes. Auth and backup
// directory fall back to the blueprint spec, then to d.
func Nodes(b *v1alpha1.Blueprint, d Defaults) []*state.Node {
	out := make([]*state.Node, 0, len(b.Spec.Nodes))
	for _, n := range b.Spec.Nodes {
		out = append(out, &state.Node{
			Name:        n.Name,
			Kind:        string(n.Type),
			LibvirtAuth: first(n.LibvirtAuth, b.Spec.LibvirtAuth, d.LibvirtAuth),
			BackupDir:   first(n.BackupDir, b.Spec.BackupDir, d.BackupDir),
			Properties:  params.Params(n.Properties).Clone(),
			ConnectedTo: append([]string(nil), n.ConnectedTo...),
		})
	}
	return out
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
