package v1alpha1

import (
	"fmt"
	"strings"
	"time"
)

const (
	// GroupName is the API group for harrow resources.
	GroupName = "harrow.cofront.xyz"

	// Version is the API version.
	Version = "v1alpha1"

	// BlueprintKind is the kind string for Blueprint resources.
	BlueprintKind = "Blueprint"
)

// NodeTypes lists the node types in install order.
var NodeTypes = []NodeType{NodeTypePool, NodeTypeVolume, NodeTypeISO, NodeTypeNetwork, NodeTypeDomain}

// NewBlueprint creates a Blueprint with TypeMeta and ObjectMeta defaults.
func NewBlueprint(name string) *Blueprint {
	return &Blueprint{
		TypeMeta: TypeMeta{
			APIVersion: GroupName + "/" + Version,
			Kind:       BlueprintKind,
		},
		ObjectMeta: ObjectMeta{
			Name:              name,
			CreationTimestamp: Time{Time: time.Now().UTC().Truncate(time.Second)},
		},
	}
}

// SetDefaultAPIVersion ensures the blueprint has the correct apiVersion and
// kind.
func SetDefaultAPIVersion(b *Blueprint) {
	if b.APIVersion == "" {
		b.APIVersion = GroupName + "/" + Version
	}
	if b.Kind == "" {
		b.Kind = BlueprintKind
	}
}

// Valid reports whether t is a known node type.
func (t NodeType) Valid() bool {
	for _, known := range NodeTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Order returns the install position of t; unknown types sort last.
func (t NodeType) Order() int {
	for i, known := range NodeTypes {
		if t == known {
			return i
		}
	}
	return len(NodeTypes)
}

// Node returns the named node or nil.
func (b *Blueprint) Node(name string) *NodeSpec {
	for i := range b.Spec.Nodes {
		if b.Spec.Nodes[i].Name == name {
			return &b.Spec.Nodes[i]
		}
	}
	return nil
}

// InstanceIDs returns the ids of the node's instances.
func (n *NodeSpec) InstanceIDs() []string {
	count := n.Instances
	if count <= 0 {
		count = 1
	}
	ids := make([]string, count)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s_%d", n.Name, i+1)
	}
	return ids
}

// Input returns the inputs declared for operation, or nil.
func (n *NodeSpec) Input(operation string) map[string]any {
	return n.Inputs[operation]
}

// Normalize trims names and lowercases types.
func (b *Blueprint) Normalize() {
	b.Name = strings.TrimSpace(b.Name)
	for i := range b.Spec.Nodes {
		n := &b.Spec.Nodes[i]
		n.Name = strings.TrimSpace(n.Name)
		n.Type = NodeType(strings.ToLower(strings.TrimSpace(string(n.Type))))
		for j := range n.ConnectedTo {
			n.ConnectedTo[j] = strings.TrimSpace(n.ConnectedTo[j])
		}
	}
}
