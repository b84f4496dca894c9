package v1alpha1

// Blueprint declares a set of libvirt resources and the relationships
// between them. Each node expands into one or more instances whose runtime
// state harrow keeps between operations.
//
// +kubebuilder:object:root=true
type Blueprint struct {
	TypeMeta   `json:",inline" yaml:",inline"`
	ObjectMeta `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	Spec BlueprintSpec `json:"spec" yaml:"spec"`
}

// BlueprintSpec defines the nodes of a Blueprint.
type BlueprintSpec struct {
	// LibvirtAuth is the auth of nodes declaring none, e.g.
	// qemu+tcp://hv1/system.
	// +optional
	LibvirtAuth string `json:"libvirtAuth,omitempty" yaml:"libvirtAuth,omitempty"`

	// BackupDir is the base directory of persistent backups of nodes
	// declaring none.
	// +optional
	BackupDir string `json:"backupDir,omitempty" yaml:"backupDir,omitempty"`

	// +kubebuilder:validation:MinItems=1
	Nodes []NodeSpec `json:"nodes" yaml:"nodes"`
}

// NodeSpec declares one resource.
type NodeSpec struct {
	// Name is unique within the blueprint. Instances are named
	// {name}_{index}, starting at 1.
	Name string `json:"name" yaml:"name"`

	// Type is the resource kind.
	// +kubebuilder:validation:Enum=pool;volume;iso;network;domain
	Type NodeType `json:"type" yaml:"type"`

	// Instances is the number of instances. Defaults to 1.
	// +optional
	// +kubebuilder:validation:Minimum=1
	Instances int `json:"instances,omitempty" yaml:"instances,omitempty"`

	// +optional
	LibvirtAuth string `json:"libvirtAuth,omitempty" yaml:"libvirtAuth,omitempty"`
	// +optional
	BackupDir string `json:"backupDir,omitempty" yaml:"backupDir,omitempty"`

	// Properties are the static params of every instance.
	// +optional
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`

	// Inputs are the keyword arguments passed to an operation by the
	// workflows, keyed by operation name.
	// +optional
	Inputs map[string]map[string]any `json:"inputs,omitempty" yaml:"inputs,omitempty"`

	// ConnectedTo names nodes this one depends on. A domain connected to a
	// network is linked to it once both are started.
	// +optional
	ConnectedTo []string `json:"connectedTo,omitempty" yaml:"connectedTo,omitempty"`
}

// NodeType is the resource kind of a node.
type NodeType string

const (
	NodeTypePool    NodeType = "pool"
	NodeTypeVolume  NodeType = "volume"
	NodeTypeISO     NodeType = "iso"
	NodeTypeNetwork NodeType = "network"
	NodeTypeDomain  NodeType = "domain"
)
