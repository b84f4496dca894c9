package state

import "github.com/jbweber/harrow/internal/params"

// Node holds the static properties a resource was declared with.
type Node struct {
	Name        string
	Kind        string
	LibvirtAuth string
	Properties  params.Params
	// BackupDir is the base directory of persistent backups; "." when empty.
	BackupDir string
	// ConnectedTo lists the nodes this one links to.
	ConnectedTo []string
}

func (n *Node) Auth() string { return n.LibvirtAuth }

func (n *Node) Params() params.Params { return n.Properties }

// BackupBase returns the configured backup directory.
func (n *Node) BackupBase() string {
	if n == nil || n.BackupDir == "" {
		return "."
	}
	return n.BackupDir
}
