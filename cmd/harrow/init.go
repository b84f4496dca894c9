package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/jbweber/harrow/api/v1alpha1"
	"github.com/jbweber/harrow/internal/loader"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init <name> [file]",
	Short: "Write a starter blueprint",
	Long: `Write a blueprint with a pool, a volume, a network and a domain
connected to it. The file defaults to <name>.yaml.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		path := name + ".yaml"
		if len(args) == 2 {
			path = args[1]
		}

		fs := afero.NewOsFs()
		if exists, err := afero.Exists(fs, path); err != nil {
			return err
		} else if exists && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		if err := loader.SaveToFile(fs, starter(name), path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Blueprint written to %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")
}

func starter(name string) *v1alpha1.Blueprint {
	b := v1alpha1.NewBlueprint(name)
	b.Spec.Nodes = []v1alpha1.NodeSpec{
		{
			Name:       "images",
			Type:       v1alpha1.NodeTypePool,
			Properties: map[string]any{"name": name + "-images"},
		},
		{
			Name: "disk",
			Type: v1alpha1.NodeTypeVolume,
			Properties: map[string]any{
				"name":     name + ".qcow2",
				"pool":     name + "-images",
				"capacity": 10240,
			},
		},
		{
			Name: "private",
			Type: v1alpha1.NodeTypeNetwork,
			Properties: map[string]any{
				"name":       name + "-net",
				"dev":        "virbr-" + name,
				"ip":         "192.168.150.1",
				"dhcp_start": "192.168.150.100",
				"dhcp_end":   "192.168.150.200",
			},
		},
		{
			Name: "vm",
			Type: v1alpha1.NodeTypeDomain,
			Properties: map[string]any{
				"memory_size": 1024,
				"vcpu":        1,
				"disks":       []any{map[string]any{"pool": name + "-images", "volume": name + ".qcow2"}},
				"networks":    []any{map[string]any{"network": name + "-net"}},
			},
			ConnectedTo: []string{"private"},
		},
	}
	return b
}
