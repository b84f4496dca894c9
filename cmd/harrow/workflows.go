package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jbweber/harrow/internal/params"
	"github.com/jbweber/harrow/internal/plugin"
)

var parallel int

var installCmd = &cobra.Command{
	Use:   "install <blueprint.yaml>",
	Short: "Create, configure and start every node of a blueprint",
	Long: `Install runs create, configure and start for every instance of the
blueprint. Pools go first, then volumes, ISO images, networks and domains.
Instances of the same type run in parallel. Domains are linked to the
networks they are connected to once everything is running.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, p, err := app.Runner(args[0], parallel)
		if err != nil {
			return err
		}
		if err := r.Install(cmd.Context(), p); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Blueprint %s installed\n", p.Name)
		return nil
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <blueprint.yaml>",
	Short: "Unlink, stop and delete every node of a blueprint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, p, err := app.Runner(args[0], parallel)
		if err != nil {
			return err
		}
		if err := r.Uninstall(cmd.Context(), p); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Blueprint %s uninstalled\n", p.Name)
		return nil
	},
}

var (
	execInstance string
	execSource   string
	execInputs   []string
)

var execCmd = &cobra.Command{
	Use:   "exec <blueprint.yaml> <node> <operation>",
	Short: "Run a single operation on the instances of a node",
	Long: `Run one lifecycle operation on every instance of a node, or on the
instance given with --instance.

Inputs declared for the operation in the blueprint are passed along and may
be overridden with --input key=value. Values are parsed as YAML.

Relationship operations (link, unlink) need the other end of the
relationship with --source.

Example:
  harrow exec lab.yaml vm snapshot_create --input snapshot_name=nightly
  harrow exec lab.yaml private link --source vm_1`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		node, operation := args[1], args[2]
		kw, err := parseInputs(execInputs)
		if err != nil {
			return err
		}

		r, p, err := app.Runner(args[0], parallel)
		if err != nil {
			return err
		}
		step := p.Step(node)
		if step == nil {
			return fmt.Errorf("node %s not found in blueprint %s", node, p.Name)
		}
		ids := step.Instances
		if execInstance != "" {
			if !slices.Contains(ids, execInstance) {
				return fmt.Errorf("instance %s does not belong to node %s", execInstance, node)
			}
			ids = []string{execInstance}
		}

		link := operation == plugin.OpLink || operation == plugin.OpUnlink
		if link && execSource == "" {
			return fmt.Errorf("operation %s needs --source", operation)
		}

		for _, id := range ids {
			if link {
				err = r.RunLink(cmd.Context(), step, id, operation, execSource, kw)
			} else {
				err = r.Run(cmd.Context(), step, id, operation, kw)
			}
			if err != nil {
				return fmt.Errorf("%s %s: %w", operation, id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s %s\n", operation, id)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{installCmd, uninstallCmd, execCmd} {
		c.Flags().IntVar(&parallel, "parallel", 0, "max instances of one type processed at once (0 = unlimited)")
	}
	execCmd.Flags().StringVar(&execInstance, "instance", "", "run on this instance only")
	execCmd.Flags().StringVar(&execSource, "source", "", "source instance of a relationship operation")
	execCmd.Flags().StringArrayVar(&execInputs, "input", nil, "operation input as key=value (repeatable)")
}

// parseInputs turns key=value pairs into kwargs, decoding each value as YAML.
func parseInputs(pairs []string) (params.Kwargs, error) {
	kw := params.Kwargs{}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid input %q, expected key=value", pair)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("invalid value of input %s: %w", key, err)
		}
		if value == nil {
			value = raw
		}
		kw[key] = value
	}
	return kw, nil
}
