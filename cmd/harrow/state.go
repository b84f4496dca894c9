package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/harrow/internal/output"
	"github.com/jbweber/harrow/internal/state"
	"github.com/jbweber/harrow/internal/status"
)

var (
	outputFormat string
	noHeaders    bool
	live         bool
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect stored instance state",
}

var stateShowCmd = &cobra.Command{
	Use:   "show <instance-id>",
	Short: "Show the state of one instance",
	Long: `Show the stored state of an instance.

Output formats:
  -o table  Human-readable table (default)
  -o yaml   Full YAML state
  -o json   Full JSON state`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inst, err := app.Store.Load(args[0])
		if err != nil {
			return err
		}
		f, err := formatter()
		if err != nil {
			return err
		}
		row, err := rowOf(cmd, inst)
		if err != nil {
			return err
		}
		result, err := f.Format(row)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), result)
		return nil
	},
}

var stateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored instances",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		insts, err := app.Store.List()
		if err != nil {
			return err
		}
		f, err := formatter()
		if err != nil {
			return err
		}
		rows := make([]output.Row, 0, len(insts))
		for _, inst := range insts {
			row, err := rowOf(cmd, inst)
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
		result, err := f.FormatList(rows)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), result)
		return nil
	},
}

func init() {
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateListCmd)
	for _, c := range []*cobra.Command{stateShowCmd, stateListCmd} {
		c.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, yaml, json)")
		c.Flags().BoolVar(&noHeaders, "no-headers", false, "omit table headers")
		c.Flags().BoolVar(&live, "live", false, "query the hypervisor for the current phase")
	}
}

func formatter() (output.Formatter, error) {
	return output.NewFormatter(output.Options{
		Format:    output.Format(outputFormat),
		NoHeaders: noHeaders,
	})
}

// rowOf derives the phase of inst, probing the hypervisor with --live.
func rowOf(cmd *cobra.Command, inst *state.Instance) (output.Row, error) {
	if !live {
		return output.NewRow(inst, status.Derive(inst)), nil
	}
	auth := inst.Auth()
	if auth == "" {
		auth = app.Config.URI
	}
	phase, err := status.Live(cmd.Context(), app.Opener, auth, inst)
	if err != nil {
		return output.Row{}, fmt.Errorf("failed to query %s: %w", inst.ID(), err)
	}
	return output.NewRow(inst, phase), nil
}
