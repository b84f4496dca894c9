package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var testConnCmd = &cobra.Command{
	Use:   "test-conn",
	Short: "Test libvirt connection",
	Long:  `Test connectivity to the libvirt daemon and display version information.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Testing libvirt connection to %s...\n", app.Config.URI)

		client, err := app.Opener.Connect(cmd.Context(), app.Config.URI)
		if err != nil {
			return fmt.Errorf("failed to connect to libvirt: %w", err)
		}
		defer func() {
			if closeErr := client.Close(); closeErr != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close libvirt connection: %v\n", closeErr)
			}
		}()

		fmt.Fprintln(out, "✓ Connected to libvirt daemon")

		if err := client.Ping(); err != nil {
			return fmt.Errorf("connection test failed: %w", err)
		}

		// libvirt encodes 8.6.0 as 8006000
		v, err := client.Libvirt().ConnectGetLibVersion()
		if err != nil {
			return fmt.Errorf("failed to get libvirt version: %w", err)
		}
		fmt.Fprintf(out, "✓ Libvirt version: %d.%d.%d\n", v/1000000, (v%1000000)/1000, v%1000)

		hostname, err := client.Libvirt().ConnectGetHostname()
		if err != nil {
			return fmt.Errorf("failed to get hostname: %w", err)
		}
		fmt.Fprintf(out, "✓ Hypervisor hostname: %s\n", hostname)

		uri, err := client.Libvirt().ConnectGetUri()
		if err != nil {
			return fmt.Errorf("failed to get connection URI: %w", err)
		}
		fmt.Fprintf(out, "✓ Connection URI: %s\n", uri)

		fmt.Fprintln(out, "\nConnection test successful!")
		return nil
	},
}
