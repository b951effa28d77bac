package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/trellis/internal/discovery"
)

// Discover command flags
var (
	discoverTimeout int
	discoverJSON    bool
	discoverName    string
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find trellis servers on the local network",
	Long: `Browse mDNS for servers started with discovery.enabled and list their
addresses. Other HTTP services on the network are ignored.`,
	Example: `  # Browse for 5 seconds (default)
  trellis-server discover

  # Wait for one instance by name
  trellis-server discover --name build-box --timeout 15`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().IntVar(&discoverTimeout, "timeout", 5, "Browse timeout in seconds")
	discoverCmd.Flags().BoolVar(&discoverJSON, "json", false, "Print results as JSON")
	discoverCmd.Flags().StringVar(&discoverName, "name", "", "Wait for the instance with this name")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	scanner := discovery.NewScanner()
	scanner.Timeout = time.Duration(discoverTimeout) * time.Second

	var instances []*discovery.Instance
	if discoverName != "" {
		inst, err := scanner.WaitFor(cmd.Context(), discoverName)
		if err != nil {
			return err
		}
		instances = append(instances, inst)
	} else {
		found, err := scanner.Scan(cmd.Context())
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		instances = found
	}

	out := cmd.OutOrStdout()
	if discoverJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(instances)
	}

	if len(instances) == 0 {
		fmt.Fprintln(out, "No servers found.")
		fmt.Fprintln(out, "\nTroubleshooting:")
		fmt.Fprintln(out, "  - Ensure the server runs with discovery.enabled: true")
		fmt.Fprintln(out, "  - Check that both hosts are on the same network segment")
		fmt.Fprintln(out, "  - Try increasing --timeout for slower networks")
		return nil
	}

	fmt.Fprintf(out, "Found %d server(s):\n\n", len(instances))
	for i, inst := range instances {
		fmt.Fprintf(out, "%d. %s\n", i+1, inst.Name)
		fmt.Fprintf(out, "   Server:  %s\n", inst.ServerID)
		fmt.Fprintf(out, "   URL:     %s\n", inst.BaseURL())
		if inst.Hostname != "" {
			fmt.Fprintf(out, "   Host:    %s\n", inst.Hostname)
		}
		fmt.Fprintln(out)
	}
	return nil
}
