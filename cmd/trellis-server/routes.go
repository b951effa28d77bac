package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/muurk/trellis/internal/config"
	"github.com/muurk/trellis/internal/ui"
	"github.com/muurk/trellis/internal/webapp"
	"github.com/muurk/trellis/internal/wsapp"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Print the routing table",
	Long: `Build every configured handler and print the resulting routing table in
the order locations are matched against request paths.`,
	RunE: runRoutes,
}

func runRoutes(cmd *cobra.Command, args []string) (err error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	built, err := config.Build(context.Background(), cfg, nil)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, built.Close()) }()

	rows, err := routeRows(cfg, built)
	if err != nil {
		return err
	}
	ui.NewPrinter(cmd.OutOrStdout()).PrintRoutes(rows)
	return nil
}

func splitLocations(location string) []string {
	return strings.Fields(location)
}

// routeRows lists the HTTP routes and then the WebSocket routes, each in
// lexical order of location.
func routeRows(cfg *config.Config, built *config.Built) ([]ui.RouteRow, error) {
	httpTypes := make(map[string]string)
	for _, h := range cfg.Handlers {
		for _, loc := range splitLocations(h.Location) {
			httpTypes[loc] = h.Type
		}
	}
	wsTypes := make(map[string]string)
	for _, w := range cfg.WebSocket {
		for _, loc := range splitLocations(w.Location) {
			wsTypes[loc] = w.Type
		}
	}

	var rows []ui.RouteRow
	err := built.Routing.Table().Walk(func(location string, _ webapp.Route) error {
		rows = append(rows, ui.RouteRow{Location: location, Kind: "http", Handler: httpTypes[location]})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if built.WebSocket != nil {
		err = built.WebSocket.Table().Walk(func(location string, _ wsapp.Handler) error {
			rows = append(rows, ui.RouteRow{Location: location, Kind: "websocket", Handler: wsTypes[location]})
			return nil
		})
	}
	return rows, err
}
