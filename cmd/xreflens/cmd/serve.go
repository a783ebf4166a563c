package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abramin/xreflens/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve [path]",
	Short: "Serve the index over HTTP",
	Long: `Start a local HTTP server answering queries against the index.

Endpoints:
- GET /api/query?kind=Definition&location=src/a.cpp:12:5
- GET /api/hierarchy?location=src/shape.h:4:7&format=json|dot
- GET /api/symbol?usr=c:@S@Shape
- GET /api/stats
- GET /api/health`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := projectDir(args)
		if err != nil {
			return err
		}

		srv, err := server.New(server.Config{
			Port:   servePort,
			DBPath: GetConfig().DBPath(dir),
		}, logger)
		if err != nil {
			return fmt.Errorf("starting server: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on http://localhost:%d\n", dir, srv.Port())
		return srv.Start()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "port to listen on")
}
