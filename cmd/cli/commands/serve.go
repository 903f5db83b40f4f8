package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/jakechorley/shiftplanner/pkg/api"
)

// ServeCmd creates the serve command
func ServeCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the solver over HTTP",
		Long:  "Start an HTTP server exposing POST /v1/solve, POST /v1/compare, GET /healthz and GET /metrics",
		Args:  cobra.NoArgs,
		Annotations: map[string]string{
			annotationConfig: configOptional,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" && app.Cfg != nil {
				addr = app.Cfg.ServerAddr
			}
			if addr == "" {
				addr = ":8080"
			}

			if os.Getenv("GIN_MODE") == "" {
				gin.SetMode(gin.ReleaseMode)
			}

			ctx, stop := signal.NotifyContext(app.Ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			server := api.NewServer(app.Scheduler, app.Registry, app.Logger)
			if app.Cfg != nil && app.Cfg.TimeLimit > 0 {
				server.DefaultTimeLimit = app.Cfg.TimeLimit
			}
			return server.Run(ctx, addr)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default serverAddr from config, else :8080)")

	return cmd
}
