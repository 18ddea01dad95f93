package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hl-compare/hl-compare/internal/evidence"
	"github.com/hl-compare/hl-compare/internal/server"
	"github.com/hl-compare/hl-compare/internal/session"
	"github.com/hl-compare/hl-compare/internal/web"
)

const (
	sessionPruneInterval = 5 * time.Minute
	sessionMaxIdle       = 2 * time.Hour
)

var (
	servePort int
	serveNoUI bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the comparison API and browser UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		cfg.Server.Port = port

		env, err := initApp(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		srv, ui, err := buildServer(env, port, !serveNoUI)
		if err != nil {
			return err
		}
		if ui != nil {
			go ui.PruneSessions(ctx, sessionPruneInterval, sessionMaxIdle)
		}

		return srv.Run(ctx, port)
	},
}

// buildServer wires the JSON API, file serving and, when withUI is set, the
// browser UI mounted under /ui.
func buildServer(env *appEnv, port int, withUI bool) (*server.Server, *web.Handler, error) {
	var opts []server.Option
	if dir := env.localDir(); dir != "" {
		opts = append(opts, server.WithFiles(dir))
	}

	var ui *web.Handler
	if withUI {
		h, err := web.New(
			session.NewRegistry(env.Service),
			web.WithProber(evidence.NewHTTPProber(fmt.Sprintf("http://localhost:%d", port))),
			web.WithMaxUpload(cfg.Server.MaxUploadMB),
		)
		if err != nil {
			return nil, nil, eris.Wrap(err, "init web ui")
		}
		ui = h
		opts = append(opts, server.WithUI(ui))
	}

	return server.New(cfg.Server, env.Service, opts...), ui, nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveNoUI, "no-ui", false, "serve the JSON API only")
	rootCmd.AddCommand(serveCmd)
}
