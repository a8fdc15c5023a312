package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"annobox/pkg/config"
	"annobox/pkg/workspace"
)

var (
	serveListen    string
	serveBatch     string
	serveServerURL string
	serveTesting   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a batch for annotation",
	Long: `Serve a batch of items as an annotation page.

The server provides:
  - /                  - The annotation page
  - /api/items         - Item states as JSON
  - /api/items/N:setLabel, /api/items/N:submit
  - /api/events        - Websocket stream of label and submit events
  - /healthz           - Health check

Examples:
  annobox serve --batch items.json
  annobox serve --batch items.yaml --server-url http://annotate:5000
  annobox serve --batch items.json --testing   # log payloads, send nothing`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		for _, f := range []struct {
			flag, key string
			value     any
		}{
			{"listen", "listen", serveListen},
			{"batch", "batch_file", serveBatch},
			{"server-url", "server_url", serveServerURL},
			{"testing", "testing", serveTesting},
		} {
			if err := setFlag(cfgManager, cmd, f.flag, f.key, f.value); err != nil {
				return err
			}
		}
		cfg := cfgManager.Get()

		batch, err := loadBatch(cfg)
		if err != nil {
			return err
		}

		svcConfig := workspace.DefaultServiceConfig()
		svcConfig.Title = cfg.Title
		svcConfig.ServerURL = cfg.ServerURL
		svcConfig.EnableEvents = cfg.Events

		svc, err := workspace.NewService(svcConfig, batch, newSubmitClient(cfg), logger)
		if err != nil {
			return err
		}
		defer svc.Close()

		cfgManager.OnChange(func(c *config.Config) {
			if l, err := config.ParseLevel(c.Log.Level); err == nil {
				levelVar.Set(l)
			}
		})
		if cfgManager.File() != "" {
			cfgManager.WatchConfig(logger)
		}

		mux := http.NewServeMux()
		svc.RegisterRoutes(mux)
		srv := &http.Server{
			Addr:              cfg.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("serving batch",
				"listen", cfg.Listen,
				"items", len(batch),
				"server_url", cfg.ServerURL,
				"testing", cfg.Testing,
			)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "127.0.0.1:8080", "address to listen on")
	serveCmd.Flags().StringVar(&serveBatch, "batch", "", "batch file (.json, .yaml or .yml)")
	serveCmd.Flags().StringVar(&serveServerURL, "server-url", "", "annotation server base URL")
	serveCmd.Flags().BoolVar(&serveTesting, "testing", false, "log submissions instead of sending them")

	rootCmd.AddCommand(serveCmd)
}
