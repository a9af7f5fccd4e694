// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/aclkey/internal/config"
	"github.com/holomush/aclkey/internal/observability"
	"github.com/holomush/aclkey/internal/store"
	"github.com/holomush/aclkey/internal/web"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an HTTP server that authorizes every request",
		Long: `Serve answers requests to /module/controller/action. Each request is
authorized against its permission key using the subject named by the
subject header. Permitted requests receive the resolved key as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())
	config.RegisterServeFlags(cmd.Flags())

	return cmd
}

// keyResponse is the body served to permitted requests.
type keyResponse struct {
	Key        string `json:"key"`
	Module     string `json:"module"`
	Controller string `json:"controller"`
	Action     string `json:"action"`
}

// keyHandler reports the permission key resolved by the middleware.
func keyHandler(w http.ResponseWriter, r *http.Request) {
	res := web.FromContext(r.Context())
	if res == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	//nolint:errcheck // client may disconnect
	json.NewEncoder(w).Encode(keyResponse{
		Key:        res.PermissionKey(),
		Module:     res.CurrentModule(),
		Controller: res.CurrentController(),
		Action:     res.CurrentAction(),
	})
}

// runServe runs the guarded server until ctx is done or a server fails.
func runServe(ctx context.Context, cmd *cobra.Command, deps *Deps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		obsServer *observability.Server
		metrics   *observability.Metrics
		recorder  store.LookupRecorder
		source    identitySource
	)
	if cfg.HTTP.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.HTTP.MetricsAddr, func(ctx context.Context) error {
			if source == nil {
				return oops.Errorf("grant source not open")
			}
			return source.Ready(ctx)
		})
		metrics = obsServer.Metrics()
		recorder = metrics
	}

	source, err = openIdentitySource(ctx, cfg, recorder, deps)
	if err != nil {
		return err
	}
	defer source.Close()

	mw := &web.Middleware{
		Config:   cfg.ACL,
		Route:    web.PathRoute,
		Identify: web.HeaderIdentify(cfg.HTTP.SubjectHeader, source.Identity),
		Metrics:  metrics,
		Logger:   slog.Default(),
	}

	listener, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return oops.Code("LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}
	httpSrv := &http.Server{
		Handler:           mw.Handler(http.HandlerFunc(keyHandler)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()
	slog.Info("guarded server listening", "addr", listener.Addr().String())

	if obsServer != nil {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			shutdown(httpSrv, nil)
			return oops.With("addr", cfg.HTTP.MetricsAddr).Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	var runErr error
	select {
	case err := <-errChan:
		runErr = oops.Code("SERVE_FAILED").Wrap(err)
	case <-ctx.Done():
		slog.Info("shutting down")
	}

	shutdown(httpSrv, obsServer)
	slog.Info("shutdown complete")
	return runErr
}

func shutdown(httpSrv *http.Server, obsServer *observability.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		slog.Warn("error stopping guarded server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(ctx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}
}

// monitorServerErrors cancels ctx when errCh reports an error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown", "server", serverName, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
