package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/nnnkkk7/geoquery/server/handlers"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var (
		port    string
		viewTTL time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve tables over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				opts.cfg.Port = port
			}
			if cmd.Flags().Changed("view-ttl") {
				if viewTTL < 0 {
					return fmt.Errorf("view-ttl cannot be negative, got %s", viewTTL)
				}
				opts.cfg.ViewTTL = viewTTL
			}
			return runServe(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port")
	cmd.Flags().DurationVar(&viewTTL, "view-ttl", 0, "close table views open longer than this (0 keeps them)")

	return cmd
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	ctx := cmd.Context()
	ds, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := ds.Close(); err != nil {
			opts.logger.Error().Err(err).Msg("failed to close data source")
		}
	}()

	if opts.cfg.ViewTTL > 0 {
		go ds.ExpireViews(ctx, opts.cfg.ViewTTL)
	}

	handler := handlers.NewTableHandler(ds, opts.cfg.RowLimit, opts.logger)
	server := &http.Server{
		Addr:         ":" + opts.cfg.Port,
		Handler:      handlers.NewRouter(handler),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		opts.logger.Info().Str("port", opts.cfg.Port).Str("backend", string(ds.Kind())).Msg("starting geoquery")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	opts.logger.Info().Msg("shutting down")
	return server.Shutdown(shutdownCtx)
}
