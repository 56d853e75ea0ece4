package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/astromechza/shared-list/pkg/api"
	"github.com/astromechza/shared-list/pkg/cli"
	"github.com/astromechza/shared-list/pkg/guard"
	"github.com/astromechza/shared-list/pkg/store"
)

func main() {
	cli.Main(newRootCmd())
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "listd",
		Short: "Serve the shared list",
	}
	root.PersistentFlags().String("config", "", "optional config file (yaml, toml or json)")
	root.PersistentFlags().String("log-level", "info", "debug, info, warn or error")
	root.AddCommand(newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the http server",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().String("addr", "localhost:8080", "the address to listen on")
	cmd.Flags().String("store", "sqlite:shared-list.sqlite3", "memory, sqlite:<path> or an http(s) url of a realtime database")
	cmd.Flags().String("access-code", "", "the shared access code, "+guard.FallbackCode+" when unset")
	cmd.Flags().String("remote-credentials", "", "service account key file for a remote store")
	cmd.Flags().String("remote-token", "", "oauth2 access token for a remote store")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		c := cli.NewConfig("LISTD")
		c.MustBindEnv("access-code", "LIST_ACCESS_CODE", "LISTD_ACCESS_CODE")
		configFile, _ := cmd.Flags().GetString("config")
		if err := c.Load(cmd, configFile); err != nil {
			return err
		}
		if err := cli.SetupLogging(c.GetString("log-level")); err != nil {
			return err
		}
		return serve(cmd.Context(), c, nil)
	}
	return cmd
}

// serve runs until ctx is cancelled. ready, when set, receives the bound
// address once the listener is up.
func serve(ctx context.Context, c *cli.Config, ready chan<- string) error {
	code := guard.FallbackCode
	if c.IsSet("access-code") {
		code = c.GetString("access-code")
	} else {
		slog.Warn("no access code configured, using the built-in fallback")
	}
	g := guard.New(code)
	if !g.Enabled() {
		slog.Warn("the access code is blank, every list request will be denied")
	}

	slog.Info("Opening store", "store", c.GetString("store"))
	st, err := store.Open(ctx, c.GetString("store"), store.Options{
		RemoteCredentials: c.GetString("remote-credentials"),
		RemoteToken:       c.GetString("remote-token"),
	})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("failed to close store", "err", err)
		}
	}()

	s := api.New(st, g)
	httpServer := &http.Server{
		Addr:              c.GetString("addr"),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	slog.Info("Listening", "addr", listener.Addr().String())
	if ready != nil {
		ready <- listener.Addr().String()
	}

	wg := new(sync.WaitGroup)
	listenErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutting down")
	case err := <-listenErr:
		s.Close()
		wg.Wait()
		return fmt.Errorf("server failed: %w", err)
	}

	// change feed subscribers are hijacked connections, the hub closes them
	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shut down cleanly", "err", err)
		_ = httpServer.Close()
	}
	wg.Wait()
	return nil
}
