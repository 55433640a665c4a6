// Command amd-aggregator serves AMD module layers and administers running
// aggregators.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/amd-aggregator/internal/config"
	"github.com/Sternrassler/amd-aggregator/internal/server"
	"github.com/Sternrassler/amd-aggregator/pkg/logging"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "amd-aggregator",
		Short:         "AMD module aggregation server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newLayersCmd())
	root.AddCommand(newReloadCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "amd-aggregator", version)
		},
	})
	return root
}

func newServeCmd() *cobra.Command {
	var configPath, envFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the aggregator",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			logging.Setup(logging.Config{
				Level:  logging.LogLevel(cfg.Log.Level),
				Pretty: cfg.Log.Pretty,
				Output: os.Stderr,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, comps, err := server.Wire(ctx, cfg)
			if err != nil {
				return err
			}
			defer comps.Close()

			return srv.Run(ctx, cfg.Server.Addr)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", os.Getenv("AMD_CONFIG"), "YAML config file (env AMD_CONFIG)")
	cmd.Flags().StringVar(&envFile, "env-file", "", "Env file loaded before the config (default .env if present)")
	return cmd
}

type adminClient struct {
	baseURL string
	http    *http.Client
}

func (c *adminClient) do(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	target := strings.TrimRight(c.baseURL, "/") + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%s %s: status=%d body=%s", method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func addAdminFlags(cmd *cobra.Command, cl *adminClient) {
	cmd.PersistentFlags().StringVar(&cl.baseURL, "addr", envOr("AMD_ADMIN_URL", "http://localhost:8080"),
		"Aggregator base URL (env AMD_ADMIN_URL)")
}

func newLayersCmd() *cobra.Command {
	cl := &adminClient{http: &http.Client{Timeout: 30 * time.Second}}

	cmd := &cobra.Command{
		Use:   "layers",
		Short: "Inspect and invalidate cached layers",
	}
	addAdminFlags(cmd, cl)

	var filter string
	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "Print cached layers, optionally filtered by a key regexp",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if filter != "" {
				q.Set("filter", filter)
			}
			body, err := cl.do(cmd.Context(), http.MethodGet, "/admin/layers", q)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(body)
			return err
		},
	}
	dumpCmd.Flags().StringVar(&filter, "filter", "", "Regular expression matched against layer keys")

	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Print cached layer keys as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := cl.do(cmd.Context(), http.MethodGet, "/admin/layers/keys", nil)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(body)
			return err
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached layer",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := cl.do(cmd.Context(), http.MethodDelete, "/admin/layers", nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cleared")
			return nil
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove KEY",
		Short: "Drop the layer cached under KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{"key": {args[0]}}
			if _, err := cl.do(cmd.Context(), http.MethodDelete, "/admin/layers/entry", q); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "removed")
			return nil
		},
	}

	cmd.AddCommand(dumpCmd, keysCmd, clearCmd, removeCmd)
	return cmd
}

func newReloadCmd() *cobra.Command {
	cl := &adminClient{http: &http.Client{Timeout: 30 * time.Second}}

	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Re-register loader extensions and clear the layer cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := cl.do(cmd.Context(), http.MethodPost, "/admin/reload", nil)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(body)
			return err
		},
	}
	addAdminFlags(cmd, cl)
	return cmd
}

func envOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
