package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/songforge/internal/generation"
)

func init() {
	rootCmd.AddCommand(healthCmd)
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the daemon and the music generation service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		failed := false

		daemonStatus := "ok"
		resp, err := http.Get("http://" + cfg.HTTP.Listen + "/health")
		if err != nil {
			daemonStatus = "unreachable: " + err.Error()
			failed = true
		} else {
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				daemonStatus = fmt.Sprintf("unhealthy (status %d)", resp.StatusCode)
				failed = true
			}
		}
		fmt.Fprintf(os.Stdout, "daemon      %s  %s\n", cfg.HTTP.Listen, daemonStatus)

		genStatus := "ok"
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		gen := generation.New(cfg.Generation.BaseURL, 10*time.Second)
		if err := gen.Health(ctx); err != nil {
			genStatus = "unhealthy: " + err.Error()
			failed = true
		}
		fmt.Fprintf(os.Stdout, "generation  %s  %s\n", cfg.Generation.BaseURL, genStatus)

		if failed {
			return fmt.Errorf("health check failed")
		}
		return nil
	},
}
