package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/user/songforge/internal/config"
	"github.com/user/songforge/internal/state"
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionListCmd, sessionStateCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect sessions on the running daemon",
}

// apiGet calls the daemon's HTTP API and decodes the envelope's data payload
// into out. Sessions live in the daemon's memory, so there is nothing to read
// from disk when it isn't running.
func apiGet(cfg *config.Config, path string, out any) error {
	resp, err := http.Get("http://" + cfg.HTTP.Listen + path)
	if err != nil {
		return fmt.Errorf("daemon not reachable at %s: %w", cfg.HTTP.Listen, err)
	}
	defer resp.Body.Close()

	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		if env.Error != nil {
			return fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		var list state.SessionList
		if err := apiGet(cfg, "/api/v1/session?limit=100", &list); err != nil {
			return err
		}

		if len(list.Sessions) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTAGE\tPROGRESS\tAUDIO\tCREATED")
		for _, s := range list.Sessions {
			fmt.Fprintf(w, "%s\t%s\t%d%%\t%d\t%s\n",
				s.SessionID,
				s.CurrentStage,
				s.Progress,
				s.AudioCount,
				s.CreatedAt.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

var sessionStateCmd = &cobra.Command{
	Use:   "state <id>",
	Short: "Show the full state of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		var snap state.SessionSnapshot
		if err := apiGet(cfg, "/api/v1/session/"+args[0]+"/state", &snap); err != nil {
			return err
		}

		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal snapshot: %w", err)
		}
		fmt.Fprintln(os.Stdout, string(data))
		return nil
	},
}
