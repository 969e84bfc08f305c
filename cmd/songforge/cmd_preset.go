package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/user/songforge/internal/state"
)

func init() {
	rootCmd.AddCommand(presetCmd)
	presetCmd.AddCommand(presetListCmd, presetShowCmd)
}

func presetStore() *state.PresetStore {
	cfg := loadConfig()
	return state.NewPresetStore(filepath.Join(cfg.DataDir, "presets.json"))
}

var presetCmd = &cobra.Command{
	Use:   "preset",
	Short: "Inspect style presets",
}

var presetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List style presets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := presetStore()
		styles, err := store.Styles()
		if err != nil {
			return fmt.Errorf("list presets: %w", err)
		}

		if len(styles) == 0 {
			fmt.Println("No presets configured.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STYLE\tSCHEDULE\tPROMPT")
		for _, p := range styles {
			fmt.Fprintf(w, "%s\t%d points\t%s\n",
				p.Style,
				len(p.GuidanceSchedule),
				p.Prompt,
			)
		}
		return w.Flush()
	},
}

var presetShowCmd = &cobra.Command{
	Use:   "show <style>",
	Short: "Show one style preset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := presetStore()
		p, err := store.Style(args[0])
		if err != nil {
			return fmt.Errorf("load preset: %w", err)
		}

		data, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal preset: %w", err)
		}
		fmt.Fprintln(os.Stdout, string(data))
		return nil
	},
}
