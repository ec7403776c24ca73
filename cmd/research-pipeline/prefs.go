// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-pipeline/internal/session"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Read and write stored preferences",
}

var prefsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a preference",
	Long: `Set stores a preference in preferences.json next to the sessions.
Values that parse as JSON (numbers, booleans, arrays, objects) are stored
as such; anything else is stored as a string.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSessions(loadConfig())
		if err != nil {
			return err
		}
		return store.SetPreference(args[0], parsePreference(args[1]))
	},
}

var prefsGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one preference, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSessions(loadConfig())
		if err != nil {
			return err
		}
		if len(args) == 1 {
			v, ok := store.Preference(args[0])
			if !ok {
				return fmt.Errorf("%w: preference %q not set", types.ErrInvalidInput, args[0])
			}
			return printValue(v)
		}
		prefs := store.Preferences()
		for _, k := range session.SortedPreferenceKeys(prefs) {
			b, err := json.Marshal(prefs[k])
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "%-24s  %s\n", k, b)
		}
		return nil
	},
}

func parsePreference(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

func printValue(v any) error {
	if s, ok := v.(string); ok {
		fmt.Println(s)
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	prefsCmd.AddCommand(prefsSetCmd)
	prefsCmd.AddCommand(prefsGetCmd)
	rootCmd.AddCommand(prefsCmd)
}
