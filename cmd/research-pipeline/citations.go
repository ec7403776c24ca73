// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-pipeline/internal/citation"
)

var citationsCmd = &cobra.Command{
	Use:   "citations <session-id>",
	Short: "Print the references of a saved session",
	Long: `Citations prints the reference list of a saved session in the chosen
style, or as CSL-YAML with --csl for import into a reference manager.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := findSession(args[0])
		if err != nil {
			return err
		}

		csl, _ := cmd.Flags().GetBool("csl")
		if csl {
			return citation.WriteCSL(os.Stdout, sess.Citations)
		}

		styleName, _ := cmd.Flags().GetString("style")
		style, err := citation.ParseStyle(styleName)
		if err != nil {
			return err
		}
		if len(sess.Citations) == 0 {
			fmt.Println("No citations recorded.")
			return nil
		}
		fmt.Println(citation.ReferenceList(sess.Citations, style, true))
		return nil
	},
}

func init() {
	citationsCmd.Flags().String("style", "apa", "citation style: apa, mla, chicago, bibtex")
	citationsCmd.Flags().Bool("csl", false, "output CSL-YAML")

	rootCmd.AddCommand(citationsCmd)
}
