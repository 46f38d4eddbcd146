package main

import (
	"fmt"

	"github.com/aretw0/ussdflow/internal/presentation/graph"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the flow graph visualization",
	Long:  `Outputs a Mermaid diagram (graph TD) of the menu states and transitions, optionally marking where a live session is parked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")

		svc, closeStore, err := openService()
		if err != nil {
			return err
		}
		defer closeStore()

		var overlay *graph.Overlay
		if sessionID != "" {
			sess, err := svc.Sessions().Load(cmd.Context(), sessionID)
			if err != nil {
				return fmt.Errorf("load session %q: %w", sessionID, err)
			}
			overlay = &graph.Overlay{Current: sess.State}
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(svc.Table(), overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("session", "", "Highlight the current state of this session")
}
