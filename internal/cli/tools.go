package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the built-in tools",
	Long:  `Tools lists the built-in tools the agent loop can offer to the model.`,
	RunE:  runTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	registry, err := demoRegistry()
	if err != nil {
		return err
	}

	for _, name := range registry.Names() {
		t, ok := registry.Get(name)
		if !ok {
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-14s %s\n", t.Name, t.Description)
	}
	return nil
}
