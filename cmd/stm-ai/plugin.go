package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/essoktani-yazid/stm-ai-gateway/pkg/plugin"
)

var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Inspect speech and language providers",
}

var pluginListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KIND\tNAME\tDESCRIPTION")
		for _, p := range plugin.List(kind) {
			fmt.Fprintf(w, "%s\t%s\t%s\n", p.Kind, p.Name, p.Description)
		}
		return w.Flush()
	},
}

func init() {
	pluginListCmd.Flags().String("kind", "", "only list llm, stt or tts providers")
	pluginCmd.AddCommand(pluginListCmd)
}
