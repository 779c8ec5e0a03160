/*
Copyright © 2025 Dean
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"paperchat/src/log"
)

var verbose bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "paperchat",
	Short: "Chat with your PDF documents using a local LLM",
	Long: `paperchat indexes PDF documents into a hybrid lexical and vector
search index and answers questions about them with a locally running
language model.

Upload documents with "paperchat upload", ask questions interactively
with "paperchat chat", or run one-off queries with "paperchat search".
All services involved (Ollama plus Elasticsearch or Weaviate) run
locally; no document data leaves the machine.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetVerbose()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
