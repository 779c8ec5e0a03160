/*
Copyright © 2025 Dean
*/
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	searchIndexName string
	searchTopK      int
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed documents",
	Long: `The search command embeds the query, runs a hybrid lexical and
vector search against the index and prints the best matching chunks
with their scores. Use it to check what the chat command would
retrieve for a question.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	settingDefaultConfig()

	searchCmd.Flags().StringVar(&searchIndexName, "index-name", "", "index to search (default from config)")
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 0, "number of results (default from config)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	indexName := searchIndexName
	if indexName == "" {
		indexName = viper.GetString("index.name")
	}
	topK := searchTopK
	if topK <= 0 {
		topK = viper.GetInt("search.top_k")
	}

	svc, err := buildSearchService()
	if err != nil {
		return err
	}

	results, err := svc.Search(cmd.Context(), indexName, query, topK)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}

	fmt.Printf("Found %d results for %q in %q\n\n", len(results), query, indexName)
	for i, hit := range results {
		fmt.Printf("%d. %s (chunk %d/%d, score %.4f)\n", i+1, hit.DocumentName, hit.Ordinal+1, hit.TotalChunks, hit.Score)
		fmt.Printf("   %s\n\n", preview(hit.Text, 150))
	}
	return nil
}

// preview collapses whitespace and truncates text to limit runes. PDF
// chunks carry the layout line breaks of the source document.
func preview(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
