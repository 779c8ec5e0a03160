/*
Copyright © 2025 Dean
*/
package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"paperchat/src/core/rag"
	"paperchat/src/ollama"
)

var (
	manageIndexName string
	manageYes       bool
)

// manageCmd represents the manage command
var manageCmd = &cobra.Command{
	Use:   "manage",
	Short: "Inspect and maintain indices, documents and services",
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the health of every backing service",
	RunE:  runStatus,
}

var listIndicesCmd = &cobra.Command{
	Use:   "list-indices",
	Short: "List indices with their document counts",
	RunE:  runListIndices,
}

var deleteIdxCmd = &cobra.Command{
	Use:   "delete-idx",
	Short: "Delete an index and everything in it",
	RunE:  runDeleteIndex,
}

var deleteDocCmd = &cobra.Command{
	Use:   "delete-doc [document]",
	Short: "Delete one document's chunks and its archived copy",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteDocument,
}

var listDocsCmd = &cobra.Command{
	Use:   "list-docs",
	Short: "List archived documents",
	RunE:  runListDocuments,
}

func init() {
	rootCmd.AddCommand(manageCmd)
	manageCmd.AddCommand(statusCmd, listIndicesCmd, deleteIdxCmd, deleteDocCmd, listDocsCmd)
	settingDefaultConfig()

	deleteIdxCmd.Flags().StringVar(&manageIndexName, "index-name", "", "index to delete (default from config)")
	deleteIdxCmd.Flags().BoolVar(&manageYes, "yes", false, "skip the confirmation prompt")
	deleteDocCmd.Flags().StringVar(&manageIndexName, "index-name", "", "index to delete from (default from config)")
	deleteDocCmd.Flags().BoolVar(&manageYes, "yes", false, "skip the confirmation prompt")
}

func runStatus(cmd *cobra.Command, args []string) error {
	store, err := buildStore()
	if err != nil {
		return err
	}
	arc, err := buildArchive()
	if err != nil {
		return err
	}
	client := buildOllamaClient()
	system := rag.NewSystemService(store, ollama.NewRuntime(client), buildEmbedder(client), arc)

	health := system.CheckHealth(cmd.Context())

	fmt.Printf("Overall: %s\n\n", health.Status)
	for _, name := range []string{rag.ComponentStore, rag.ComponentModelRuntime, rag.ComponentEmbeddingModel, rag.ComponentArchive} {
		component := health.Components[name]
		fmt.Printf("  %-16s %s", name, component.Status)
		if component.Message != "" {
			fmt.Printf("  (%s)", component.Message)
		}
		fmt.Println()
	}
	if health.Store != nil {
		fmt.Printf("\nStore: %s %s (%s)\n", health.Store.Engine, health.Store.Version, health.Store.ClusterName)
	}
	if len(health.Models) > 0 {
		fmt.Println("\nModels:")
		for _, m := range health.Models {
			fmt.Printf("  %-32s %9.2f MB\n", m.Name, float64(m.Size)/(1024*1024))
		}
	}
	if health.Status != rag.StatusHealthy {
		return fmt.Errorf("system is %s", health.Status)
	}
	return nil
}

func runListIndices(cmd *cobra.Command, args []string) error {
	store, err := buildStore()
	if err != nil {
		return err
	}
	indices, err := store.ListIndices(cmd.Context())
	if err != nil {
		return err
	}
	if len(indices) == 0 {
		fmt.Println("No indices.")
		return nil
	}
	fmt.Printf("%-24s %10s %10s %8s\n", "INDEX", "DOCS", "SIZE", "HEALTH")
	for _, idx := range indices {
		fmt.Printf("%-24s %10d %10s %8s\n", idx.Name, idx.DocCount, idx.Size, idx.Health)
	}
	return nil
}

func runDeleteIndex(cmd *cobra.Command, args []string) error {
	indexName := manageIndexName
	if indexName == "" {
		indexName = viper.GetString("index.name")
	}
	if !manageYes && !confirm(fmt.Sprintf("Delete index %q and all its chunks?", indexName)) {
		fmt.Println("Aborted.")
		return nil
	}

	store, err := buildStore()
	if err != nil {
		return err
	}
	if err := store.DeleteIndex(cmd.Context(), indexName); err != nil {
		return err
	}
	fmt.Printf("Deleted index %q.\n", indexName)
	return nil
}

func runDeleteDocument(cmd *cobra.Command, args []string) error {
	document := args[0]
	indexName := manageIndexName
	if indexName == "" {
		indexName = viper.GetString("index.name")
	}
	if !manageYes && !confirm(fmt.Sprintf("Delete %q from index %q and the archive?", document, indexName)) {
		fmt.Println("Aborted.")
		return nil
	}

	store, err := buildStore()
	if err != nil {
		return err
	}
	deleted, err := store.DeleteByDocumentName(cmd.Context(), indexName, document)
	if err != nil {
		return err
	}
	if deleted == 0 {
		fmt.Printf("No chunks found for %q in %q.\n", document, indexName)
	} else {
		fmt.Printf("Deleted %d chunks of %q from %q.\n", deleted, document, indexName)
	}

	arc, err := buildArchive()
	if err != nil {
		return err
	}
	if err := arc.Remove(cmd.Context(), document); err != nil {
		return err
	}
	fmt.Println("Archived copy removed.")
	return nil
}

func runListDocuments(cmd *cobra.Command, args []string) error {
	arc, err := buildArchive()
	if err != nil {
		return err
	}
	docs, err := arc.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Println("No archived documents.")
		return nil
	}
	fmt.Printf("%-3s %-40s %12s %17s\n", "#", "DOCUMENT", "SIZE", "MODIFIED")
	for i, doc := range docs {
		fmt.Printf("%-3d %-40s %9.2f MB %17s\n", i+1, doc.Name, float64(doc.Size)/(1024*1024), doc.ModTime.Format("2006-01-02 15:04"))
	}
	return nil
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}
