/*
Copyright © 2025 Dean
*/
package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"paperchat/src/core/rag"
	"paperchat/src/infrastructure/job"
)

var (
	uploadIndexName string
	uploadEnqueue   bool
)

// uploadCmd represents the upload command
var uploadCmd = &cobra.Command{
	Use:   "upload [pdf file]",
	Short: "Index a PDF document for retrieval",
	Long: `The upload command extracts the text of a PDF, splits it into
overlapping chunks, embeds every chunk and writes the result into the
document store. A copy of the original file is archived.

Uploading a document with a name that is already indexed replaces the
previous version. With --enqueue the work is handed to the background
worker instead of running in this shell.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	settingDefaultConfig()

	uploadCmd.Flags().StringVar(&uploadIndexName, "index-name", "", "index to write into (default from config)")
	uploadCmd.Flags().BoolVar(&uploadEnqueue, "enqueue", false, "queue the upload for the background worker")
}

func runUpload(cmd *cobra.Command, args []string) error {
	path := args[0]
	indexName := uploadIndexName
	if indexName == "" {
		indexName = viper.GetString("index.name")
	}

	if uploadEnqueue {
		return enqueueUpload(cmd, path, indexName)
	}

	bar := progressbar.Default(int64(len(rag.IngestStages)), "starting")
	pipeline, err := buildPipeline(rag.WithStageCallback(func(stage rag.Stage) {
		bar.Describe(string(stage))
		_ = bar.Add(1)
	}))
	if err != nil {
		return err
	}

	result, err := pipeline.Ingest(cmd.Context(), path, indexName)
	_ = bar.Finish()
	fmt.Println()

	var partial *rag.PartialIndexingError
	switch {
	case errors.As(err, &partial):
		fmt.Printf("Indexed with some errors: %d/%d chunks successful\n", partial.Indexed, partial.Indexed+len(partial.Failed))
		for _, failure := range partial.Failed {
			fmt.Printf("  chunk %d: %s\n", failure.Ordinal, failure.Reason)
		}
	case err != nil:
		return err
	}

	fmt.Println("Upload complete")
	fmt.Printf("  Document:   %s\n", result.DocumentName)
	fmt.Printf("  Index:      %s\n", result.IndexName)
	fmt.Printf("  Archived:   %s\n", result.ArchivePath)
	fmt.Printf("  Characters: %d\n", result.Characters)
	fmt.Printf("  Chunks:     %d (indexed %d)\n", result.Chunks, result.Indexed)
	if result.Replaced > 0 {
		fmt.Printf("  Replaced:   %d chunks from an earlier upload\n", result.Replaced)
	}
	return nil
}

// enqueueUpload records an ingestion job and publishes it to the worker
// queue. The path is made absolute because the worker resolves it on its
// own filesystem.
func enqueueUpload(cmd *cobra.Command, path, indexName string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	db, closeDB, err := openPostgres()
	if err != nil {
		return err
	}
	defer closeDB()

	repo, err := job.NewPostgresRepository(db)
	if err != nil {
		return err
	}

	publisher, err := amqp.NewPublisher(
		amqp.NewDurableQueueConfig(viper.GetString("amqp.url")),
		watermillLogger(),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to message broker: %w", err)
	}
	defer publisher.Close()

	jobs := job.NewService(publisher, repo, nil, viper.GetString("worker.queue"))
	queued, err := jobs.EnqueueIngest(cmd.Context(), absPath, indexName)
	if err != nil {
		return err
	}

	fmt.Printf("Queued ingestion job %d for %s\n", queued.ID, filepath.Base(path))
	fmt.Printf("Check on it with: curl http://localhost:%s/jobs/%d\n", viper.GetString("worker.port"), queued.ID)
	return nil
}
