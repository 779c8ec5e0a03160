package cmd

import (
	"fmt"
	"net/http"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"paperchat/src/chunker"
	"paperchat/src/core/rag"
	"paperchat/src/ollama"
	"paperchat/src/pdf"
	"paperchat/src/storage/archive"
	"paperchat/src/storage/elastic"
	"paperchat/src/storage/weaviate"
)

// buildStore selects the document store backend from configuration.
func buildStore() (rag.DocumentStore, error) {
	switch backend := viper.GetString("store.backend"); backend {
	case "elastic":
		return elastic.NewStore(
			viper.GetString("elastic.url"),
			elastic.WithWeights(
				viper.GetFloat64("search.lexical_weight"),
				viper.GetFloat64("search.vector_weight"),
			),
		)
	case "weaviate":
		return weaviate.NewStore(
			viper.GetString("weaviate.url"),
			viper.GetString("weaviate.scheme"),
			weaviate.WithAlpha(float32(viper.GetFloat64("search.alpha"))),
		)
	default:
		return nil, &rag.ConfigurationError{Field: "store.backend", Reason: fmt.Sprintf("unknown backend %q", backend)}
	}
}

// buildArchive selects where original uploads are kept.
func buildArchive() (rag.Archive, error) {
	switch backend := viper.GetString("archive.backend"); backend {
	case "local":
		return archive.NewLocal(viper.GetString("archive.dir"))
	case "minio":
		return archive.NewMinio(
			viper.GetString("minio.endpoint"),
			viper.GetString("minio.access_key"),
			viper.GetString("minio.secret_key"),
			viper.GetString("minio.bucket"),
			viper.GetBool("minio.use_ssl"),
		)
	default:
		return nil, &rag.ConfigurationError{Field: "archive.backend", Reason: fmt.Sprintf("unknown backend %q", backend)}
	}
}

func buildOllamaClient() *ollama.Client {
	return ollama.NewClient(viper.GetString("ollama.url"), &http.Client{})
}

func buildEmbedder(client *ollama.Client) *ollama.EmbeddingService {
	return ollama.NewEmbeddingService(client, viper.GetString("ollama.embedding_model"))
}

// buildPipeline assembles the ingestion pipeline from configuration.
func buildPipeline(opts ...rag.PipelineOption) (*rag.Pipeline, error) {
	store, err := buildStore()
	if err != nil {
		return nil, err
	}
	arc, err := buildArchive()
	if err != nil {
		return nil, err
	}
	ch, err := chunker.New(
		chunker.WithSize(viper.GetInt("chunk.size")),
		chunker.WithOverlap(viper.GetInt("chunk.overlap")),
	)
	if err != nil {
		return nil, err
	}
	embedder := buildEmbedder(buildOllamaClient())
	return rag.NewPipeline(pdf.NewExtractor(), ch, embedder, store, arc, opts...), nil
}

func buildSearchService() (*rag.SearchService, error) {
	store, err := buildStore()
	if err != nil {
		return nil, err
	}
	return rag.NewSearchService(store, buildEmbedder(buildOllamaClient())), nil
}

// openPostgres connects to the job ledger database. The returned func
// closes the underlying *sql.DB.
func openPostgres() (*gorm.DB, func(), error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		viper.GetString("postgres.host"),
		viper.GetString("postgres.user"),
		viper.GetString("postgres.password"),
		viper.GetString("postgres.db"),
		viper.GetString("postgres.port"),
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}
	return db, func() { sqlDB.Close() }, nil
}

func watermillLogger() watermill.LoggerAdapter {
	return watermill.NewStdLogger(verbose, false)
}

// pullProgressBar renders model pull progress. Ollama streams one status
// line per layer; the bar is created lazily on the first update that
// carries a byte total, so pulls of already cached models stay silent.
func pullProgressBar() ollama.LLMOption {
	var bar *progressbar.ProgressBar
	return ollama.WithPullProgress(func(p ollama.PullProgress) error {
		if p.Total <= 0 {
			return nil
		}
		if bar == nil {
			bar = progressbar.DefaultBytes(p.Total, "pulling model")
		}
		bar.ChangeMax64(p.Total)
		return bar.Set64(p.Completed)
	})
}
