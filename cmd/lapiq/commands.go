package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lapiq/lapiq/internal/answer"
	"github.com/lapiq/lapiq/internal/catalog"
	"github.com/lapiq/lapiq/internal/composer"
	"github.com/lapiq/lapiq/internal/config"
	"github.com/lapiq/lapiq/internal/embedding"
	"github.com/lapiq/lapiq/internal/fusion"
	"github.com/lapiq/lapiq/internal/ollama"
	"github.com/lapiq/lapiq/internal/storage"
	"github.com/lapiq/lapiq/internal/vectorindex"
)

func loadSetup() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	setupLogging(cfg.Log.Level)
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newProvider(cfg config.Config) (embedding.Provider, error) {
	switch cfg.Embedder.Type {
	case "ollama":
		return embedding.NewOllamaProvider(ollama.New(cfg.Embedder.BaseURL), cfg.Embedder.Model, cfg.Embedder.Dimension), nil
	case "openai":
		key := cfg.APIKey()
		if key == "" {
			return nil, fmt.Errorf("embedder type openai requires %s to be set", cfg.Embedder.APIKeyEnv)
		}
		return embedding.NewOpenAIProvider(key, cfg.Embedder.Model, cfg.Embedder.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedder type %q", cfg.Embedder.Type)
	}
}

func newGenerator(cfg config.Config) (answer.Generator, error) {
	switch cfg.Generator.Type {
	case "ollama":
		return answer.NewOllamaGenerator(ollama.New(cfg.Embedder.BaseURL), cfg.Generator.Model), nil
	case "openai":
		key := cfg.APIKey()
		if key == "" {
			return nil, fmt.Errorf("generator type openai requires %s to be set", cfg.Embedder.APIKeyEnv)
		}
		return answer.NewOpenAIGenerator(key, cfg.Generator.Model), nil
	default:
		return nil, fmt.Errorf("unknown generator type %q", cfg.Generator.Type)
	}
}

// --- build ---

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the vector index from the chunk catalog",
	Long: `Build embeds every specification chunk and writes the index artifact.

The artifact records the embedding model and dimensionality it was built
with; ask refuses to run against an index built with a different model.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSetup()
		if err != nil {
			return err
		}
		chunksPath, _ := cmd.Flags().GetString("chunks")
		if chunksPath == "" {
			chunksPath = cfg.Storage.ChunkSource
		}

		ctx, stop := signalContext()
		defer stop()

		records, err := catalog.Load(chunksPath)
		if err != nil {
			return fmt.Errorf("loading chunk catalog: %w", err)
		}
		chunks := catalog.Flatten(records)

		provider, err := newProvider(cfg)
		if err != nil {
			return err
		}

		start := time.Now()
		idx, err := vectorindex.Build(ctx, provider, chunks)
		if err != nil {
			return fmt.Errorf("building index: %w", err)
		}
		if err := idx.Save(cfg.Storage.IndexPath); err != nil {
			return fmt.Errorf("saving index: %w", err)
		}

		fmt.Printf("Indexed %d chunks with %s (%dd) in %s\n",
			idx.Len(), provider.ModelName(), provider.Dimension(), time.Since(start).Round(time.Millisecond))
		fmt.Printf("Index written to %s\n", cfg.Storage.IndexPath)
		return nil
	},
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSetup()
		if err != nil {
			return err
		}
		k, _ := cmd.Flags().GetInt("k")
		showPrompt, _ := cmd.Flags().GetBool("show-prompt")

		ctx, stop := signalContext()
		defer stop()

		provider, err := newProvider(cfg)
		if err != nil {
			return err
		}

		idx, err := vectorindex.Load(cfg.Storage.IndexPath)
		if err != nil {
			return fmt.Errorf("loading index (run `lapiq build` first): %w", err)
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening attribute store: %w", err)
		}
		defer store.Close()

		engine, err := fusion.NewEngine(provider, idx, store, cfg.Retrieval.TopK)
		if err != nil {
			return fmt.Errorf("index does not match the configured embedder: %w", err)
		}

		generator, err := newGenerator(cfg)
		if err != nil {
			return err
		}

		svc := answer.NewService(engine, composer.New(cfg.Retrieval.MaxContextTokens), generator, store)
		ans, err := svc.Ask(ctx, args[0], k, nil)
		if err != nil {
			return err
		}

		if showPrompt {
			fmt.Println("--- prompt ---")
			fmt.Println(ans.Prompt)
			fmt.Println("--- answer ---")
		}
		fmt.Println(ans.Text)

		if len(ans.Context.Chunks) > 0 {
			fmt.Println("\nSources:")
			for _, ch := range ans.Context.Chunks {
				fmt.Printf("  %s / %s", ch.ProductID, ch.SectionLabel)
				for _, cite := range ch.Citations {
					fmt.Printf(" [cite: %d]", cite)
				}
				fmt.Println()
			}
		}

		if !ans.Context.DynamicDataAvailable {
			fmt.Fprintln(os.Stderr, "note: live product data was unavailable for this answer")
		}
		if ans.Truncated {
			fmt.Fprintln(os.Stderr, "note: some retrieved excerpts were dropped to fit the context budget")
		}
		return nil
	},
}

// --- products ---

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "List catalog products from the attribute store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSetup()
		if err != nil {
			return err
		}
		brand, _ := cmd.Flags().GetString("brand")
		minRating, _ := cmd.Flags().GetFloat64("min-rating")
		availability, _ := cmd.Flags().GetString("availability")

		ctx, stop := signalContext()
		defer stop()

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening attribute store: %w", err)
		}
		defer store.Close()

		products, err := store.ListProducts(ctx, storage.ProductFilter{
			Brand:        brand,
			MinRating:    minRating,
			Availability: availability,
		})
		if err != nil {
			return err
		}

		if len(products) == 0 {
			fmt.Println("No products match.")
			return nil
		}
		for _, p := range products {
			fmt.Printf("%-24s %-10s %-28s %.1f/5.0 (%d)  %s\n",
				p.SKU, p.Brand, p.ModelName, p.AverageRating, p.ReviewCount, p.Availability)
		}
		return nil
	},
}

// --- product ---

var productCmd = &cobra.Command{
	Use:   "product <sku>",
	Short: "Show one product's live data as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSetup()
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening attribute store: %w", err)
		}
		defer store.Close()

		block, err := store.Attributes(ctx, args[0], 0)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(block)
	},
}

// --- seed ---

// seedFile is the ingestion format: one JSON document with optional arrays
// per table. History dates are plain "2006-01-02" strings.
type seedFile struct {
	Products []struct {
		SKU           string  `json:"sku"`
		Brand         string  `json:"brand"`
		ModelName     string  `json:"model_name"`
		Currency      string  `json:"currency"`
		Availability  string  `json:"availability"`
		ShippingETA   string  `json:"shipping_eta"`
		ReviewCount   int     `json:"review_count"`
		AverageRating float64 `json:"average_rating"`
	} `json:"products"`
	Prices []struct {
		SKU        string  `json:"sku"`
		Price      float64 `json:"price"`
		RecordedOn string  `json:"recorded_on"`
		Vendor     string  `json:"vendor"`
		Promo      string  `json:"promo"`
	} `json:"prices"`
	Reviews []struct {
		SKU        string `json:"sku"`
		Rating     int    `json:"rating"`
		Body       string `json:"body"`
		RecordedOn string `json:"recorded_on"`
		Source     string `json:"source"`
	} `json:"reviews"`
	Questions []struct {
		SKU        string `json:"sku"`
		Question   string `json:"question"`
		Answer     string `json:"answer"`
		RecordedOn string `json:"recorded_on"`
		Source     string `json:"source"`
	} `json:"questions"`
}

func parseSeedDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load product data into the attribute store",
	Long: `Seed upserts product snapshots and appends history records from a JSON file.

Example:
  lapiq seed --file ./fixtures/products.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSetup()
		if err != nil {
			return err
		}
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			return fmt.Errorf("--file is required")
		}

		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading seed file: %w", err)
		}
		var seed seedFile
		if err := json.Unmarshal(data, &seed); err != nil {
			return fmt.Errorf("parsing seed file: %w", err)
		}

		ctx, stop := signalContext()
		defer stop()

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening attribute store: %w", err)
		}
		defer store.Close()

		for _, p := range seed.Products {
			err := store.UpsertProduct(ctx, storage.Product{
				SKU:           p.SKU,
				Brand:         p.Brand,
				ModelName:     p.ModelName,
				Currency:      p.Currency,
				Availability:  p.Availability,
				ShippingETA:   p.ShippingETA,
				ReviewCount:   p.ReviewCount,
				AverageRating: p.AverageRating,
			})
			if err != nil {
				return fmt.Errorf("upserting product %s: %w", p.SKU, err)
			}
		}
		for _, pp := range seed.Prices {
			on, err := parseSeedDate(pp.RecordedOn)
			if err != nil {
				return fmt.Errorf("price point for %s: %w", pp.SKU, err)
			}
			err = store.AddPricePoint(ctx, storage.PricePoint{
				SKU: pp.SKU, Price: pp.Price, RecordedOn: on, Vendor: pp.Vendor, Promo: pp.Promo,
			})
			if err != nil {
				return fmt.Errorf("adding price point for %s: %w", pp.SKU, err)
			}
		}
		for _, r := range seed.Reviews {
			on, err := parseSeedDate(r.RecordedOn)
			if err != nil {
				return fmt.Errorf("review for %s: %w", r.SKU, err)
			}
			err = store.AddReview(ctx, storage.Review{
				SKU: r.SKU, Rating: r.Rating, Body: r.Body, RecordedOn: on, Source: r.Source,
			})
			if err != nil {
				return fmt.Errorf("adding review for %s: %w", r.SKU, err)
			}
		}
		for _, q := range seed.Questions {
			on, err := parseSeedDate(q.RecordedOn)
			if err != nil {
				return fmt.Errorf("question for %s: %w", q.SKU, err)
			}
			err = store.AddQuestion(ctx, storage.Question{
				SKU: q.SKU, Question: q.Question, Answer: q.Answer, RecordedOn: on, Source: q.Source,
			})
			if err != nil {
				return fmt.Errorf("adding question for %s: %w", q.SKU, err)
			}
		}

		fmt.Printf("Seeded %d products, %d prices, %d reviews, %d questions\n",
			len(seed.Products), len(seed.Prices), len(seed.Reviews), len(seed.Questions))
		return nil
	},
}

func init() {
	buildCmd.Flags().String("chunks", "", "path to the chunk catalog JSON (defaults to config)")
	askCmd.Flags().Int("k", 0, "number of chunks to retrieve (defaults to config)")
	askCmd.Flags().Bool("show-prompt", false, "print the assembled prompt before the answer")
	productsCmd.Flags().String("brand", "", "filter by brand (case-insensitive)")
	productsCmd.Flags().Float64("min-rating", 0, "minimum average rating")
	productsCmd.Flags().String("availability", "", "filter by availability status")
	seedCmd.Flags().String("file", "", "JSON seed file")
}
