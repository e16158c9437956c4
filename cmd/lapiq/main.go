package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:     "lapiq",
	Short:   "Catalog Q&A over indexed laptop specifications and live product data",
	Version: version,
	Long: `lapiq answers natural-language questions about a laptop catalog.

Specification text is embedded into a local vector index at build time;
prices, stock, ratings, reviews, and Q&A live in a SQLite store and are
joined in at query time.`,
}

func main() {
	// Optional; env vars may come from the shell instead.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")
	rootCmd.AddCommand(buildCmd, askCmd, productsCmd, productCmd, seedCmd)
}

func setupLogging(level string) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}
