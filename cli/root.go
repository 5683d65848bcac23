// Package cli implements the engram CLI commands.
package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/engramlabs/engram-go/engine"
	"github.com/engramlabs/engram-go/insight"
	"github.com/engramlabs/engram-go/memory"
	"github.com/engramlabs/engram-go/memory/embedder"
	"github.com/engramlabs/engram-go/memory/embedder/mock"
	"github.com/engramlabs/engram-go/memory/embedder/openai"
	idxchromem "github.com/engramlabs/engram-go/memory/index/chromem"
	"github.com/engramlabs/engram-go/memory/store/sqlite"
)

var dbPath string

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "engram",
	Short: "Semantic memory for conversational hosts",
	Long: "engram extracts durable insights from text, embeds them, and makes them\n" +
		"searchable and clusterable. SQLite-backed, single binary.",
}

func init() {
	// Best effort: a missing .env is fine.
	godotenv.Load()

	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $ENGRAM_DB or ~/.engram/memory.db)")
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("ENGRAM_DB"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".engram", "memory.db")
}

// openManager assembles the full pipeline from the environment:
// OPENAI_API_KEY selects the OpenAI embedder (cached), otherwise the
// deterministic mock is used; ANTHROPIC_API_KEY enables extraction.
func openManager() (*engine.Manager, error) {
	path := getDBPath()
	if dir := filepath.Dir(path); dir != "." {
		os.MkdirAll(dir, 0o755)
	}

	store, err := sqlite.New(path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var emb memory.Embedder
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		oa, err := openai.New(openai.Config{APIKey: key})
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("embedder: %w", err)
		}
		cached, err := embedder.NewCached(oa, 0)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("embedder cache: %w", err)
		}
		emb = cached
	} else {
		log.Printf("[CLI] OPENAI_API_KEY not set, using deterministic mock embedder")
		emb = mock.New()
	}

	opts := []engine.Option{}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		ext, err := insight.New(insight.Config{APIKey: key})
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("extractor: %w", err)
		}
		opts = append(opts, engine.WithExtractor(ext))
	}

	idx, err := idxchromem.New()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("index: %w", err)
	}
	opts = append(opts, engine.WithIndex(idx))

	mgr := engine.NewManager(store, emb, engine.DefaultConfig(), opts...)
	if err := mgr.RebuildIndex(context.Background()); err != nil {
		log.Printf("[CLI] Index rebuild failed, searches fall back to full scan: %v", err)
	}
	return mgr, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
