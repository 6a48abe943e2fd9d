package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ToffenYT/varsly/internal/config"
	"github.com/ToffenYT/varsly/internal/logger"
)

var Version = "dev"

// cli state shared by subcommands after the root pre-run
type cli struct {
	cfg *config.Config
}

// @title Varsly API
// @version 1.0.0
// @description Tender alert ingestion, delivery and unsubscribe API
// @BasePath /v1
// @securityDefinitions.apikey InternalAPIKey
// @in header
// @name X-API-Key
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "varsly",
		Short:         "varsly - tender ingestion, keyword matching and alert delivery",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := logger.Init(cfg.LogLevel); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			c.cfg = cfg
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}

	root.AddCommand(c.serveCmd())
	root.AddCommand(c.ingestCmd())
	root.AddCommand(c.digestCmd())
	root.AddCommand(c.tokenCmd())
	return root
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
