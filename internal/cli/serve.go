package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ppiankov/redreader/internal/api"
	"github.com/ppiankov/redreader/internal/source"
	"github.com/ppiankov/redreader/internal/store"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	serveAddr   string
	serveNoFeed bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the saved-collection server",
	Args:  cobra.NoArgs,
	RunE:  serveAction,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveNoFeed, "no-feed", false, "do not mount the listing proxy")
	rootCmd.AddCommand(serveCmd)
}

func serveAction(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Server.JWTSecret == "" {
		return fmt.Errorf("%s is not set", cfg.Server.JWTSecretEnv)
	}
	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	db, err := store.Open(cfg.Server.Path)
	if err != nil {
		return fmt.Errorf("open server db: %w", err)
	}
	defer func() { _ = db.Close() }()

	var fetcher source.Fetcher
	if !serveNoFeed {
		fetcher = newFetcher(cfg.Server.Upstream, cfg)
	}

	srv, err := api.New(db, fetcher, api.Options{
		JWTSecret:    []byte(cfg.Server.JWTSecret),
		EnableDelete: cfg.Server.EnableDelete,
		PageSize:     cfg.Feed.PageSize,
		Logger:       log.WithField("component", "api"),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"addr":   addr,
		"db":     cfg.Server.Path,
		"delete": cfg.Server.EnableDelete,
		"feed":   fetcher != nil,
	}).Info("serving saved collection")

	return srv.ListenAndServe(ctx, addr)
}
