package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/redreader/internal/config"
	"github.com/ppiankov/redreader/internal/store"
	"github.com/spf13/cobra"
)

const doctorTimeout = 5 * time.Second

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, storage and the saved-collection server",
	RunE:  doctorAction,
}

func doctorAction(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	ok := true

	// Config dir
	if info, err := os.Stat(configDir); err != nil || !info.IsDir() {
		printCheck(false, "config directory %s", configDir)
		ok = false
	} else {
		printCheck(true, "config directory %s", configDir)
	}

	// Config file
	cfg, err := config.Load(configDir)
	if err != nil {
		printCheck(false, "config.yaml: %v", err)
		return fmt.Errorf("some checks failed")
	}
	printCheck(true, "config.yaml (feed %s, sort %s, page size %d)", cfg.Feed.BaseURL, cfg.Feed.DefaultSort, cfg.Feed.PageSize)

	// Local database
	if db, err := store.Open(cfg.Saved.Path); err != nil {
		printCheck(false, "saved database: %v", err)
		ok = false
	} else {
		if err := db.Ping(ctx); err != nil {
			printCheck(false, "saved database %s: %v", cfg.Saved.Path, err)
			ok = false
		} else {
			printCheck(true, "saved database %s", cfg.Saved.Path)
		}
		_ = db.Close()
	}

	// Identity and remote collection
	id := identityFromConfig(cfg)
	printInfo("identity: %s", id)
	if cfg.Saved.RemoteURL != "" {
		if err := checkRemote(ctx, cfg.Saved.RemoteURL); err != nil {
			printCheck(false, "saved server %s: %v", cfg.Saved.RemoteURL, err)
			ok = false
		} else {
			printCheck(true, "saved server %s", cfg.Saved.RemoteURL)
		}
		if !cfg.Saved.RemoteDelete {
			printInfo("remote delete disabled: removals while signed in last until the next reload")
		}
	}

	// Saved items for the current identity
	if ok {
		if sv, err := openSaved(ctx, cfg); err != nil {
			printCheck(false, "saved items: %v", err)
			ok = false
		} else {
			printCheck(true, "saved items (%d, %s)", sv.Len(), sv.Identity())
			_ = sv.Close()
		}
	}

	if cfg.Server.JWTSecret == "" {
		printInfo("%s not set: serve will refuse to start", cfg.Server.JWTSecretEnv)
	}

	if !ok {
		return fmt.Errorf("some checks failed")
	}
	fmt.Println("\nAll checks passed.")
	return nil
}

func checkRemote(ctx context.Context, baseURL string) error {
	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthz status %d", resp.StatusCode)
	}
	return nil
}

func printCheck(pass bool, format string, args ...any) {
	mark := "FAIL"
	if pass {
		mark = " OK "
	}
	fmt.Printf("[%s] %s\n", mark, fmt.Sprintf(format, args...))
}

func printInfo(format string, args ...any) {
	fmt.Printf("[INFO] %s\n", fmt.Sprintf(format, args...))
}
