package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/redreader/internal/render"
	"github.com/ppiankov/redreader/internal/saved"
	"github.com/ppiankov/redreader/internal/source"
	"github.com/spf13/cobra"
)

var (
	savedFormat  string
	importDryRun bool
)

var savedCmd = &cobra.Command{
	Use:   "saved",
	Short: "Manage saved items",
}

var savedListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved items for the current identity",
	Args:  cobra.NoArgs,
	RunE:  savedListAction,
}

var savedRemoveCmd = &cobra.Command{
	Use:   "remove <id>...",
	Short: "Remove saved items by id",
	Args:  cobra.MinimumNArgs(1),
	RunE:  savedRemoveAction,
}

var savedImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Import saved items from a JSON export",
	Args:  cobra.ExactArgs(1),
	RunE:  savedImportAction,
}

func init() {
	savedListCmd.Flags().StringVar(&savedFormat, "format", "terminal", "output format: terminal, json, markdown")
	savedListCmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	savedImportCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "show what would be saved without saving")
	savedCmd.AddCommand(savedListCmd, savedRemoveCmd, savedImportCmd)
	rootCmd.AddCommand(savedCmd)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func savedListAction(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	formatter, err := render.New(savedFormat, !noColor && savedFormat == "terminal")
	if err != nil {
		return err
	}

	sv, err := openSaved(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = sv.Close() }()

	return formatter.Format(os.Stdout, render.Input{
		Title:     fmt.Sprintf("saved (%s)", sv.Identity()),
		Items:     sv.List(),
		Saved:     sv.IsSaved,
		Exhausted: true,
	})
}

func savedRemoveAction(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sv, err := openSaved(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = sv.Close() }()

	var failed int
	for _, id := range args {
		if !sv.IsSaved(id) {
			fmt.Printf("  not saved: %s\n", id)
			continue
		}
		err := sv.Remove(ctx, id)
		switch {
		case errors.Is(err, saved.ErrRemoteDeleteUnavailable):
			fmt.Printf("  kept: %s (remote delete unavailable)\n", id)
			failed++
		case err != nil:
			fmt.Printf("  failed: %s: %v\n", id, err)
			failed++
		default:
			fmt.Printf("  removed: %s\n", id)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d removals failed", failed, len(args))
	}
	return nil
}

func savedImportAction(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}
	items, err := parseImport(data)
	if err != nil {
		return fmt.Errorf("parse import file: %w", err)
	}
	if len(items) == 0 {
		fmt.Println("No items found in import file.")
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sv, err := openSaved(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = sv.Close() }()

	var fresh []source.Item
	skipped := 0
	for _, it := range items {
		if sv.IsSaved(it.ID) {
			skipped++
			continue
		}
		fresh = append(fresh, it)
	}

	if len(fresh) == 0 {
		fmt.Printf("All %d items already saved, nothing to import.\n", skipped)
		return nil
	}

	if importDryRun {
		fmt.Printf("Would save %d items (skipping %d already saved):\n", len(fresh), skipped)
		for _, it := range fresh {
			fmt.Printf("  + %s %s\n", it.ID, it.Title)
		}
		return nil
	}

	for _, it := range fresh {
		if err := sv.Save(ctx, it); err != nil {
			return fmt.Errorf("save %s: %w", it.ID, err)
		}
	}
	fmt.Printf("Saved %d items, skipped %d already saved.\n", len(fresh), skipped)
	return nil
}

// parseImport accepts a bare JSON array of items or the document written by
// the json output format. Entries without an id or a known kind are dropped.
func parseImport(data []byte) ([]source.Item, error) {
	data = bytes.TrimSpace(data)
	var items []source.Item
	if bytes.HasPrefix(data, []byte("[")) {
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
	} else {
		var doc struct {
			Items []source.Item `json:"items"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		items = doc.Items
	}

	seen := make(map[string]bool, len(items))
	out := make([]source.Item, 0, len(items))
	for _, it := range items {
		it.ID = strings.TrimSpace(it.ID)
		if it.ID == "" || seen[it.ID] {
			continue
		}
		switch it.Kind {
		case source.KindImage, source.KindVideo, source.KindEmbed:
		default:
			continue
		}
		seen[it.ID] = true
		out = append(out, it)
	}
	return out, nil
}
