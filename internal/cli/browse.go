package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ppiankov/redreader/internal/config"
	"github.com/ppiankov/redreader/internal/feed"
	"github.com/ppiankov/redreader/internal/render"
	"github.com/ppiankov/redreader/internal/source"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	browseSort    string
	browseTime    string
	browsePages   int
	browseFormat  string
	browseRetries int
	browseSave    []string
	noColor       bool
)

// retryInitialInterval is the first wait between page retries.
var retryInitialInterval = 500 * time.Millisecond

var browseCmd = &cobra.Command{
	Use:   "browse <subreddit>",
	Short: "List image and video posts from a subreddit",
	Args:  cobra.ExactArgs(1),
	RunE:  browseAction,
}

func init() {
	browseCmd.Flags().StringVar(&browseSort, "sort", "", "listing order: hot, new, top, controversial, best (default from config)")
	browseCmd.Flags().StringVarP(&browseTime, "time", "t", "", "time range for top and controversial: hour, day, week, month, year, all")
	browseCmd.Flags().IntVar(&browsePages, "pages", 1, "number of pages to load")
	browseCmd.Flags().StringVar(&browseFormat, "format", "terminal", "output format: terminal, json, markdown")
	browseCmd.Flags().IntVar(&browseRetries, "retries", 2, "retries per page on fetch failure")
	browseCmd.Flags().StringSliceVar(&browseSave, "save", nil, "save listed items by id (repeatable)")
	browseCmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.AddCommand(browseCmd)
}

func browseAction(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sel, err := parseSelection(cfg, args[0])
	if err != nil {
		return err
	}
	if browsePages < 1 {
		return fmt.Errorf("--pages must be at least 1")
	}
	if browseRetries < 0 {
		return fmt.Errorf("--retries must not be negative")
	}
	formatter, err := render.New(browseFormat, !noColor && browseFormat == "terminal")
	if err != nil {
		return err
	}

	session, err := feed.NewSession(newFetcher(cfg.Feed.BaseURL, cfg), sel, feed.WithPageSize(cfg.Feed.PageSize))
	if err != nil {
		return err
	}

	skipped := 0
	for i := 0; i < browsePages && !session.Exhausted(); i++ {
		res, err := loadPageWithRetry(ctx, session)
		if err != nil {
			return err
		}
		skipped += res.Skipped
	}

	in := render.Input{
		Title:     sel.String(),
		Items:     session.Items(),
		Next:      session.Cursor(),
		Exhausted: session.Exhausted(),
		Skipped:   skipped,
	}

	sv, err := openSaved(ctx, cfg)
	if err != nil {
		if len(browseSave) > 0 {
			return err
		}
		log.WithError(err).Warn("saved items unavailable")
	} else {
		defer func() { _ = sv.Close() }()
		if err := saveListed(ctx, sv, in.Items, browseSave); err != nil {
			return err
		}
		in.Saved = sv.IsSaved
	}

	return formatter.Format(os.Stdout, in)
}

func parseSelection(cfg *config.Config, subreddit string) (feed.Selection, error) {
	name := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(subreddit), "/"), "r/")
	if name == "" || strings.ContainsAny(name, "/?# ") {
		return feed.Selection{}, fmt.Errorf("invalid subreddit %q", subreddit)
	}

	sortName := browseSort
	if sortName == "" {
		sortName = cfg.Feed.DefaultSort
	}
	sort, err := source.ParseSort(sortName)
	if err != nil {
		return feed.Selection{}, fmt.Errorf("--sort: %w", err)
	}

	timeName := browseTime
	if timeName == "" {
		timeName = cfg.Feed.DefaultTime
	}
	tr, err := source.ParseTimeRange(timeName)
	if err != nil {
		return feed.Selection{}, fmt.Errorf("--time: %w", err)
	}
	return feed.Selection{Collection: name, Sort: sort, TimeRange: tr}, nil
}

// loadPageWithRetry retries a failed page with exponential backoff. The
// session keeps its cursor on failure, so each retry asks for the same page.
func loadPageWithRetry(ctx context.Context, session *feed.Session) (feed.PageResult, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = retryInitialInterval
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(browseRetries)), ctx)

	var res feed.PageResult
	op := func() error {
		r, err := session.LoadNextPage(ctx)
		if err != nil {
			if !errors.Is(err, feed.ErrFetchFailed) {
				return backoff.Permanent(err)
			}
			return err
		}
		res = r
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.WithError(err).Warnf("page fetch failed, retrying in %s", wait.Round(time.Millisecond))
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return feed.PageResult{}, err
	}
	return res, nil
}

func saveListed(ctx context.Context, sv *savedSession, items []source.Item, ids []string) error {
	for _, id := range ids {
		id = strings.TrimSpace(id)
		var found *source.Item
		for i := range items {
			if items[i].ID == id {
				found = &items[i]
				break
			}
		}
		if found == nil {
			return fmt.Errorf("--save: %s is not in the loaded listing", id)
		}
		if err := sv.Save(ctx, *found); err != nil {
			return fmt.Errorf("save %s: %w", id, err)
		}
		fmt.Fprintf(os.Stderr, "Saved %s (%s)\n", id, sv.Identity())
	}
	return nil
}
