package source

import (
	"context"
	"fmt"
)

// Kind classifies how an item is displayed.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindEmbed Kind = "embed" // third-party embedded player (iframe)
)

// DefaultAspectRatio is used when an item carries no usable dimensions.
const DefaultAspectRatio = 16.0 / 9.0

// Item is a normalized, displayable post.
type Item struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	SourceURL    string `json:"url"`
	Permalink    string `json:"permalink"`
	ThumbnailURL string `json:"thumbnail,omitempty"`
	Kind         Kind   `json:"kind"`
	VideoURL     string `json:"videoUrl,omitempty"`
	EmbedURL     string `json:"iframeUrl,omitempty"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
}

// AspectRatio returns width/height, or DefaultAspectRatio when either is missing.
func (it Item) AspectRatio() float64 {
	if it.Width <= 0 || it.Height <= 0 {
		return DefaultAspectRatio
	}
	return float64(it.Width) / float64(it.Height)
}

// Playable reports whether the item has something to play. A video item
// without a resolved URL falls back to its thumbnail.
func (it Item) Playable() bool {
	switch it.Kind {
	case KindVideo:
		return it.VideoURL != ""
	case KindEmbed:
		return it.EmbedURL != ""
	default:
		return false
	}
}

// Sort is a listing order accepted by the upstream feed.
type Sort string

const (
	SortHot           Sort = "hot"
	SortNew           Sort = "new"
	SortTop           Sort = "top"
	SortControversial Sort = "controversial"
	SortBest          Sort = "best"
)

// TimeRange narrows top and controversial listings.
type TimeRange string

const (
	TimeNone  TimeRange = ""
	TimeHour  TimeRange = "hour"
	TimeDay   TimeRange = "day"
	TimeWeek  TimeRange = "week"
	TimeMonth TimeRange = "month"
	TimeYear  TimeRange = "year"
	TimeAll   TimeRange = "all"
)

// ParseSort validates a sort name. Empty means hot.
func ParseSort(s string) (Sort, error) {
	switch Sort(s) {
	case "":
		return SortHot, nil
	case SortHot, SortNew, SortTop, SortControversial, SortBest:
		return Sort(s), nil
	}
	return "", fmt.Errorf("unknown sort %q (want hot, new, top, controversial or best)", s)
}

// ParseTimeRange validates a time range name. Empty means none.
func ParseTimeRange(s string) (TimeRange, error) {
	switch TimeRange(s) {
	case TimeNone, TimeHour, TimeDay, TimeWeek, TimeMonth, TimeYear, TimeAll:
		return TimeRange(s), nil
	}
	return "", fmt.Errorf("unknown time range %q (want hour, day, week, month, year or all)", s)
}

// UsesTimeRange reports whether the sort honors a time range.
func (s Sort) UsesTimeRange() bool {
	return s == SortTop || s == SortControversial
}

// Query selects one page of a listing.
type Query struct {
	Collection string    // subreddit name
	Sort       Sort      // listing order
	TimeRange  TimeRange // only sent for top and controversial
	Cursor     string    // opaque continuation token, empty for the first page
	Limit      int       // page size, 0 means upstream default
}

// Page is one raw listing page.
type Page struct {
	Entries []Entry
	Next    string // empty when there are no further pages
}

// Fetcher retrieves raw listing pages.
type Fetcher interface {
	FetchPage(ctx context.Context, q Query) (Page, error)
}
