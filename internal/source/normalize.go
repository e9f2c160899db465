package source

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/lo"
)

const (
	hintImage       = "image"
	hintHostedVideo = "hosted:video"
	hintRichVideo   = "rich:video"

	embedURLFormat = "https://redgifs.com/ifr/%s?sound=true&loop=true"
)

var (
	embedWatchRe = regexp.MustCompile(`redgifs\.com/watch/([A-Za-z0-9]+)`)
	imageSuffix  = []string{".jpg", ".png", ".gif"}
)

// Normalize maps a raw entry to a displayable item. The second result is false
// when the entry is not image or video content and should be dropped.
func Normalize(e Entry) (Item, bool) {
	token := embedToken(e.URL)
	isImage := e.PostHint == hintImage || hasImageSuffix(e.URL)
	isVideo := e.IsVideo || e.PostHint == hintHostedVideo || e.PostHint == hintRichVideo

	if !isImage && !isVideo && token == "" {
		return Item{}, false
	}

	item := Item{
		ID:        e.ID,
		Title:     e.Title,
		SourceURL: unescapeAmp(e.URL),
		Permalink: e.Permalink,
		Kind:      KindImage,
	}

	if e.Preview != nil && len(e.Preview.Images) > 0 {
		src := e.Preview.Images[0].Source
		item.ThumbnailURL = unescapeAmp(src.URL)
		item.Width = src.Width
		item.Height = src.Height
	}

	switch {
	case token != "":
		item.Kind = KindEmbed
		item.EmbedURL = fmt.Sprintf(embedURLFormat, token)
	case isVideo:
		item.Kind = KindVideo
		item.VideoURL = resolveVideoURL(e)
	}

	return item, true
}

// NormalizePage normalizes entries in order and reports how many were dropped.
func NormalizePage(entries []Entry) ([]Item, int) {
	items := lo.FilterMap(entries, func(e Entry, _ int) (Item, bool) {
		return Normalize(e)
	})
	return items, len(entries) - len(items)
}

// resolveVideoURL prefers HLS over the progressive fallback, and hosted media
// over the preview rendition.
func resolveVideoURL(e Entry) string {
	var candidates []string
	if e.Media != nil && e.Media.RedditVideo != nil {
		candidates = append(candidates, e.Media.RedditVideo.HLSURL, e.Media.RedditVideo.FallbackURL)
	}
	if e.Preview != nil && e.Preview.RedditVideoPreview != nil {
		candidates = append(candidates, e.Preview.RedditVideoPreview.HLSURL, e.Preview.RedditVideoPreview.FallbackURL)
	}
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}

func embedToken(rawURL string) string {
	m := embedWatchRe.FindStringSubmatch(rawURL)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

func hasImageSuffix(rawURL string) bool {
	for _, suffix := range imageSuffix {
		if strings.HasSuffix(rawURL, suffix) {
			return true
		}
	}
	return false
}

// unescapeAmp undoes the only entity the listing API emits inside URLs.
func unescapeAmp(s string) string {
	return strings.ReplaceAll(s, "&amp;", "&")
}
