package rssapp

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

const maxFeedBytes = 10 << 20

// Fetcher reads RSS 2.0 (and Atom) documents such as the ones rss.app
// publishes for social profiles.
type Fetcher struct {
	userAgent string
}

func NewFetcher(userAgent string) *Fetcher {
	if userAgent == "" {
		userAgent = "az-engage/1.0 (+feed monitor)"
	}
	return &Fetcher{userAgent: userAgent}
}

func (f *Fetcher) FetchFeed(ctx context.Context, feedRef string) ([]domain.Post, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedRef, nil)
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.Permanent, FeedRef: feedRef, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.5")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &domain.FetchError{Kind: transportKind(err), FeedRef: feedRef, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		kind := domain.Permanent
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusRequestTimeout {
			kind = domain.Transient
		}
		return nil, &domain.FetchError{Kind: kind, FeedRef: feedRef, Err: fmt.Errorf("http %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.Transient, FeedRef: feedRef, Err: err}
	}

	posts, err := Parse(body)
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.Permanent, FeedRef: feedRef, Err: err}
	}

	logrus.WithFields(logrus.Fields{"feed": feedRef, "posts": len(posts)}).Debug("[RSS] Feed fetched")
	return posts, nil
}

// transportKind classifies a failed round trip. Cancellation and hosts that
// do not resolve are permanent, everything else is worth retrying.
func transportKind(err error) domain.ErrorKind {
	if errors.Is(err, context.Canceled) {
		return domain.Permanent
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound && !dnsErr.IsTimeout {
		return domain.Permanent
	}
	return domain.Transient
}

type rssDocument struct {
	XMLName xml.Name
	Channel struct {
		Items []rssItem `xml:"item"`
	}       `xml:"channel"`
	Entries []atomEntry `xml:"entry"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	PubDate     string `xml:"pubDate"`
	Description string `xml:"description"`
}

type atomEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Published string `xml:"published"`
	Updated   string `xml:"updated"`
	Summary   string `xml:"summary"`
	Links     []struct {
		Href string `xml:"href,attr"`
		Rel  string `xml:"rel,attr"`
	} `xml:"link"`
}

// Parse decodes an RSS or Atom document into posts, preserving document
// order. Items without any usable identifier are skipped.
func Parse(body []byte) ([]domain.Post, error) {
	var doc rssDocument
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Strict = false
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	switch strings.ToLower(doc.XMLName.Local) {
	case "rss", "rdf":
	case "feed":
		return parseAtom(doc.Entries), nil
	default:
		return nil, fmt.Errorf("parse feed: unexpected root element %q", doc.XMLName.Local)
	}

	posts := make([]domain.Post, 0, len(doc.Channel.Items))
	for _, item := range doc.Channel.Items {
		id := strings.TrimSpace(item.GUID)
		link := strings.TrimSpace(item.Link)
		if id == "" {
			id = link
		}
		if id == "" {
			continue
		}
		posts = append(posts, domain.Post{
			ID:          id,
			URL:         link,
			Title:       strings.TrimSpace(item.Title),
			Description: PlainText(item.Description),
			PublishedAt: ParseDate(item.PubDate),
		})
	}
	return posts, nil
}

func parseAtom(entries []atomEntry) []domain.Post {
	posts := make([]domain.Post, 0, len(entries))
	for _, e := range entries {
		link := ""
		for _, l := range e.Links {
			if l.Rel == "" || l.Rel == "alternate" {
				link = strings.TrimSpace(l.Href)
				break
			}
		}
		id := strings.TrimSpace(e.ID)
		if id == "" {
			id = link
		}
		if id == "" {
			continue
		}
		published := ParseDate(e.Published)
		if published == nil {
			published = ParseDate(e.Updated)
		}
		posts = append(posts, domain.Post{
			ID:          id,
			URL:         link,
			Title:       strings.TrimSpace(e.Title),
			Description: PlainText(e.Summary),
			PublishedAt: published,
		})
	}
	return posts
}

var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 02 Jan 2006 15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// ParseDate returns nil for empty or unparseable dates.
func ParseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}

// PlainText strips the HTML rss.app embeds in descriptions (images, links)
// and collapses whitespace.
func PlainText(html string) string {
	html = strings.TrimSpace(html)
	if html == "" {
		return ""
	}
	if !strings.Contains(html, "<") {
		return strings.Join(strings.Fields(html), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.Join(strings.Fields(html), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
