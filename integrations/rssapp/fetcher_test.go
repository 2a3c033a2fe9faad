package rssapp

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>brand on Instagram</title>
    <item>
      <title>New drop</title>
      <link>https://www.instagram.com/p/C2/</link>
      <guid>C2</guid>
      <pubDate>Tue, 05 Mar 2026 14:30:00 +0000</pubDate>
      <description><![CDATA[<div><img src="x.jpg"/><p>Out   now!</p></div>]]></description>
    </item>
    <item>
      <title>Old post</title>
      <link>https://www.instagram.com/p/C1/</link>
      <pubDate>Mon, 04 Mar 2026 09:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Undated</title>
      <link>https://www.instagram.com/p/C0/</link>
      <guid>C0</guid>
      <pubDate>sometime</pubDate>
    </item>
  </channel>
</rss>`

func TestParse_RSS(t *testing.T) {
	posts, err := Parse([]byte(sampleRSS))
	require.NoError(t, err)
	require.Len(t, posts, 3)

	assert.Equal(t, "C2", posts[0].ID)
	assert.Equal(t, "https://www.instagram.com/p/C2/", posts[0].URL)
	assert.Equal(t, "Out now!", posts[0].Description)
	require.NotNil(t, posts[0].PublishedAt)
	assert.True(t, posts[0].PublishedAt.Equal(time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC)))

	assert.Equal(t, "https://www.instagram.com/p/C1/", posts[1].ID, "link is the id when guid is missing")
	require.NotNil(t, posts[1].PublishedAt)

	assert.Nil(t, posts[2].PublishedAt)
}

func TestParse_Atom(t *testing.T) {
	atom := `<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>tag:x.com,2026:1</id>
    <title>Hello</title>
    <link rel="alternate" href="https://x.com/brand/status/1"/>
    <updated>2026-03-05T10:00:00Z</updated>
  </entry>
</feed>`

	posts, err := Parse([]byte(atom))
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "https://x.com/brand/status/1", posts[0].URL)
	require.NotNil(t, posts[0].PublishedAt)
}

func TestParse_RejectsNonFeeds(t *testing.T) {
	_, err := Parse([]byte(`<html><body>rate limited</body></html>`))
	assert.Error(t, err)
}

func TestFetchFeed_ClassifiesHTTPErrors(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = w.Write([]byte(sampleRSS))
		}
	}))
	defer srv.Close()

	fetcher := NewFetcher("")

	posts, err := fetcher.FetchFeed(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, posts, 3)

	status = http.StatusServiceUnavailable
	_, err = fetcher.FetchFeed(context.Background(), srv.URL)
	var fetchErr *domain.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, domain.Transient, fetchErr.Kind)

	status = http.StatusNotFound
	_, err = fetcher.FetchFeed(context.Background(), srv.URL)
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, domain.Permanent, fetchErr.Kind)
}

func TestTransportKind(t *testing.T) {
	noHost := &net.DNSError{Err: "no such host", Name: "feeds.invalid", IsNotFound: true}
	assert.Equal(t, domain.Permanent, transportKind(fmt.Errorf("dial: %w", noHost)))
	assert.Equal(t, domain.Permanent, transportKind(context.Canceled))

	slowDNS := &net.DNSError{Err: "i/o timeout", Name: "rss.app", IsTimeout: true}
	assert.Equal(t, domain.Transient, transportKind(slowDNS))
	assert.Equal(t, domain.Transient, transportKind(context.DeadlineExceeded))
	assert.Equal(t, domain.Transient, transportKind(&net.OpError{Op: "dial", Err: fmt.Errorf("connection refused")}))
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "", PlainText("  "))
	assert.Equal(t, "plain text", PlainText(" plain \n text "))
	assert.Equal(t, "Hello world", PlainText(`<p>Hello <a href="#">world</a></p>`))
}
