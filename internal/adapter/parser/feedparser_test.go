package parser

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser() *FeedParser {
	return NewFeedParser(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFeedParser_Parse_RSS(t *testing.T) {
	parser := newTestParser()

	xmlData := `<?xml version="1.0" encoding="UTF-8"?>
	<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
	<channel>
	<title>Markets</title>
	<link>https://example.com</link>
	<description>Market news</description>
	<item>
	<title> Sensex closes higher </title>
	<link>https://example.com/sensex</link>
	<description><![CDATA[<p>Indices <b>rallied</b> today.</p>]]></description>
	<content:encoded><![CDATA[<div><p>Full   story</p><p>with details.</p></div>]]></content:encoded>
	<author>desk@example.com (Market Desk)</author>
	<enclosure url="https://example.com/sensex.jpg" type="image/jpeg" length="1024"/>
	<pubDate>Mon, 02 Jan 2006 15:04:05 +0000</pubDate>
	</item>
	<item>
	<title>IPO watch</title>
	<link>https://example.com/ipo</link>
	<description>Plain text</description>
	<pubDate>Tue, 03 Jan 2006 12:00:00 GMT</pubDate>
	</item>
	</channel>
	</rss>`

	feed, err := parser.Parse(context.Background(), strings.NewReader(xmlData))

	require.NoError(t, err)
	require.NotNil(t, feed)
	assert.Equal(t, "Markets", feed.Title)
	assert.Equal(t, "https://example.com", feed.Link)
	assert.Equal(t, "Market news", feed.Description)
	require.Len(t, feed.Items, 2)

	first := feed.Items[0]
	assert.Equal(t, "Sensex closes higher", first.Title)
	assert.Equal(t, "https://example.com/sensex", first.Link)
	assert.Equal(t, "Indices rallied today.", first.Description)
	assert.Equal(t, "Full storywith details.", first.Body)
	assert.Equal(t, "https://example.com/sensex.jpg", first.ImageURL)
	assert.NotEmpty(t, first.Author)
	assert.WithinDuration(t, time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC), first.PubDate, time.Second)

	second := feed.Items[1]
	assert.Equal(t, "Plain text", second.Description)
	assert.Equal(t, "Plain text", second.Body, "body falls back to the description")
	assert.Empty(t, second.ImageURL)
	assert.WithinDuration(t, time.Date(2006, 1, 3, 12, 0, 0, 0, time.UTC), second.PubDate, time.Second)
}

func TestFeedParser_Parse_Atom(t *testing.T) {
	parser := newTestParser()

	atomData := `<?xml version="1.0" encoding="utf-8"?>
	<feed xmlns="http://www.w3.org/2005/Atom">
	<title>Crypto Daily</title>
	<link href="https://crypto.example.com/"/>
	<entry>
	<title>Bitcoin update</title>
	<link href="https://crypto.example.com/btc"/>
	<id>urn:uuid:1</id>
	<updated>2024-06-08T01:30:00Z</updated>
	<author><name>Jane Analyst</name></author>
	<summary>Prices moved.</summary>
	</entry>
	</feed>`

	feed, err := parser.Parse(context.Background(), strings.NewReader(atomData))

	require.NoError(t, err)
	assert.Equal(t, "Crypto Daily", feed.Title)
	require.Len(t, feed.Items, 1)
	item := feed.Items[0]
	assert.Equal(t, "https://crypto.example.com/btc", item.Link)
	assert.Equal(t, "Jane Analyst", item.Author)
	assert.Equal(t, "Prices moved.", item.Description)
	assert.Equal(t, time.Date(2024, 6, 8, 1, 30, 0, 0, time.UTC), item.PubDate)
}

func TestFeedParser_Parse_SkipsItemsWithoutLinkAndKeepsUndated(t *testing.T) {
	parser := newTestParser()

	xmlData := `<rss version="2.0"><channel><title>Tax</title>
	<item><title>No link</title><description>x</description></item>
	<item><title>Undated</title><link>https://example.com/undated</link></item>
	</channel></rss>`

	feed, err := parser.Parse(context.Background(), strings.NewReader(xmlData))

	require.NoError(t, err)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, "Undated", feed.Items[0].Title)
	assert.True(t, feed.Items[0].PubDate.IsZero())
}

func TestFeedParser_Parse_Invalid(t *testing.T) {
	parser := newTestParser()

	feed, err := parser.Parse(context.Background(), strings.NewReader("this is not a feed"))

	assert.Error(t, err)
	assert.Nil(t, feed)
	assert.Contains(t, err.Error(), "failed to parse feed")
}

func TestFeedParser_Parse_ContextCancelled(t *testing.T) {
	parser := newTestParser()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	feed, err := parser.Parse(ctx, strings.NewReader(`<rss><channel><title>x</title></channel></rss>`))

	assert.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Nil(t, feed)
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "", StripHTML("   "))
	assert.Equal(t, "a b c", StripHTML("<ul><li>a</li> <li>b</li>\n<li>c</li></ul>"))
	assert.Equal(t, "plain", StripHTML("plain"))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 3))
	assert.Equal(t, "ab...", truncateRunes("abc", 2))
	assert.Equal(t, "₹₹...", truncateRunes("₹₹₹", 2))
}
