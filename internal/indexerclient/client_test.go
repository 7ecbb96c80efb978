package indexerclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSearch_ParsesXMLResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(`<?xml version="1.0"?>
<rss version="2.0"><channel>
  <item>
    <title>Some.Movie.2025.1080p.WEB-DL</title>
    <link>http://indexer/get/1</link>
    <pubDate>Mon, 02 Jan 2006 15:04:05 -0700</pubDate>
    <enclosure url="http://indexer/get/1.nzb" length="123456" />
    <attr name="size" value="123456" />
  </item>
</channel></rss>`))
	}))
	defer srv.Close()

	c := New(Config{Name: "x", BaseURL: srv.URL, APIPath: "/api", APIKey: "k"}, nil)
	results := c.Search(context.Background(), "Some Movie 2025", nil)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].NZBURL != "http://indexer/get/1.nzb" {
		t.Fatalf("NZBURL = %q", results[0].NZBURL)
	}
	if results[0].SizeBytes != 123456 {
		t.Fatalf("SizeBytes = %d, want 123456", results[0].SizeBytes)
	}
}

func TestSearch_ParsesJSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"channel":{"item":[{"title":"Some.Movie.2160p","link":"http://indexer/get/2","size":"999"}]}}`))
	}))
	defer srv.Close()

	c := New(Config{Name: "x", BaseURL: srv.URL, APIPath: "/api", APIKey: "k"}, nil)
	results := c.Search(context.Background(), "Some Movie", nil)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Title != "Some.Movie.2160p" || results[0].SizeBytes != 999 {
		t.Fatalf("got %+v", results[0])
	}
}

func TestSearch_NonOKStatusReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Config{Name: "x", BaseURL: srv.URL, APIPath: "/api", APIKey: "k"}, nil)
	results := c.Search(context.Background(), "q", nil)
	if results != nil {
		t.Fatalf("expected nil results on 500, got %v", results)
	}
}

func TestValidateAPIKey_DetectsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<error code="100" description="Invalid API Key"/>`))
	}))
	defer srv.Close()

	c := New(Config{Name: "x", BaseURL: srv.URL, APIPath: "/api", APIKey: "bad"}, nil)
	ok, err := c.ValidateAPIKey(context.Background())
	if err != nil {
		t.Fatalf("ValidateAPIKey: %v", err)
	}
	if ok {
		t.Fatal("expected ValidateAPIKey to report rejection")
	}
}

func TestValidateAPIKey_AcceptsChannelWithContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<rss><channel><item><title>x</title></item></channel></rss>`))
	}))
	defer srv.Close()

	c := New(Config{Name: "x", BaseURL: srv.URL, APIPath: "/api", APIKey: "good"}, nil)
	ok, err := c.ValidateAPIKey(context.Background())
	if err != nil {
		t.Fatalf("ValidateAPIKey: %v", err)
	}
	if !ok {
		t.Fatal("expected ValidateAPIKey to succeed for a channel with an item")
	}
}

func TestDispatchParse_PicksByLeadingByte(t *testing.T) {
	if _, err := dispatchParse([]byte(`  {"channel":{}}`)); err != nil {
		t.Fatalf("json dispatch: %v", err)
	}
	if _, err := dispatchParse([]byte(`<rss><channel></channel></rss>`)); err != nil {
		t.Fatalf("xml dispatch: %v", err)
	}
}

func TestSearchURL_IncludesCategoriesAndLimit(t *testing.T) {
	c := New(Config{Name: "x", BaseURL: "http://example", APIPath: "/api", APIKey: "k"}, nil)
	u := c.searchURL("foo bar", []string{"2000", "5000"}, 10)
	if !strings.Contains(u, "cat=2000%2C5000") && !strings.Contains(u, "cat=2000,5000") {
		t.Fatalf("search URL missing categories: %s", u)
	}
	if !strings.Contains(u, "t=search") {
		t.Fatalf("search URL missing t=search: %s", u)
	}
}
