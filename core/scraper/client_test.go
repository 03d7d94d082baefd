package scraper

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"TrackPulse/config"
	"TrackPulse/model"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
)

func newTestClient(url string) *Client {
	return NewClient(&config.Config{
		ScraperURL:           url,
		ScraperTimeout:       5 * time.Second,
		ScraperRatePerMinute: 6000,
	})
}

func TestScrape(t *testing.T) {
	var got model.TriggerRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/scrape" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spotify":{"title":"Flowers","streams":1200},"youtube":null}`))
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).Scrape(context.Background(), model.TriggerRequest{
		SongName:           "Flowers",
		SongNameDiacritics: "Flowérs",
		Artist:             "Miley Cyrus",
	})
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if got.SongName != "Flowers" || got.Artist != "Miley Cyrus" || got.SongNameDiacritics != "Flowérs" {
		t.Errorf("request = %+v", got)
	}
	if len(result) != 2 || string(result["youtube"]) != "null" {
		t.Errorf("result = %v", result)
	}
}

func TestScrapeUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	for i := 0; i < 3; i++ {
		if _, err := client.Scrape(context.Background(), model.TriggerRequest{SongName: "a", Artist: "b"}); err == nil {
			t.Fatal("expected error for 500")
		}
	}
	// 连续失败后熔断，不再打到上游
	_, err := client.Scrape(context.Background(), model.TriggerRequest{SongName: "a", Artist: "b"})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("error = %v, want open breaker", err)
	}
}

func TestParseResult(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"object", `{"spotify":{}}`, false},
		{"empty object", `{}`, false},
		{"array", `[1,2]`, true},
		{"html", `<html>`, true},
		{"empty", ``, true},
		{"truncated", `{"spotify":`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResult([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseResult() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, model.ErrMalformedPayload) {
				t.Errorf("error = %v, want ErrMalformedPayload", err)
			}
		})
	}
}
