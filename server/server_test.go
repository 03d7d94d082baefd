package server

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"TrackPulse/model"
	"TrackPulse/storage"

	json "github.com/goccy/go-json"
)

type fakeTrigger struct {
	mu  sync.Mutex
	got []model.TriggerRequest
}

func (f *fakeTrigger) Trigger(req model.TriggerRequest) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, req)
	return "run-1"
}

type fakeRunner struct {
	report *model.Report
	err    error
}

func (f *fakeRunner) Run(context.Context, model.TriggerRequest) (*model.Report, []model.Diagnostic, error) {
	return f.report, nil, f.err
}

type fakeDeliverer struct {
	err error
	got []model.NotificationPayload
}

func (f *fakeDeliverer) Deliver(_ context.Context, p model.NotificationPayload) error {
	f.got = append(f.got, p)
	return f.err
}

type testEnv struct {
	router    http.Handler
	trigger   *fakeTrigger
	runner    *fakeRunner
	deliverer *fakeDeliverer
	store     *storage.DirStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.NewDirStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	env := &testEnv{
		trigger:   &fakeTrigger{},
		runner:    &fakeRunner{},
		deliverer: &fakeDeliverer{},
		store:     store,
	}
	api := NewAPIHandler(env.trigger, env.runner, env.deliverer, store, time.Second)
	env.router = NewRouter(api, NewFileHandler(store))
	return env
}

func (e *testEnv) do(method, target, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestScrapeHandler(t *testing.T) {
	form := url.Values{"song_name": {"Flowers"}, "artist": {"Miley Cyrus"}}.Encode()

	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
		wantMessage string
	}{
		{"json", "application/json", `{"song_name":"Flowers","artist":"Miley Cyrus"}`, http.StatusOK, "Scraping started successfully"},
		{"form", "application/x-www-form-urlencoded", form, http.StatusOK, "Scraping started successfully"},
		{"missing artist", "application/json", `{"song_name":"Flowers"}`, http.StatusBadRequest, "Song name and artist are required"},
		{"blank song", "application/json", `{"song_name":"  ","artist":"x"}`, http.StatusBadRequest, "Song name and artist are required"},
		{"garbage", "application/json", `{`, http.StatusBadRequest, "Song name and artist are required"},
		{"empty body", "", ``, http.StatusBadRequest, "Song name and artist are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(http.MethodPost, "/scrape", tt.contentType, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("bad body %q: %v", rec.Body.String(), err)
			}
			if body["message"] != tt.wantMessage {
				t.Errorf("message = %q", body["message"])
			}
			triggered := len(env.trigger.got) == 1
			if triggered != (tt.wantStatus == http.StatusOK) {
				t.Errorf("triggered = %v", triggered)
			}
			if triggered && (body["song"] != "Flowers" || body["artist"] != "Miley Cyrus") {
				t.Errorf("echo = %v", body)
			}
		})
	}
}

func TestScrapeCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodOptions, "/scrape", "", "")
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight = %d %v", rec.Code, rec.Header())
	}
}

func TestAggregateHandler(t *testing.T) {
	env := newTestEnv(t)
	env.runner.report = &model.Report{
		ID:  "r1",
		Key: model.NewTrackKey("Flowers", "Miley Cyrus", ""),
		Platforms: map[model.Platform]model.PlatformMetric{
			model.PlatformSpotify: {CurrentValue: model.Float(1000)},
		},
	}

	rec := env.do(http.MethodPost, "/api/aggregate?deliver=true", "application/json", `{"song_name":"Flowers","artist":"Miley Cyrus"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	var resp struct {
		Report    model.Report              `json:"report"`
		Payload   model.NotificationPayload `json:"payload"`
		Delivered bool                      `json:"delivered"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Payload.SpotifyStreams != "1000" || !resp.Delivered || len(env.deliverer.got) != 1 {
		t.Errorf("resp = %+v delivered %d", resp, len(env.deliverer.got))
	}

	env.runner.err = model.ErrAggregationFailed
	rec = env.do(http.MethodPost, "/api/aggregate", "application/json", `{"song_name":"Flowers","artist":"Miley Cyrus"}`)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestCSVRetrieval(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/files/csv?song=Flowers&artist=Miley+Cyrus", "", "")
	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Fatalf("absent csv = %d %q, want 204 empty", rec.Code, rec.Body.String())
	}

	if err := env.store.Put(context.Background(), "Flowers_Miley_Cyrus_tiktok.csv", []byte("date,videos\n"), "text/csv"); err != nil {
		t.Fatal(err)
	}
	rec = env.do(http.MethodGet, "/files/csv?song=Flowers&artist=Miley+Cyrus", "", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "date,videos\n" {
		t.Fatalf("csv = %d %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "Flowers_Miley_Cyrus_tiktok.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}
}

func TestImageRetrieval(t *testing.T) {
	env := newTestEnv(t)
	if err := env.store.Put(context.Background(), "chart.png", []byte("PNG"), "image/png"); err != nil {
		t.Fatal(err)
	}

	rec := env.do(http.MethodGet, "/files/images/chart.png", "", "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Errorf("image = %d %v", rec.Code, rec.Header())
	}
	rec = env.do(http.MethodGet, "/files/images/missing.png", "", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing image = %d, want 404", rec.Code)
	}
}

func TestSendReportFillsCSV(t *testing.T) {
	env := newTestEnv(t)
	if err := env.store.Put(context.Background(), "Flowers_Miley_Cyrus_tiktok.csv", []byte("a,b"), ""); err != nil {
		t.Fatal(err)
	}

	rec := env.do(http.MethodPost, "/send-report", "application/json", `{"song_name":"Flowers","artist":"Miley Cyrus","spotify_streams":"10"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if strings.TrimSpace(string(body)) != `{"status":"ok"}` {
		t.Errorf("body = %s", body)
	}
	got := env.deliverer.got[0]
	if got.TiktokCSVBase64 != base64.StdEncoding.EncodeToString([]byte("a,b")) || got.SpotifyStreams != "10" {
		t.Errorf("forwarded = %+v", got)
	}

	env.deliverer.err = model.ErrDeliveryFailed
	rec = env.do(http.MethodPost, "/send-report", "application/json", `{"song_name":"x","artist":"y"}`)
	if rec.Code != http.StatusInternalServerError || strings.TrimSpace(rec.Body.String()) != "Fail" {
		t.Errorf("failure = %d %q", rec.Code, rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}
}
