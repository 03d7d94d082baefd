package artifact

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"TrackPulse/config"
	"TrackPulse/model"
	"TrackPulse/storage"
)

type mapStore map[string][]byte

func (m mapStore) Get(_ context.Context, name string) ([]byte, error) {
	if data, ok := m[name]; ok {
		return data, nil
	}
	return nil, model.ErrNotFound
}

func newTestResolver(publicBase string, store Store) *Resolver {
	return NewResolver(&config.Config{
		PublicBaseURL:        publicBase,
		InternalHostPrefixes: []string{"http://127.0.0.1:8000", "http://scraper:8000/"},
		ArtifactFetchTimeout: 200 * time.Millisecond,
		CSVInlineLimit:       16,
	}, store)
}

func TestRewrite(t *testing.T) {
	r := newTestResolver("https://pulse.example.com", nil)

	tests := []struct {
		in, want string
	}{
		{"http://127.0.0.1:8000/static/chart.png?v=2", "https://pulse.example.com/static/chart.png?v=2"},
		{"http://scraper:8000/x.csv", "https://pulse.example.com/x.csv"},
		{"http://127.0.0.1:8000", "https://pulse.example.com"},
		{"http://127.0.0.1:80001/x.png", "http://127.0.0.1:80001/x.png"},
		{"https://cdn.example.org/a.png", "https://cdn.example.org/a.png"},
		{"local/file.png", "local/file.png"},
	}
	for _, tt := range tests {
		got := r.Rewrite(tt.in)
		if got != tt.want {
			t.Errorf("Rewrite(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if again := r.Rewrite(got); again != got {
			t.Errorf("Rewrite not idempotent: %q -> %q", got, again)
		}
	}
}

func TestResolveSources(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chart.png":
			_, _ = w.Write([]byte("PNGDATA"))
		case "/missing.png":
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	store := mapStore{"Flowers_Miley_Cyrus_tiktok.csv": []byte("a,b\n")}
	r := newTestResolver(srv.URL, store)
	ctx := context.Background()

	tests := []struct {
		name    string
		ref     model.ArtifactRef
		want    string
		wantErr bool
	}{
		{"remote image", model.ArtifactRef{Name: "img", Kind: model.ArtifactImage, Ref: srv.URL + "/chart.png"}, "PNGDATA", false},
		{"internal host rewritten", model.ArtifactRef{Name: "img", Kind: model.ArtifactImage, Ref: "http://127.0.0.1:8000/chart.png"}, "PNGDATA", false},
		{"non-2xx", model.ArtifactRef{Name: "img", Kind: model.ArtifactImage, Ref: srv.URL + "/missing.png"}, "", true},
		{"data uri", model.ArtifactRef{Name: "img", Kind: model.ArtifactImage, Ref: "data:image/png;base64,UE5H"}, "PNG", false},
		{"bad base64", model.ArtifactRef{Name: "img", Kind: model.ArtifactImage, Ref: "data:image/png;base64,!!!"}, "", true},
		{"store name", model.ArtifactRef{Name: "csv", Kind: model.ArtifactCSV, Ref: "Flowers_Miley_Cyrus_tiktok.csv"}, "a,b\n", false},
		{"foreign absolute path", model.ArtifactRef{Name: "csv", Kind: model.ArtifactCSV, Ref: `C:\Users\x\Flowers_Miley_Cyrus_tiktok.csv`}, "a,b\n", false},
		{"exact name skips basename lookup", model.ArtifactRef{Name: "csv", Kind: model.ArtifactCSV, Ref: "x/Flowers_Miley_Cyrus_tiktok.csv", Exact: true}, "", true},
		{"missing store name", model.ArtifactRef{Name: "csv", Kind: model.ArtifactCSV, Ref: "nope.csv"}, "", true},
		{"empty ref", model.ArtifactRef{Name: "csv", Kind: model.ArtifactCSV}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			art, err := r.Resolve(ctx, tt.ref)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Resolve() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, model.ErrArtifactUnavailable) {
				t.Errorf("error = %v, want ErrArtifactUnavailable", err)
			}
			if string(art.Data) != tt.want {
				t.Errorf("Data = %q, want %q", art.Data, tt.want)
			}
			if art.Name != tt.ref.Name {
				t.Errorf("Name = %q", art.Name)
			}
		})
	}
}

func TestResolveGeneratedCSVNameNeverMatchesAnotherTrack(t *testing.T) {
	ctx := context.Background()
	dir, err := storage.NewDirStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := dir.Put(ctx, "DC_tiktok.csv", []byte("other,track\n"), "text/csv"); err != nil {
		t.Fatal(err)
	}
	r := newTestResolver("", dir)

	ref := model.ArtifactRef{
		Name:  model.ArtifactTiktokCSV,
		Kind:  model.ArtifactCSV,
		Ref:   storage.CSVFileName("Thunderstruck", "AC/DC"),
		Exact: true,
	}
	art, err := r.Resolve(ctx, ref)
	if !errors.Is(err, model.ErrArtifactUnavailable) {
		t.Fatalf("Resolve() error = %v, want ErrArtifactUnavailable", err)
	}
	if !art.Empty() {
		t.Errorf("got another track's export: %q", art.Data)
	}

	// 去掉 Exact 后同样的名字也不会命中：生成的文件名里没有路径分隔符
	ref.Exact = false
	if _, err := r.Resolve(ctx, ref); err == nil {
		t.Error("CSV name with a slash in the artist resolved to another file")
	}

	if err := dir.Put(ctx, ref.Ref, []byte("song,views\n"), "text/csv"); err != nil {
		t.Fatal(err)
	}
	art, err = r.Resolve(ctx, ref)
	if err != nil || string(art.Data) != "song,views\n" {
		t.Errorf("Resolve() = %q, %v", art.Data, err)
	}
}

func TestResolveLargeCSV(t *testing.T) {
	big := strings.Repeat("x", 64)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(big))
	}))
	defer srv.Close()

	ref := model.ArtifactRef{Name: model.ArtifactTiktokCSV, Kind: model.ArtifactCSV, Ref: srv.URL + "/big.csv"}

	inline := newTestResolver(srv.URL, nil)
	art, err := inline.Resolve(context.Background(), ref)
	if err != nil || string(art.Data) != big || art.URL != "" {
		t.Fatalf("without URL refs: %+v, %v", art, err)
	}

	byURL := newTestResolver(srv.URL, nil)
	byURL.urlRefs = true
	art, err = byURL.Resolve(context.Background(), ref)
	if err != nil || art.URL != srv.URL+"/big.csv" || len(art.Data) != 0 {
		t.Fatalf("with URL refs: %+v, %v", art, err)
	}
	if art.Encoded() != srv.URL+"/big.csv" {
		t.Errorf("Encoded() = %q", art.Encoded())
	}
}

func TestResolveAllIsolatesFailures(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	r := newTestResolver("http://public.invalid", nil)
	refs := []model.ArtifactRef{
		{Name: model.ArtifactSpotontrackImage, Kind: model.ArtifactImage, Ref: slow.URL + "/hang.png"},
		{Name: model.ArtifactMediaforestImage, Kind: model.ArtifactImage, Ref: deadURL + "/gone.png"},
		{Name: model.ArtifactTiktokCSV, Kind: model.ArtifactCSV, Ref: "data:text/csv;base64,YSxi"},
	}

	start := time.Now()
	arts, diags := r.ResolveAll(context.Background(), refs)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("ResolveAll took %v, fetch timeout not applied", elapsed)
	}

	if len(arts) != 3 {
		t.Fatalf("len(arts) = %d, want every ref present", len(arts))
	}
	if !arts[model.ArtifactSpotontrackImage].Empty() || !arts[model.ArtifactMediaforestImage].Empty() {
		t.Errorf("failed artifacts must be empty")
	}
	if got := arts[model.ArtifactTiktokCSV].Encoded(); got != "YSxi" {
		t.Errorf("csv = %q, want sibling unaffected", got)
	}
	if len(diags) != 2 {
		t.Fatalf("diags = %+v, want 2", diags)
	}
	for _, d := range diags {
		if d.Kind != model.DiagArtifactUnavailable {
			t.Errorf("diag kind = %s", d.Kind)
		}
	}
}
