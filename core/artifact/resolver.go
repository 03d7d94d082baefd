// Package artifact 把抓取结果里的图表和 CSV 引用解析成可以直接发送的内容
package artifact

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"TrackPulse/config"
	"TrackPulse/logger"
	"TrackPulse/metrics"
	"TrackPulse/model"
)

// 远程附件的读取上限
const maxArtifactBytes = 32 << 20

// Store 按名称读取本地或对象存储中的附件
type Store interface {
	Get(ctx context.Context, name string) ([]byte, error)
}

// Resolver 附件解析器
type Resolver struct {
	store            Store
	client           *http.Client
	internalPrefixes []string
	publicBase       string
	fetchTimeout     time.Duration
	csvInlineLimit   int
	urlRefs          bool
}

// NewResolver 根据配置创建解析器，store 可以为 nil（此时本地引用一律不可用）
func NewResolver(cfg *config.Config, store Store) *Resolver {
	prefixes := make([]string, 0, len(cfg.InternalHostPrefixes))
	for _, p := range cfg.InternalHostPrefixes {
		if p = strings.TrimRight(strings.TrimSpace(p), "/"); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	timeout := cfg.ArtifactFetchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Resolver{
		store:            store,
		client:           &http.Client{},
		internalPrefixes: prefixes,
		publicBase:       strings.TrimRight(cfg.PublicBaseURL, "/"),
		fetchTimeout:     timeout,
		csvInlineLimit:   cfg.CSVInlineLimit,
		urlRefs:          cfg.NotifierURLRefs,
	}
}

// Rewrite 把只在内部可达的地址换成外部地址，路径和查询参数不变
// 已经是外部地址的引用原样返回，重复调用结果不变
func (r *Resolver) Rewrite(ref string) string {
	if r.publicBase == "" {
		return ref
	}
	if _, ok := cutHostPrefix(ref, r.publicBase); ok {
		return ref
	}
	for _, prefix := range r.internalPrefixes {
		if rest, ok := cutHostPrefix(ref, prefix); ok {
			return r.publicBase + rest
		}
	}
	return ref
}

// cutHostPrefix 只在路径边界上匹配，避免 :8000 误中 :80001
func cutHostPrefix(ref, prefix string) (string, bool) {
	if !strings.HasPrefix(ref, prefix) {
		return "", false
	}
	rest := ref[len(prefix):]
	if rest == "" || rest[0] == '/' || rest[0] == '?' || rest[0] == '#' {
		return rest, true
	}
	return "", false
}

// Resolve 解析单个附件，失败时返回空附件和 ErrArtifactUnavailable
func (r *Resolver) Resolve(ctx context.Context, ref model.ArtifactRef) (model.Artifact, error) {
	art := model.Artifact{Name: ref.Name, Kind: ref.Kind, SourceRef: ref.Ref}

	raw := strings.TrimSpace(ref.Ref)
	if raw == "" {
		return art, nil
	}

	var err error
	switch {
	case strings.HasPrefix(raw, "data:"):
		art.Data, err = decodeDataURI(raw)
	case isAbsoluteURL(r.Rewrite(raw)):
		err = r.fetch(ctx, r.Rewrite(raw), &art)
	default:
		art.Data, err = r.readStore(ctx, raw, !ref.Exact)
	}
	if err != nil {
		return model.Artifact{Name: ref.Name, Kind: ref.Kind, SourceRef: ref.Ref},
			fmt.Errorf("%s: %w: %v", ref.Name, model.ErrArtifactUnavailable, err)
	}
	return art, nil
}

// ResolveAll 并发解析所有附件，单个失败不影响其他附件
// 返回的 map 包含每个引用，失败的为空附件
func (r *Resolver) ResolveAll(ctx context.Context, refs []model.ArtifactRef) (map[string]model.Artifact, []model.Diagnostic) {
	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		out   = make(map[string]model.Artifact, len(refs))
		diags []model.Diagnostic
	)

	for _, ref := range refs {
		wg.Add(1)
		go func(ref model.ArtifactRef) {
			defer wg.Done()
			art, err := r.Resolve(ctx, ref)

			mu.Lock()
			defer mu.Unlock()
			out[ref.Name] = art
			switch {
			case err != nil:
				metrics.ArtifactResolutions.WithLabelValues(ref.Name, "unavailable").Inc()
				logger.Warn("附件解析失败",
					logger.String("artifact", ref.Name),
					logger.String("ref", truncate(ref.Ref, 120)),
					logger.ErrorField(err))
				diags = append(diags, model.Diagnostic{
					Kind:     model.DiagArtifactUnavailable,
					Artifact: ref.Name,
					Message:  err.Error(),
				})
			case art.URL != "":
				metrics.ArtifactResolutions.WithLabelValues(ref.Name, "url").Inc()
			case len(art.Data) > 0:
				metrics.ArtifactResolutions.WithLabelValues(ref.Name, "inline").Inc()
			default:
				metrics.ArtifactResolutions.WithLabelValues(ref.Name, "empty").Inc()
			}
		}(ref)
	}
	wg.Wait()

	return out, diags
}

func (r *Resolver) fetch(ctx context.Context, target string, art *model.Artifact) error {
	ctx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	start := time.Now()
	defer func() { metrics.ArtifactFetchDuration.Observe(metrics.Since(start)) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("GET %s: status %d", target, resp.StatusCode)
	}

	if art.Kind == model.ArtifactCSV && r.urlRefs && r.csvInlineLimit > 0 {
		// 只读到上限 +1 字节即可判断是否超限
		data, err := io.ReadAll(io.LimitReader(resp.Body, int64(r.csvInlineLimit)+1))
		if err != nil {
			return err
		}
		if len(data) > r.csvInlineLimit {
			art.URL = target
			return nil
		}
		art.Data = data
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactBytes+1))
	if err != nil {
		return err
	}
	if len(data) > maxArtifactBytes {
		return fmt.Errorf("GET %s: body exceeds %d bytes", target, maxArtifactBytes)
	}
	art.Data = data
	return nil
}

func (r *Resolver) readStore(ctx context.Context, name string, fallback bool) ([]byte, error) {
	if r.store == nil {
		return nil, fmt.Errorf("no artifact store for %q", name)
	}
	ctx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	data, err := r.store.Get(ctx, name)
	if fallback && errors.Is(err, model.ErrNotFound) {
		// 抓取服务可能给出它自己机器上的绝对路径，退回到按文件名查找
		name = strings.ReplaceAll(name, `\`, "/")
		if base := path.Base(name); base != name && base != "." && base != "/" {
			data, err = r.store.Get(ctx, base)
		}
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("artifact %q is empty", name)
	}
	return data, nil
}

func isAbsoluteURL(ref string) bool {
	u, err := url.Parse(ref)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// decodeDataURI 支持 data:<mime>;base64,<...> 和未编码的 data:,<text>
func decodeDataURI(ref string) ([]byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URI")
	}
	if !strings.HasSuffix(header, ";base64") {
		text, err := url.PathUnescape(payload)
		if err != nil {
			return nil, err
		}
		return []byte(text), nil
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("bad base64 in data URI: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty data URI")
	}
	return data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
