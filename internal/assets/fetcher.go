package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Kind is the logical role of an asset.
type Kind string

const (
	KindWeights   Kind = "weights"
	KindTokenizer Kind = "tokenizer"
	KindConfig    Kind = "config"
)

// Request names one asset. Several URLs denote a sharded asset whose parts are
// concatenated in order.
type Request struct {
	URLs []string
	Kind Kind
}

// MultiPart reports whether the request is a sharded asset.
func (r Request) MultiPart() bool { return len(r.URLs) > 1 }

const defaultUserAgent = "textgend/1.0 (Go)"

// Options configures a Fetcher. Zero values select defaults.
type Options struct {
	Client    *http.Client
	Cache     Cache
	Logger    zerolog.Logger
	UserAgent string
	Now       func() time.Time
}

// Fetcher retrieves assets through a shared Cache.
type Fetcher struct {
	client *http.Client
	cache  Cache
	log    zerolog.Logger
	ua     string
	now    func() time.Time
	group  singleflight.Group
}

func NewFetcher(opts Options) *Fetcher {
	f := &Fetcher{
		client: opts.Client,
		cache:  opts.Cache,
		log:    opts.Logger,
		ua:     opts.UserAgent,
		now:    opts.Now,
	}
	if f.client == nil {
		// no overall timeout: weights can be gigabytes
		f.client = &http.Client{}
	}
	if f.cache == nil {
		f.cache = NewMemoryCache()
	}
	if f.ua == "" {
		f.ua = defaultUserAgent
	}
	if f.now == nil {
		f.now = time.Now
	}
	return f
}

// Cache returns the cache backing this fetcher.
func (f *Fetcher) Cache() Cache { return f.cache }

// Fetch returns the bytes of the requested asset. For a sharded asset the
// result is the concatenation of all parts in URL order; any failing part
// fails the whole request.
func (f *Fetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	switch len(req.URLs) {
	case 0:
		return nil, fmt.Errorf("fetch %s: no urls", req.Kind)
	case 1:
		return f.fetchOne(ctx, req.URLs[0], req.Kind)
	default:
		return f.fetchParts(ctx, req.URLs, req.Kind)
	}
}

func (f *Fetcher) fetchParts(ctx context.Context, urls []string, kind Kind) ([]byte, error) {
	parts := make([][]byte, len(urls))
	// A failing part does not cancel its siblings: every part settles, and
	// the ones that succeed are cached, before Fetch returns.
	var g errgroup.Group
	for i, u := range urls {
		g.Go(func() error {
			b, err := f.fetchOne(ctx, u, kind)
			if err != nil {
				return err
			}
			parts[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Offsets follow URL order, not completion order.
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]byte, total)
	off := 0
	for _, p := range parts {
		off += copy(out[off:], p)
	}
	f.log.Debug().Str("kind", string(kind)).Int("parts", len(urls)).Int("bytes", total).Msg("assets concatenated")
	return out, nil
}

// fetchOne serves url from the cache or the network. The returned slice is
// owned by the caller.
func (f *Fetcher) fetchOne(ctx context.Context, url string, kind Kind) ([]byte, error) {
	if e, ok := f.cache.Get(url); ok {
		fetchTotal.WithLabelValues(string(kind), "hit").Inc()
		f.log.Debug().Str("url", url).Str("kind", string(kind)).Int("bytes", len(e.Data)).Msg("asset cache hit")
		return clone(e.Data), nil
	}

	// Concurrent misses for one URL share a single download. The download is
	// detached from any one caller so that caller's cancellation does not fail
	// the others.
	ch := f.group.DoChan(url, func() (any, error) {
		return f.download(context.WithoutCancel(ctx), url, kind)
	})
	select {
	case <-ctx.Done():
		return nil, &FetchError{URL: url, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		b := res.Val.([]byte)
		if res.Shared {
			b = clone(b)
		}
		return b, nil
	}
}

func (f *Fetcher) download(ctx context.Context, url string, kind Kind) ([]byte, error) {
	if e, ok := f.cache.Get(url); ok {
		fetchTotal.WithLabelValues(string(kind), "hit").Inc()
		return clone(e.Data), nil
	}
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		fetchTotal.WithLabelValues(string(kind), "error").Inc()
		return nil, &FetchError{URL: url, Err: err}
	}
	// Assets are immutable; accept any cached copy an intermediary holds.
	req.Header.Set("Cache-Control", "max-stale")
	req.Header.Set("User-Agent", f.ua)

	resp, err := f.client.Do(req)
	if err != nil {
		fetchTotal.WithLabelValues(string(kind), "error").Inc()
		f.log.Warn().Str("url", url).Err(err).Msg("asset fetch failed")
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		fetchTotal.WithLabelValues(string(kind), "error").Inc()
		f.log.Warn().Str("url", url).Int("status", resp.StatusCode).Msg("asset fetch failed")
		return nil, &FetchError{URL: url, Status: resp.StatusCode}
	}

	var data []byte
	if resp.ContentLength > 0 {
		data = make([]byte, 0, resp.ContentLength)
	}
	buf := bytesWriter{b: data}
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		fetchTotal.WithLabelValues(string(kind), "error").Inc()
		return nil, &FetchError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	data = buf.b

	f.cache.Put(url, Entry{Data: clone(data), FetchedAt: f.now()})
	dur := time.Since(start)
	fetchTotal.WithLabelValues(string(kind), "fetched").Inc()
	fetchedBytesTotal.WithLabelValues(string(kind)).Add(float64(len(data)))
	fetchDuration.WithLabelValues(string(kind)).Observe(dur.Seconds())
	f.log.Info().Str("url", url).Str("kind", string(kind)).Int("bytes", len(data)).Dur("dur", dur).Msg("asset fetched")
	return data, nil
}

type bytesWriter struct{ b []byte }

func (w *bytesWriter) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
