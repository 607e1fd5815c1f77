// Package media decodes the bitmaps behind media placeholders. Loading is
// fire-and-forget: the renderer asks for a source, gets nothing until the
// decode finishes, and is told through OnReady when it should redraw.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// MaxSourceBytes caps how much a single source may read.
const MaxSourceBytes = 32 << 20

var ErrUnsupportedSource = errors.New("unsupported media source")

// Status of a source in the cache.
type Status int

const (
	StatusUnknown Status = iota
	StatusLoading
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Resolver opens sources that are not inline data URLs.
type Resolver interface {
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

type entry struct {
	status Status
	img    image.Image
	err    error
}

// Loader caches decoded sources by reference.
type Loader struct {
	resolver Resolver

	mu      sync.Mutex
	entries map[string]*entry
	onReady []func(ref string)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLoader returns a loader. resolver may be nil, in which case only data
// URLs can be decoded.
func NewLoader(resolver Resolver) *Loader {
	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		resolver: resolver,
		entries:  make(map[string]*entry),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// OnReady registers fn to run on the decoding goroutine once a source
// finishes, successfully or not.
func (l *Loader) OnReady(fn func(ref string)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onReady = append(l.onReady, fn)
}

// Request starts decoding ref unless it is already cached or in flight. It
// never blocks.
func (l *Loader) Request(ref string) {
	if ref == "" {
		return
	}
	l.mu.Lock()
	if _, ok := l.entries[ref]; ok {
		l.mu.Unlock()
		return
	}
	l.entries[ref] = &entry{status: StatusLoading}
	l.mu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		img, err := l.load(ref)

		l.mu.Lock()
		e := l.entries[ref]
		if err != nil {
			e.status, e.err = StatusFailed, err
		} else {
			e.status, e.img = StatusReady, img
		}
		hooks := l.onReady
		l.mu.Unlock()

		if err != nil {
			slog.Warn("media decode failed", "ref", truncateRef(ref), "error", err)
		}
		for _, fn := range hooks {
			fn(ref)
		}
	}()
}

// Lookup returns the decoded image when it is ready. Unknown sources are
// requested as a side effect.
func (l *Loader) Lookup(ref string) (image.Image, bool) {
	l.mu.Lock()
	e, ok := l.entries[ref]
	l.mu.Unlock()
	if !ok {
		l.Request(ref)
		return nil, false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if e.status != StatusReady {
		return nil, false
	}
	return e.img, true
}

// Status reports where ref is in its lifecycle.
func (l *Loader) Status(ref string) Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[ref]; ok {
		return e.status
	}
	return StatusUnknown
}

// Err returns the decode error of a failed source.
func (l *Loader) Err(ref string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[ref]; ok {
		return e.err
	}
	return nil
}

// Forget drops ref from the cache so the next request decodes it again.
func (l *Loader) Forget(ref string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[ref]; ok && e.status != StatusLoading {
		delete(l.entries, ref)
	}
}

// Wait blocks until every in-flight decode has finished.
func (l *Loader) Wait() {
	l.wg.Wait()
}

// Close cancels in-flight loads and waits for them.
func (l *Loader) Close() {
	l.cancel()
	l.wg.Wait()
}

func (l *Loader) load(ref string) (image.Image, error) {
	var r io.Reader
	if strings.HasPrefix(ref, "data:") {
		data, err := DecodeDataURL(ref)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(data)
	} else {
		if l.resolver == nil {
			return nil, ErrUnsupportedSource
		}
		rc, err := l.resolver.Open(l.ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", ref, err)
		}
		defer rc.Close()
		r = io.LimitReader(rc, MaxSourceBytes)
	}

	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// DecodeDataURL returns the payload of a data: URL, base64 or percent
// encoded.
func DecodeDataURL(ref string) ([]byte, error) {
	rest, ok := strings.CutPrefix(ref, "data:")
	if !ok {
		return nil, ErrUnsupportedSource
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("data url: missing payload separator")
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("data url: %w", err)
		}
		return data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("data url: %w", err)
	}
	return []byte(s), nil
}

// MediaType returns the declared MIME type of a data: URL, if any.
func MediaType(ref string) string {
	rest, ok := strings.CutPrefix(ref, "data:")
	if !ok {
		return ""
	}
	meta, _, _ := strings.Cut(rest, ",")
	mt, _, _ := strings.Cut(meta, ";")
	return mt
}

func truncateRef(ref string) string {
	if len(ref) > 64 {
		return ref[:64] + "..."
	}
	return ref
}
