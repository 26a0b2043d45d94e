package chatcontext

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"portfolio-functions/internal/integrations/blobstore"
)

const (
	DefaultKey = "context"
	DefaultTTL = 5 * time.Minute
)

// BlobStore is the subset of blobstore.Store the provider needs.
type BlobStore interface {
	Get(ctx context.Context, key string) (blobstore.Blob, error)
	Metadata(ctx context.Context, key string) (blobstore.Metadata, error)
}

// BlobProvider serves the prompt from a blob store with a two-tier cache.
// Within the TTL a cached copy is still checked against the store's current
// ETag; a changed ETag or an expired TTL forces a full fetch.
type BlobProvider struct {
	store BlobStore
	key   string
	ttl   time.Duration
	now   func() time.Time

	mu        sync.Mutex
	content   string
	etag      string
	fetchedAt time.Time
	cached    bool
}

type BlobOption func(*BlobProvider)

func WithKey(key string) BlobOption {
	return func(p *BlobProvider) {
		if key = strings.TrimSpace(key); key != "" {
			p.key = key
		}
	}
}

func WithTTL(ttl time.Duration) BlobOption {
	return func(p *BlobProvider) {
		if ttl > 0 {
			p.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) BlobOption {
	return func(p *BlobProvider) {
		if now != nil {
			p.now = now
		}
	}
}

func NewBlobProvider(store BlobStore, opts ...BlobOption) (*BlobProvider, error) {
	if store == nil {
		return nil, errors.New("chatcontext: blob store must not be nil")
	}
	p := &BlobProvider{
		store: store,
		key:   DefaultKey,
		ttl:   DefaultTTL,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *BlobProvider) Name() string { return "blob" }

func (p *BlobProvider) Lookup(ctx context.Context) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	logger := zerolog.Ctx(ctx)
	now := p.now()

	if p.cached && now.Sub(p.fetchedAt) < p.ttl {
		meta, err := p.store.Metadata(ctx, p.key)
		switch {
		case errors.Is(err, blobstore.ErrNotFound):
			p.invalidate()
			return "", false, nil
		case err != nil:
			return "", false, fmt.Errorf("chatcontext: blob metadata: %w", err)
		case meta.ETag == p.etag:
			return p.content, true, nil
		}
		logger.Debug().Str("old_etag", p.etag).Str("new_etag", meta.ETag).Msg("context blob changed, refetching")
	}

	blob, err := p.store.Get(ctx, p.key)
	if errors.Is(err, blobstore.ErrNotFound) {
		p.invalidate()
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("chatcontext: blob get: %w", err)
	}

	p.content = blob.Content
	p.etag = blob.ETag
	p.fetchedAt = now
	p.cached = true
	logger.Debug().Str("etag", blob.ETag).Int("length", len(blob.Content)).Msg("context blob loaded")
	return blob.Content, true, nil
}

func (p *BlobProvider) invalidate() {
	p.content, p.etag, p.fetchedAt, p.cached = "", "", time.Time{}, false
}
