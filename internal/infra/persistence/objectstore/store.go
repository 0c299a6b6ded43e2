// Package objectstore keeps the medtracker document as a single JSON object
// in a blob store, optionally retaining a bounded history of earlier saves.
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"medtracker/internal/blob"
	"medtracker/internal/platform/logging"
	"medtracker/pkg/domain"
)

var _ domain.Gateway = (*Gateway)(nil)

// DefaultKey is the object key used when none is configured.
const DefaultKey = "medtracker/document.json"

const contentType = "application/json"

// Option configures a Gateway.
type Option func(*Gateway)

// WithHistory keeps up to n previous copies under <key>.history/. Zero disables history.
func WithHistory(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.history = n
		}
	}
}

// WithClock overrides the clock used to name history objects.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// WithLogger sets the logger used for history maintenance failures.
func WithLogger(l logging.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.log = l
		}
	}
}

// Gateway is a domain.Gateway over a blob.Store. Each save is one Put, which
// every backend applies atomically.
type Gateway struct {
	store   blob.Store
	key     string
	history int
	now     func() time.Time
	log     logging.Logger

	mu  sync.Mutex
	seq int
}

// New returns a gateway storing the document under key (DefaultKey when empty).
func New(store blob.Store, key string, opts ...Option) (*Gateway, error) {
	if store == nil {
		return nil, errors.New("objectstore: nil blob store")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = DefaultKey
	}
	g := &Gateway{store: store, key: key, now: time.Now, log: logging.Noop{}}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Key returns the object key holding the current document.
func (g *Gateway) Key() string { return g.key }

// Load reads and normalises the stored document. A missing object yields
// NewDocument.
func (g *Gateway) Load(ctx context.Context) (domain.Document, error) {
	_, rc, err := g.store.Get(ctx, g.key)
	if errors.Is(err, blob.ErrNotFound) {
		return domain.NewDocument(), nil
	}
	if err != nil {
		return domain.Document{}, domain.WrapPersistence("load", fmt.Errorf("get %s: %w", g.key, err))
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return domain.Document{}, domain.WrapPersistence("load", fmt.Errorf("read %s: %w", g.key, err))
	}
	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.Document{}, domain.WrapPersistence("load", fmt.Errorf("decode %s: %w", g.key, err))
	}
	doc, err = doc.Normalize()
	if err != nil {
		return domain.Document{}, domain.WrapPersistence("load", err)
	}
	return doc, nil
}

// Save writes doc under the key. History copies are best effort: their
// failures are logged and never fail the save.
func (g *Gateway) Save(ctx context.Context, doc domain.Document) error {
	doc, err := doc.Normalize()
	if err != nil {
		return domain.WrapPersistence("save", err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return domain.WrapPersistence("save", fmt.Errorf("encode document: %w", err))
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	meta := map[string]string{"version": fmt.Sprint(doc.Version)}
	if _, err := g.store.Put(ctx, g.key, bytes.NewReader(data), blob.PutOptions{ContentType: contentType, Metadata: meta}); err != nil {
		return domain.WrapPersistence("save", fmt.Errorf("put %s: %w", g.key, err))
	}
	if g.history > 0 {
		g.writeHistory(ctx, data, meta)
	}
	return nil
}

func (g *Gateway) historyPrefix() string { return g.key + ".history/" }

func (g *Gateway) writeHistory(ctx context.Context, data []byte, meta map[string]string) {
	g.seq++
	name := fmt.Sprintf("%s%s-%06d.json", g.historyPrefix(), g.now().UTC().Format("20060102T150405.000000000Z"), g.seq)
	if _, err := g.store.Put(ctx, name, bytes.NewReader(data), blob.PutOptions{ContentType: contentType, Metadata: meta}); err != nil {
		g.log.Warn("history copy failed", "key", name, "error", err)
		return
	}
	infos, err := g.store.List(ctx, g.historyPrefix())
	if err != nil {
		g.log.Warn("history listing failed", "prefix", g.historyPrefix(), "error", err)
		return
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	for len(infos) > g.history {
		if _, err := g.store.Delete(ctx, infos[0].Key); err != nil {
			g.log.Warn("history prune failed", "key", infos[0].Key, "error", err)
			return
		}
		infos = infos[1:]
	}
}

// History lists retained copies, oldest first.
func (g *Gateway) History(ctx context.Context) ([]blob.Info, error) {
	infos, err := g.store.List(ctx, g.historyPrefix())
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}
