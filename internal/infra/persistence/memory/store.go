// Package memory provides an in-process persistence gateway used for tests and
// ephemeral deployments.
package memory

import (
	"context"
	"sync"

	"medtracker/pkg/domain"
)

var _ domain.Gateway = (*Gateway)(nil)

// Gateway keeps the last saved document in memory. Failures can be injected
// to exercise error paths in callers.
type Gateway struct {
	mu      sync.Mutex
	doc     *domain.Document
	saves   int
	loadErr error
	saveErr error
}

// New returns a gateway with nothing stored.
func New() *Gateway { return &Gateway{} }

// NewWithDocument returns a gateway preloaded with a copy of doc.
func NewWithDocument(doc domain.Document) *Gateway {
	cp := doc.Clone()
	return &Gateway{doc: &cp}
}

// Load returns a copy of the stored document, or an empty one.
func (g *Gateway) Load(ctx context.Context) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, domain.WrapPersistence("load", err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loadErr != nil {
		return domain.Document{}, domain.WrapPersistence("load", g.loadErr)
	}
	if g.doc == nil {
		return domain.NewDocument(), nil
	}
	doc, err := g.doc.Normalize()
	if err != nil {
		return domain.Document{}, domain.WrapPersistence("load", err)
	}
	return doc.Clone(), nil
}

// Save replaces the stored document with a copy of doc.
func (g *Gateway) Save(ctx context.Context, doc domain.Document) error {
	if err := ctx.Err(); err != nil {
		return domain.WrapPersistence("save", err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.saveErr != nil {
		return domain.WrapPersistence("save", g.saveErr)
	}
	cp := doc.Clone()
	g.doc = &cp
	g.saves++
	return nil
}

// FailLoad makes subsequent loads return err. A nil err clears the failure.
func (g *Gateway) FailLoad(err error) {
	g.mu.Lock()
	g.loadErr = err
	g.mu.Unlock()
}

// FailSave makes subsequent saves return err. A nil err clears the failure.
func (g *Gateway) FailSave(err error) {
	g.mu.Lock()
	g.saveErr = err
	g.mu.Unlock()
}

// Saves reports how many saves succeeded.
func (g *Gateway) Saves() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.saves
}

// Stored returns a copy of the last saved document and whether one exists.
func (g *Gateway) Stored() (domain.Document, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.doc == nil {
		return domain.Document{}, false
	}
	return g.doc.Clone(), true
}
