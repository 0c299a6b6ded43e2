package domain

import "context"

// Gateway loads and saves the whole dataset as one document. Implementations
// must return NewDocument when nothing has been stored yet and must make Save
// atomic: either the full document is durable or the previous one remains.
type Gateway interface {
	Load(ctx context.Context) (Document, error)
	Save(ctx context.Context, doc Document) error
}
