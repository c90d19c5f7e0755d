package domain

import "context"

type Service interface {
	Summary(ctx context.Context) (Summary, error)
}

// Cache stores a computed summary under a key. A miss is (nil, nil).
type Cache interface {
	Get(ctx context.Context, key string) (*Summary, error)
	Set(ctx context.Context, key string, summary Summary) error
}
