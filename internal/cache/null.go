package cache

import (
	"context"
	"time"
)

// NullStore is the disabled cache. It is never available and every call is a no-op.
type NullStore struct{}

func NewNullStore() *NullStore {
	return &NullStore{}
}

func (NullStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (NullStore) SetWithTTL(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (NullStore) Delete(context.Context, string) error {
	return nil
}

func (NullStore) DeleteByPrefix(context.Context, string) (int, error) {
	return 0, nil
}

func (NullStore) Available() bool {
	return false
}

func (NullStore) Ping(context.Context) error {
	return ErrUnavailable
}

func (NullStore) Close() error {
	return nil
}
