package memory

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"paperboard/internal/apperr"
	"paperboard/internal/store"

	"github.com/google/uuid"
)

// ObjectStore keeps uploaded files in memory. BaseURL prefixes the URLs it
// hands out.
type ObjectStore struct {
	BaseURL string

	mu      sync.Mutex
	objects map[string][]byte
}

func NewObjectStore(baseURL string) *ObjectStore {
	return &ObjectStore{BaseURL: baseURL, objects: make(map[string][]byte)}
}

func (o *ObjectStore) Store(ctx context.Context, data []byte, name string) (*store.StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	id := uuid.NewString()
	o.objects[id] = append([]byte(nil), data...)
	return &store.StoredObject{
		URL:        fmt.Sprintf("%s/%s/%s", o.BaseURL, id, url.PathEscape(name)),
		ExternalID: id,
		Name:       name,
	}, nil
}

func (o *ObjectStore) Remove(ctx context.Context, externalID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.objects[externalID]; !ok {
		return fmt.Errorf("object %s: %w", externalID, apperr.ErrNotFound)
	}
	delete(o.objects, externalID)
	return nil
}

// Open returns a copy of the stored bytes.
func (o *ObjectStore) Open(ctx context.Context, externalID string) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	data, ok := o.objects[externalID]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", externalID, apperr.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

// Has reports whether externalID is currently stored.
func (o *ObjectStore) Has(externalID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.objects[externalID]
	return ok
}

func (o *ObjectStore) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.objects)
}
