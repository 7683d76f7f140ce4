package images

import (
	"context"
	"fmt"
	"sync"
)

// ImporterStub is an in-memory Importer for tests.
type ImporterStub struct {
	mu        sync.Mutex
	ImportErr error
	Imported  []string
}

func NewImporterStub() *ImporterStub {
	return &ImporterStub{}
}

func (i *ImporterStub) ImportFromUrl(ctx context.Context, imageUrl string) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.ImportErr != nil {
		return "", i.ImportErr
	}
	i.Imported = append(i.Imported, imageUrl)
	return fmt.Sprintf("/media/imported-%d.jpg", len(i.Imported)), nil
}

func (i *ImporterStub) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ImportErr = nil
	i.Imported = nil
}
