package contentstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/openlms/studio/internal/coursekey"
)

// asset store used in dev and tests
type MemoryStore struct {
	lock    sync.RWMutex
	courses map[string]map[string]StaticAsset
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{courses: make(map[string]map[string]StaticAsset)}
}

func (s *MemoryStore) Put(_ context.Context, key coursekey.Key, asset StaticAsset) error {
	if asset.DisplayName == "" {
		return fmt.Errorf("asset display name must not be empty")
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	course, ok := s.courses[key.String()]
	if !ok {
		course = make(map[string]StaticAsset)
		s.courses[key.String()] = course
	}
	course[asset.DisplayName] = cloneAsset(asset)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key coursekey.Key, displayName string) (*StaticAsset, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	asset, ok := s.courses[key.String()][displayName]
	if !ok {
		return nil, fmt.Errorf("asset %q not found in %s", displayName, key)
	}
	copied := cloneAsset(asset)
	return &copied, nil
}

func (s *MemoryStore) ListForCourse(_ context.Context, key coursekey.Key) ([]StaticAsset, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	assets := []StaticAsset{}
	for _, asset := range s.courses[key.String()] {
		assets = append(assets, cloneAsset(asset))
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].DisplayName < assets[j].DisplayName })
	return assets, nil
}

func (s *MemoryStore) CopyForCourse(ctx context.Context, source, destination coursekey.Key) (int, error) {
	assets, err := s.ListForCourse(ctx, source)
	if err != nil {
		return 0, err
	}

	for _, asset := range assets {
		if err := s.Put(ctx, destination, asset); err != nil {
			return 0, err
		}
	}
	return len(assets), nil
}

func (s *MemoryStore) DeleteForCourse(_ context.Context, key coursekey.Key) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	delete(s.courses, key.String())
	return nil
}

func cloneAsset(asset StaticAsset) StaticAsset {
	data := make([]byte, len(asset.Data))
	copy(data, asset.Data)
	return StaticAsset{
		DisplayName: asset.DisplayName,
		ContentType: asset.ContentType,
		Data:        data,
	}
}
