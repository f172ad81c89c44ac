// Package modulestore stores course content trees across heterogeneous
// backends and exposes a uniform clone operation over them.
package modulestore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/openlms/studio/internal/contentstore"
	"github.com/openlms/studio/internal/coursekey"
)

// Backend is one course content store. Implementations: DocumentBackend
// (legacy, unversioned) and SplitBackend (versioned).
type Backend interface {
	Name() string
	HasCourse(ctx context.Context, key coursekey.Key) (bool, error)
	GetCourse(ctx context.Context, key coursekey.Key) (*Course, error)
	ExportCourse(ctx context.Context, key coursekey.Key) (*CourseTree, error)
	CreateCourse(ctx context.Context, key coursekey.Key, username string, tree *CourseTree) (*Course, error)
	DeleteCourse(ctx context.Context, key coursekey.Key) error
	InitialMigration() error
}

// MixedStore fronts every configured backend plus the asset store. New
// courses land in the default backend; lookups resolve whichever backend
// holds the key, so a clone may cross backends.
type MixedStore struct {
	backends       []Backend
	defaultBackend Backend
	assets         contentstore.Store
}

func NewMixedStore(assets contentstore.Store, defaultName string, backends ...Backend) (*MixedStore, error) {
	store := &MixedStore{assets: assets, backends: backends}
	for _, b := range backends {
		if b.Name() == defaultName {
			store.defaultBackend = b
		}
	}
	if store.defaultBackend == nil {
		return nil, fmt.Errorf("unknown default course backend %q", defaultName)
	}
	return store, nil
}

func (s *MixedStore) InitialMigration() error {
	for _, b := range s.backends {
		if err := b.InitialMigration(); err != nil {
			return err
		}
	}
	return nil
}

func (s *MixedStore) Assets() contentstore.Store {
	return s.assets
}

// BackendFor resolves the backend holding the given course key.
func (s *MixedStore) BackendFor(ctx context.Context, key coursekey.Key) (Backend, error) {
	for _, b := range s.backends {
		found, err := b.HasCourse(ctx, key)
		if err != nil {
			return nil, err
		}
		if found {
			return b, nil
		}
	}
	return nil, ErrCourseNotFound
}

func (s *MixedStore) HasCourse(ctx context.Context, key coursekey.Key) (bool, error) {
	_, err := s.BackendFor(ctx, key)
	if err == ErrCourseNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *MixedStore) GetCourse(ctx context.Context, key coursekey.Key) (*Course, error) {
	backend, err := s.BackendFor(ctx, key)
	if err != nil {
		return nil, err
	}
	return backend.GetCourse(ctx, key)
}

func (s *MixedStore) ExportCourse(ctx context.Context, key coursekey.Key) (*CourseTree, error) {
	backend, err := s.BackendFor(ctx, key)
	if err != nil {
		return nil, err
	}
	return backend.ExportCourse(ctx, key)
}

// DeleteCourse removes the course's content tree and all of its assets.
func (s *MixedStore) DeleteCourse(ctx context.Context, key coursekey.Key) error {
	backend, err := s.BackendFor(ctx, key)
	if err != nil {
		return err
	}
	if err := backend.DeleteCourse(ctx, key); err != nil {
		return err
	}
	return s.assets.DeleteForCourse(ctx, key)
}

// CloneCourse deep-copies source's content tree and assets under the
// destination key. The destination lands in the default backend regardless
// of where the source lives. The source is never mutated. No cleanup is
// performed on failure; that is the caller's responsibility.
func (s *MixedStore) CloneCourse(ctx context.Context, source, destination coursekey.Key, username string, fields FieldOverrides) (*Course, error) {
	srcBackend, err := s.BackendFor(ctx, source)
	if err != nil {
		return nil, err
	}

	// refuse destinations existing in ANY backend, not just the default one
	if exists, err := s.HasCourse(ctx, destination); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrDuplicateCourse
	}

	tree, err := srcBackend.ExportCourse(ctx, source)
	if err != nil {
		return nil, err
	}

	cloned := tree.Clone()
	if err := fields.Apply(cloned); err != nil {
		return nil, err
	}

	course, err := s.defaultBackend.CreateCourse(ctx, destination, username, cloned)
	if err != nil {
		return nil, err
	}

	copied, err := s.assets.CopyForCourse(ctx, source, destination)
	if err != nil {
		return nil, fmt.Errorf("copying course assets: %w", err)
	}

	zap.S().Named("modulestore").Infow("course cloned",
		"source", source.String(),
		"destination", destination.String(),
		"source_backend", srcBackend.Name(),
		"destination_backend", s.defaultBackend.Name(),
		"blocks", len(cloned.Blocks),
		"assets", copied,
	)

	return course, nil
}
