// Package contentstore manages the static assets bound to a course run.
// Assets are addressed by their display name within a course; display names
// are preserved byte for byte, including reserved URL characters.
package contentstore

import (
	"context"

	"github.com/openlms/studio/internal/coursekey"
)

type StaticAsset struct {
	DisplayName string
	ContentType string
	Data        []byte
}

type Store interface {
	Put(ctx context.Context, key coursekey.Key, asset StaticAsset) error
	Get(ctx context.Context, key coursekey.Key, displayName string) (*StaticAsset, error)
	// ListForCourse returns every asset of the course with exact display
	// names and payloads.
	ListForCourse(ctx context.Context, key coursekey.Key) ([]StaticAsset, error)
	// CopyForCourse duplicates every asset of source under destination.
	// Source assets are never mutated.
	CopyForCourse(ctx context.Context, source, destination coursekey.Key) (int, error)
	DeleteForCourse(ctx context.Context, key coursekey.Key) error
}
