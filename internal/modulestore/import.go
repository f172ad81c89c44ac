package modulestore

import (
	"context"
	"encoding/json"
	"mime"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/openlms/studio/internal/contentstore"
	"github.com/openlms/studio/internal/coursekey"
)

const (
	courseTreeFile  = "course.json"
	staticAssetsDir = "static"
)

// ImportCourse loads a course from its on-disk representation into the
// default backend and the asset store. The directory holds course.json
// (the content tree) and an optional static/ directory whose file names
// are the asset display names.
func (s *MixedStore) ImportCourse(ctx context.Context, key coursekey.Key, username string, dir string) (*Course, error) {
	raw, err := os.ReadFile(filepath.Join(dir, courseTreeFile))
	if err != nil {
		return nil, errors.Wrap(err, "reading course tree")
	}

	var tree CourseTree
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", courseTreeFile)
	}

	course, err := s.defaultBackend.CreateCourse(ctx, key, username, &tree)
	if err != nil {
		return nil, err
	}

	if err := s.importStaticAssets(ctx, key, filepath.Join(dir, staticAssetsDir)); err != nil {
		return nil, err
	}

	return course, nil
}

func (s *MixedStore) importStaticAssets(ctx context.Context, key coursekey.Key, dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "reading static assets")
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return errors.Wrapf(err, "reading asset %s", entry.Name())
		}

		asset := contentstore.StaticAsset{
			DisplayName: entry.Name(),
			ContentType: mime.TypeByExtension(filepath.Ext(entry.Name())),
			Data:        data,
		}
		if err := s.assets.Put(ctx, key, asset); err != nil {
			return errors.Wrapf(err, "storing asset %s", entry.Name())
		}
	}

	return nil
}
