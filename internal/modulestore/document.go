package modulestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/openlms/studio/internal/coursekey"
)

const DocumentBackendName = "document"

// courseDocument is one block of a course in the legacy document backend:
// one row per block, a single implicit active version per course.
type courseDocument struct {
	ID          uint   `gorm:"primaryKey"`
	CourseKey   string `gorm:"uniqueIndex:course_documents_course_block;not null"`
	BlockID     string `gorm:"uniqueIndex:course_documents_course_block;not null"`
	Category    string `gorm:"not null"`
	DisplayName string
	Definition  []byte `gorm:"type:jsonb"`
	Children    []byte `gorm:"type:jsonb"`
	IsRoot      bool
	EditedBy    string
}

func (courseDocument) TableName() string {
	return "course_documents"
}

// DocumentBackend is the legacy store: unversioned, document per block.
type DocumentBackend struct {
	db *gorm.DB
}

var _ Backend = (*DocumentBackend)(nil)

func NewDocumentBackend(db *gorm.DB) *DocumentBackend {
	return &DocumentBackend{db: db}
}

func (b *DocumentBackend) InitialMigration() error {
	return b.db.AutoMigrate(&courseDocument{})
}

func (b *DocumentBackend) Name() string {
	return DocumentBackendName
}

func (b *DocumentBackend) HasCourse(ctx context.Context, key coursekey.Key) (bool, error) {
	var count int64
	result := b.db.WithContext(ctx).Model(&courseDocument{}).Where("course_key = ?", key.String()).Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

func (b *DocumentBackend) GetCourse(ctx context.Context, key coursekey.Key) (*Course, error) {
	var root courseDocument
	result := b.db.WithContext(ctx).First(&root, "course_key = ? AND is_root", key.String())
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("querying course documents: %w", result.Error)
	}

	return &Course{Key: key, DisplayName: root.DisplayName, Backend: b.Name()}, nil
}

func (b *DocumentBackend) ExportCourse(ctx context.Context, key coursekey.Key) (*CourseTree, error) {
	var docs []courseDocument
	result := b.db.WithContext(ctx).Order("id").Find(&docs, "course_key = ?", key.String())
	if result.Error != nil {
		return nil, fmt.Errorf("querying course documents: %w", result.Error)
	}
	if len(docs) == 0 {
		return nil, ErrCourseNotFound
	}

	tree := &CourseTree{Blocks: make([]Block, 0, len(docs))}
	for _, doc := range docs {
		block := Block{
			ID:          doc.BlockID,
			Category:    doc.Category,
			DisplayName: doc.DisplayName,
		}
		if len(doc.Definition) > 0 {
			if err := json.Unmarshal(doc.Definition, &block.Fields); err != nil {
				return nil, fmt.Errorf("decoding block %s definition: %w", doc.BlockID, err)
			}
		}
		if len(doc.Children) > 0 {
			if err := json.Unmarshal(doc.Children, &block.Children); err != nil {
				return nil, fmt.Errorf("decoding block %s children: %w", doc.BlockID, err)
			}
		}
		if doc.IsRoot {
			tree.Root = doc.BlockID
		}
		tree.Blocks = append(tree.Blocks, block)
	}

	if err := tree.Validate(); err != nil {
		return nil, fmt.Errorf("exported course %s is inconsistent: %w", key, err)
	}
	return tree, nil
}

func (b *DocumentBackend) CreateCourse(ctx context.Context, key coursekey.Key, username string, tree *CourseTree) (*Course, error) {
	if err := tree.Validate(); err != nil {
		return nil, err
	}

	exists, err := b.HasCourse(ctx, key)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateCourse
	}

	docs := make([]courseDocument, 0, len(tree.Blocks))
	for _, block := range tree.Blocks {
		doc := courseDocument{
			CourseKey:   key.String(),
			BlockID:     block.ID,
			Category:    block.Category,
			DisplayName: block.DisplayName,
			IsRoot:      block.ID == tree.Root,
			EditedBy:    username,
		}
		if block.Fields != nil {
			if doc.Definition, err = json.Marshal(block.Fields); err != nil {
				return nil, err
			}
		}
		if block.Children != nil {
			if doc.Children, err = json.Marshal(block.Children); err != nil {
				return nil, err
			}
		}
		docs = append(docs, doc)
	}

	if result := b.db.WithContext(ctx).Create(&docs); result.Error != nil {
		return nil, fmt.Errorf("writing course documents: %w", result.Error)
	}

	return b.GetCourse(ctx, key)
}

func (b *DocumentBackend) DeleteCourse(ctx context.Context, key coursekey.Key) error {
	result := b.db.WithContext(ctx).Delete(&courseDocument{}, "course_key = ?", key.String())
	if result.Error != nil {
		return fmt.Errorf("deleting course documents: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrCourseNotFound
	}
	return nil
}
