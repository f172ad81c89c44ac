package modulestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openlms/studio/internal/coursekey"
)

const SplitBackendName = "split"

// courseIndex maps a course key to its active structure version. The index
// is the only mutable row of the split backend.
type courseIndex struct {
	ID            uint   `gorm:"primaryKey"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CourseKey     string `gorm:"uniqueIndex;not null"`
	Org           string `gorm:"not null"`
	Course        string `gorm:"not null"`
	Run           string `gorm:"not null"`
	ActiveVersion string `gorm:"not null"`
	EditedBy      string
}

func (courseIndex) TableName() string {
	return "course_indexes"
}

// courseStructure is one immutable version of a course's full block set.
type courseStructure struct {
	ID              string `gorm:"primaryKey"` // version uuid
	CreatedAt       time.Time
	CourseKey       string `gorm:"index;not null"`
	Root            string `gorm:"not null"`
	Blocks          []byte `gorm:"type:jsonb"`
	EditedBy        string
	PreviousVersion string
}

func (courseStructure) TableName() string {
	return "course_structures"
}

// SplitBackend is the versioned store: every write produces a fresh
// structure version and repoints the course index at it.
type SplitBackend struct {
	db *gorm.DB
}

var _ Backend = (*SplitBackend)(nil)

func NewSplitBackend(db *gorm.DB) *SplitBackend {
	return &SplitBackend{db: db}
}

func (b *SplitBackend) InitialMigration() error {
	return b.db.AutoMigrate(&courseIndex{}, &courseStructure{})
}

func (b *SplitBackend) Name() string {
	return SplitBackendName
}

func (b *SplitBackend) HasCourse(ctx context.Context, key coursekey.Key) (bool, error) {
	var count int64
	result := b.db.WithContext(ctx).Model(&courseIndex{}).Where("course_key = ?", key.String()).Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

func (b *SplitBackend) GetCourse(ctx context.Context, key coursekey.Key) (*Course, error) {
	structure, err := b.activeStructure(ctx, key)
	if err != nil {
		return nil, err
	}

	tree, err := decodeStructure(structure)
	if err != nil {
		return nil, err
	}
	root, err := tree.RootBlock()
	if err != nil {
		return nil, err
	}

	return &Course{Key: key, DisplayName: root.DisplayName, Backend: b.Name()}, nil
}

func (b *SplitBackend) ExportCourse(ctx context.Context, key coursekey.Key) (*CourseTree, error) {
	structure, err := b.activeStructure(ctx, key)
	if err != nil {
		return nil, err
	}
	return decodeStructure(structure)
}

func (b *SplitBackend) CreateCourse(ctx context.Context, key coursekey.Key, username string, tree *CourseTree) (*Course, error) {
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

	blocks, err := json.Marshal(tree.Blocks)
	if err != nil {
		return nil, err
	}

	structure := courseStructure{
		ID:        uuid.NewString(),
		CourseKey: key.String(),
		Root:      tree.Root,
		Blocks:    blocks,
		EditedBy:  username,
	}
	index := courseIndex{
		CourseKey:     key.String(),
		Org:           key.Org,
		Course:        key.Course,
		Run:           key.Run,
		ActiveVersion: structure.ID,
		EditedBy:      username,
	}

	err = b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if result := tx.Create(&structure); result.Error != nil {
			return fmt.Errorf("writing course structure: %w", result.Error)
		}
		if result := tx.Create(&index); result.Error != nil {
			return fmt.Errorf("writing course index: %w", result.Error)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return b.GetCourse(ctx, key)
}

func (b *SplitBackend) DeleteCourse(ctx context.Context, key coursekey.Key) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&courseIndex{}, "course_key = ?", key.String())
		if result.Error != nil {
			return fmt.Errorf("deleting course index: %w", result.Error)
		}
		indexDeleted := result.RowsAffected > 0

		// orphaned structure versions are removed along with the index
		result = tx.Delete(&courseStructure{}, "course_key = ?", key.String())
		if result.Error != nil {
			return fmt.Errorf("deleting course structures: %w", result.Error)
		}

		if !indexDeleted && result.RowsAffected == 0 {
			return ErrCourseNotFound
		}
		return nil
	})
}

func (b *SplitBackend) activeStructure(ctx context.Context, key coursekey.Key) (*courseStructure, error) {
	var index courseIndex
	result := b.db.WithContext(ctx).First(&index, "course_key = ?", key.String())
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("querying course index: %w", result.Error)
	}

	var structure courseStructure
	result = b.db.WithContext(ctx).First(&structure, "id = ?", index.ActiveVersion)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("course %s index points at missing version %s", key, index.ActiveVersion)
		}
		return nil, fmt.Errorf("querying course structure: %w", result.Error)
	}

	return &structure, nil
}

func decodeStructure(structure *courseStructure) (*CourseTree, error) {
	tree := &CourseTree{Root: structure.Root}
	if err := json.Unmarshal(structure.Blocks, &tree.Blocks); err != nil {
		return nil, fmt.Errorf("decoding course structure %s: %w", structure.ID, err)
	}
	return tree, nil
}
