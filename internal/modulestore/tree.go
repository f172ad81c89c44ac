package modulestore

import (
	"encoding/json"
	"fmt"

	"github.com/openlms/studio/internal/coursekey"
)

// Block is one node of a course content tree. IDs are unique within a
// course; Children is ordered.
type Block struct {
	ID          string         `json:"id"`
	Category    string         `json:"category"`
	DisplayName string         `json:"display_name"`
	Fields      map[string]any `json:"fields,omitempty"`
	Children    []string       `json:"children,omitempty"`
}

// CourseTree is the backend-neutral representation of a course's content.
// Both backends import and export it, which is what makes cross-backend
// cloning possible.
type CourseTree struct {
	Root   string  `json:"root"`
	Blocks []Block `json:"blocks"`
}

// Course identifies a stored course: its key, the backend holding it and
// the display name of its root block.
type Course struct {
	Key         coursekey.Key
	DisplayName string
	Backend     string
}

func (t *CourseTree) Validate() error {
	if t.Root == "" {
		return fmt.Errorf("course tree has no root block")
	}

	seen := make(map[string]bool, len(t.Blocks))
	for _, b := range t.Blocks {
		if b.ID == "" {
			return fmt.Errorf("course tree contains a block with an empty id")
		}
		if seen[b.ID] {
			return fmt.Errorf("duplicate block id %q", b.ID)
		}
		seen[b.ID] = true
	}

	if !seen[t.Root] {
		return fmt.Errorf("root block %q not present in tree", t.Root)
	}
	for _, b := range t.Blocks {
		for _, child := range b.Children {
			if !seen[child] {
				return fmt.Errorf("block %q references unknown child %q", b.ID, child)
			}
		}
	}
	return nil
}

// RootBlock returns the root block of the tree.
func (t *CourseTree) RootBlock() (*Block, error) {
	for i := range t.Blocks {
		if t.Blocks[i].ID == t.Root {
			return &t.Blocks[i], nil
		}
	}
	return nil, fmt.Errorf("root block %q not present in tree", t.Root)
}

// Clone returns a deep copy sharing no mutable state with the receiver.
func (t *CourseTree) Clone() *CourseTree {
	copied := &CourseTree{Root: t.Root, Blocks: make([]Block, len(t.Blocks))}
	for i, b := range t.Blocks {
		nb := Block{
			ID:          b.ID,
			Category:    b.Category,
			DisplayName: b.DisplayName,
		}
		if b.Children != nil {
			nb.Children = append([]string(nil), b.Children...)
		}
		if b.Fields != nil {
			// fields hold only JSON-encodable values, round-trip them
			raw, _ := json.Marshal(b.Fields)
			_ = json.Unmarshal(raw, &nb.Fields)
		}
		copied.Blocks[i] = nb
	}
	return copied
}

// FieldOverrides carries metadata overrides applied to the destination of
// a clone. Only known keys are honored.
type FieldOverrides map[string]any

func ParseFieldOverrides(raw string) (FieldOverrides, error) {
	if raw == "" {
		return nil, nil
	}
	var fields FieldOverrides
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("parsing field overrides: %w", err)
	}
	return fields, nil
}

// Apply rewrites the root block with the supplied overrides.
func (f FieldOverrides) Apply(tree *CourseTree) error {
	if len(f) == 0 {
		return nil
	}
	root, err := tree.RootBlock()
	if err != nil {
		return err
	}
	if name, ok := f["display_name"].(string); ok {
		root.DisplayName = name
	}
	return nil
}
