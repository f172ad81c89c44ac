// Package coursekey defines the structured identifier of a course run.
//
// The canonical serialized form is "course-v1:Org+Course+Run". Keys are
// treated as opaque by callers; only this package parses or formats them.
package coursekey

import (
	"fmt"
	"strings"
)

const (
	prefix    = "course-v1:"
	separator = "+"
)

type Key struct {
	Org    string
	Course string
	Run    string
}

func New(org, course, run string) Key {
	return Key{Org: org, Course: course, Run: run}
}

// Parse converts the canonical string form back into a Key.
func Parse(s string) (Key, error) {
	if !strings.HasPrefix(s, prefix) {
		return Key{}, fmt.Errorf("invalid course key %q: missing %q prefix", s, prefix)
	}
	parts := strings.Split(strings.TrimPrefix(s, prefix), separator)
	if len(parts) != 3 {
		return Key{}, fmt.Errorf("invalid course key %q: expected org+course+run", s)
	}
	key := Key{Org: parts[0], Course: parts[1], Run: parts[2]}
	if err := key.Validate(); err != nil {
		return Key{}, err
	}
	return key, nil
}

func (k Key) String() string {
	return prefix + k.Org + separator + k.Course + separator + k.Run
}

func (k Key) Validate() error {
	for name, v := range map[string]string{"org": k.Org, "course": k.Course, "run": k.Run} {
		if v == "" {
			return fmt.Errorf("invalid course key: empty %s", name)
		}
		if strings.Contains(v, separator) || strings.Contains(v, "/") {
			return fmt.Errorf("invalid course key: %s %q contains a reserved character", name, v)
		}
	}
	return nil
}

func (k Key) IsZero() bool {
	return k == Key{}
}
