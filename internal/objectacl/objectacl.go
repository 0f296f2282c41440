// Package objectacl keeps access metadata on stored circle objects such as
// icons and avatars. The object bytes live in GCS or S3; this package only
// reads and writes the visibility recorded on them.
package objectacl

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotFound          = errors.New("object not found")
	ErrInvalidPath       = errors.New("invalid object path")
	ErrInvalidVisibility = errors.New("invalid visibility")
)

type Visibility string

const (
	// Private objects are readable by circle managers only.
	Private Visibility = "private"
	// Circle objects are readable by every circle member.
	Circle Visibility = "circle"
	// Public objects are world-readable.
	Public Visibility = "public"
)

func (v Visibility) Valid() bool {
	return v == Private || v == Circle || v == Public
}

// ACL is the access metadata of one object.
type ACL struct {
	Key        string     `json:"key"`
	CircleID   int64      `json:"circle_id"`
	Visibility Visibility `json:"visibility"`
	UpdatedBy  int64      `json:"updated_by,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at,omitempty"`
}

// Store reads and writes ACL metadata on stored objects.
type Store interface {
	Get(ctx context.Context, key string) (*ACL, error)
	Set(ctx context.Context, key string, acl ACL) error
}

const (
	metaVisibility = "frisfocus-visibility"
	metaCircle     = "frisfocus-circle"
	metaUpdatedBy  = "frisfocus-updated-by"
	metaUpdatedAt  = "frisfocus-updated-at"
)

// Key returns the object key of path inside a circle's prefix.
func Key(circleID int64, p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return "", ErrInvalidPath
	}
	clean := path.Clean(p)
	if clean != p || clean == "." || strings.HasPrefix(clean, "../") || clean == ".." {
		return "", ErrInvalidPath
	}
	return fmt.Sprintf("circles/%d/%s", circleID, clean), nil
}

func toMetadata(acl ACL) map[string]string {
	md := map[string]string{
		metaVisibility: string(acl.Visibility),
		metaCircle:     strconv.FormatInt(acl.CircleID, 10),
	}
	if acl.UpdatedBy != 0 {
		md[metaUpdatedBy] = strconv.FormatInt(acl.UpdatedBy, 10)
	}
	if !acl.UpdatedAt.IsZero() {
		md[metaUpdatedAt] = acl.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return md
}

// fromMetadata reads an ACL back. Objects without metadata are private.
func fromMetadata(key string, md map[string]string) *ACL {
	acl := &ACL{Key: key, Visibility: Private}
	for k, v := range md {
		switch strings.ToLower(k) {
		case metaVisibility:
			if vis := Visibility(v); vis.Valid() {
				acl.Visibility = vis
			}
		case metaCircle:
			acl.CircleID, _ = strconv.ParseInt(v, 10, 64)
		case metaUpdatedBy:
			acl.UpdatedBy, _ = strconv.ParseInt(v, 10, 64)
		case metaUpdatedAt:
			acl.UpdatedAt, _ = time.Parse(time.RFC3339, v)
		}
	}
	return acl
}

// mergeMetadata overlays ACL keys on existing metadata, dropping stale ACL keys.
func mergeMetadata(existing map[string]string, acl ACL) map[string]string {
	out := make(map[string]string, len(existing)+4)
	for k, v := range existing {
		if !strings.HasPrefix(strings.ToLower(k), "frisfocus-") {
			out[k] = v
		}
	}
	for k, v := range toMetadata(acl) {
		out[k] = v
	}
	return out
}

// Memory is an in-process Store. Objects must be created with Put before
// their ACL can be set.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]map[string]string
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]map[string]string)}
}

// Put registers an object with no metadata.
func (m *Memory) Put(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		m.objects[key] = map[string]string{}
	}
}

func (m *Memory) Get(_ context.Context, key string) (*ACL, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	md, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return fromMetadata(key, md), nil
}

func (m *Memory) Set(_ context.Context, key string, acl ACL) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	md, ok := m.objects[key]
	if !ok {
		return ErrNotFound
	}
	m.objects[key] = mergeMetadata(md, acl)
	return nil
}
