package service

import (
	"context"
	"errors"
	"time"

	"github.com/dukerupert/frisfocus/internal/objectacl"
)

func (s *Service) objectKey(circleID int64, path string) (string, error) {
	if s.objects == nil {
		return "", notFound("object storage")
	}
	key, err := objectacl.Key(circleID, path)
	if err != nil {
		return "", invalid("path", "must be a relative path inside the circle")
	}
	return key, nil
}

func objectErr(err error) error {
	if errors.Is(err, objectacl.ErrNotFound) {
		return notFound("object")
	}
	return err
}

// GetObjectACL returns the visibility of a stored circle object. Private
// objects are visible to managers only.
func (s *Service) GetObjectACL(ctx context.Context, circleID, viewerID int64, path string) (*objectacl.ACL, error) {
	m, err := member(ctx, s.stores(), circleID, viewerID)
	if err != nil {
		return nil, err
	}
	key, err := s.objectKey(circleID, path)
	if err != nil {
		return nil, err
	}
	acl, err := s.objects.Get(ctx, key)
	if err != nil {
		return nil, objectErr(err)
	}
	if acl.CircleID != 0 && acl.CircleID != circleID {
		return nil, notFound("object")
	}
	if acl.Visibility == objectacl.Private && !m.CanManage() {
		return nil, ErrPermissionDenied
	}
	return acl, nil
}

// SetObjectACL changes the visibility of a stored circle object.
func (s *Service) SetObjectACL(ctx context.Context, circleID, actorID int64, path string, vis objectacl.Visibility) (*objectacl.ACL, error) {
	if _, err := manager(ctx, s.stores(), circleID, actorID); err != nil {
		return nil, err
	}
	if !vis.Valid() {
		return nil, invalid("visibility", "must be private, circle or public")
	}
	key, err := s.objectKey(circleID, path)
	if err != nil {
		return nil, err
	}

	acl := objectacl.ACL{
		Key:        key,
		CircleID:   circleID,
		Visibility: vis,
		UpdatedBy:  actorID,
		UpdatedAt:  s.clock.Now().UTC().Truncate(time.Second),
	}
	if err := s.objects.Set(ctx, key, acl); err != nil {
		return nil, objectErr(err)
	}
	s.events.BroadcastCircle(circleID, "object", "acl_updated", 0, map[string]any{
		"key":        key,
		"visibility": string(vis),
	})
	return &acl, nil
}
