package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/frisfocus/internal/model"
	"github.com/dukerupert/frisfocus/internal/store"
)

// Outcome is the result of a mutation that owners and admins apply directly
// and other members submit for review. Exactly one field is set.
type Outcome[T any] struct {
	Item    *T                     `json:"item,omitempty"`
	Request *model.ApprovalRequest `json:"request,omitempty"`
}

// Pending reports whether the mutation was queued instead of applied.
func (o Outcome[T]) Pending() bool {
	return o.Request != nil
}

// entityKind applies queued or direct mutations for one kind of circle
// entity. Payloads are the JSON form of the kind's store input.
type entityKind interface {
	exists(ctx context.Context, st *store.Stores, circleID, id int64) (bool, error)
	add(ctx context.Context, st *store.Stores, a addition, payload json.RawMessage) (int64, error)
	edit(ctx context.Context, st *store.Stores, id int64, payload json.RawMessage) error
	remove(ctx context.Context, st *store.Stores, id int64) error
}

var entityKinds = map[string]entityKind{
	model.RequestKindTask:  taskKind{},
	model.RequestKindBadge: badgeKind{},
	model.RequestKindAward: awardKind{},
}

// addition describes who creates an entity and when. queued is set when the
// creation went through the approval queue.
type addition struct {
	circleID int64
	actorID  int64
	queued   bool
	now      time.Time
}

// mutation is one add, edit or delete of a circle entity.
type mutation struct {
	circleID int64
	actorID  int64
	kind     string
	action   string
	targetID int64
	payload  any
}

// submit applies m directly when the actor manages the circle and queues it
// as an ApprovalRequest otherwise. It returns the affected entity id when
// applied, or the pending request.
func (s *Service) submit(ctx context.Context, st *store.Stores, m mutation) (int64, *model.ApprovalRequest, error) {
	k, ok := entityKinds[m.kind]
	if !ok {
		return 0, nil, fmt.Errorf("unknown entity kind %q", m.kind)
	}
	actor, err := member(ctx, st, m.circleID, m.actorID)
	if err != nil {
		return 0, nil, err
	}

	var target *int64
	if m.action != model.RequestAdd {
		found, err := k.exists(ctx, st, m.circleID, m.targetID)
		if err != nil {
			return 0, nil, err
		}
		if !found {
			return 0, nil, notFound(m.kind)
		}
		target = &m.targetID
	}

	if !actor.CanManage() {
		req, err := st.Requests.Create(ctx, m.circleID, m.actorID, m.kind, m.action, target, m.payload)
		if err != nil {
			return 0, nil, err
		}
		return 0, req, nil
	}

	var raw json.RawMessage
	if m.payload != nil {
		raw, err = json.Marshal(m.payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal %s payload: %w", m.kind, err)
		}
	}
	id, err := apply(ctx, st, k, addition{circleID: m.circleID, actorID: m.actorID, now: s.clock.Now()}, m.action, m.targetID, raw)
	return id, nil, err
}

func apply(ctx context.Context, st *store.Stores, k entityKind, a addition, action string, targetID int64, payload json.RawMessage) (int64, error) {
	switch action {
	case model.RequestAdd:
		return k.add(ctx, st, a, payload)
	case model.RequestEdit:
		return targetID, k.edit(ctx, st, targetID, payload)
	case model.RequestDelete:
		return targetID, k.remove(ctx, st, targetID)
	}
	return 0, fmt.Errorf("unknown action %q", action)
}

// ListRequests returns a circle's approval requests. An empty status lists
// every request.
func (s *Service) ListRequests(ctx context.Context, circleID, viewerID int64, status string) ([]model.ApprovalRequest, error) {
	switch status {
	case "", model.ApprovalPending, model.ApprovalApproved, model.ApprovalRejected:
	default:
		return nil, invalid("status", "must be pending, approved or rejected")
	}
	st := s.stores()
	if _, err := member(ctx, st, circleID, viewerID); err != nil {
		return nil, err
	}
	return st.Requests.ListByCircle(ctx, circleID, "", status)
}

// ApproveRequest applies a pending request and marks it approved in the same
// transaction. If applying fails the request stays pending.
func (s *Service) ApproveRequest(ctx context.Context, circleID, requestID, reviewerID int64) (*model.ApprovalRequest, error) {
	return s.resolveRequest(ctx, circleID, requestID, reviewerID, true)
}

// RejectRequest marks a pending request rejected without applying it.
func (s *Service) RejectRequest(ctx context.Context, circleID, requestID, reviewerID int64) (*model.ApprovalRequest, error) {
	return s.resolveRequest(ctx, circleID, requestID, reviewerID, false)
}

func (s *Service) resolveRequest(ctx context.Context, circleID, requestID, reviewerID int64, approve bool) (*model.ApprovalRequest, error) {
	var req *model.ApprovalRequest
	err := s.tx(ctx, func(st *store.Stores) error {
		if _, err := manager(ctx, st, circleID, reviewerID); err != nil {
			return err
		}
		var err error
		req, err = st.Requests.GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		if req == nil || req.CircleID != circleID {
			return notFound("request")
		}
		if req.Status != model.ApprovalPending {
			return ErrStateConflict
		}

		status := model.ApprovalRejected
		if approve {
			status = model.ApprovalApproved
			k, ok := entityKinds[req.Kind]
			if !ok {
				return fmt.Errorf("unknown entity kind %q", req.Kind)
			}
			var target int64
			if req.TargetID != nil {
				target = *req.TargetID
				found, err := k.exists(ctx, st, circleID, target)
				if err != nil {
					return err
				}
				if !found {
					return notFound(req.Kind)
				}
			}
			a := addition{circleID: circleID, actorID: req.RequesterID, queued: true, now: s.clock.Now()}
			if _, err := apply(ctx, st, k, a, req.Action, target, req.Payload); err != nil {
				return err
			}
		}

		ok, err := st.Requests.Resolve(ctx, requestID, status, reviewerID, s.clock.Now())
		if err != nil {
			return err
		}
		if !ok {
			return ErrStateConflict
		}
		req, err = st.Requests.GetByID(ctx, requestID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if approve {
		s.afterEntityChange(ctx, circleID, req.Kind)
	}
	s.events.BroadcastCircle(circleID, "request", req.Status, req.ID, map[string]any{"kind": req.Kind, "action": req.Action})
	return req, nil
}

// afterEntityChange refreshes derived state once a mutation is committed.
// Task values feed every total, so task changes also re-resolve
// competitions.
func (s *Service) afterEntityChange(ctx context.Context, circleID int64, kind string) {
	if kind == model.RequestKindTask {
		s.afterLedgerChange(ctx, circleID)
	}
	s.events.BroadcastCircle(circleID, kind, "changed", 0, nil)
}

func decodePayload(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return invalid("payload", "is required")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return invalid("payload", err.Error())
	}
	return nil
}
