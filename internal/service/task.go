package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dukerupert/frisfocus/internal/model"
	"github.com/dukerupert/frisfocus/internal/store"
)

// DefaultTaskValue replaces missing or non-positive task values.
const DefaultTaskValue = 10

func normalizeTask(in store.TaskInput) (store.TaskInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return in, invalid("name", "is required")
	}
	if in.Value <= 0 {
		in.Value = DefaultTaskValue
	}
	switch in.TaskType {
	case "":
		in.TaskType = model.TaskTypePerPerson
	case model.TaskTypePerPerson, model.TaskTypeCircleTask:
	default:
		return in, invalid("task_type", "must be per_person or circle_task")
	}
	in.Category = strings.TrimSpace(in.Category)
	return in, nil
}

type taskKind struct{}

func (taskKind) exists(ctx context.Context, st *store.Stores, circleID, id int64) (bool, error) {
	t, err := st.Tasks.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return t != nil && t.CircleID == circleID, nil
}

func (taskKind) add(ctx context.Context, st *store.Stores, a addition, payload json.RawMessage) (int64, error) {
	var in store.TaskInput
	if err := decodePayload(payload, &in); err != nil {
		return 0, err
	}
	in, err := normalizeTask(in)
	if err != nil {
		return 0, err
	}
	t, err := st.Tasks.Create(ctx, a.circleID, a.actorID, in, a.queued)
	if err != nil {
		return 0, err
	}
	return t.ID, nil
}

func (taskKind) edit(ctx context.Context, st *store.Stores, id int64, payload json.RawMessage) error {
	var in store.TaskInput
	if err := decodePayload(payload, &in); err != nil {
		return err
	}
	in, err := normalizeTask(in)
	if err != nil {
		return err
	}
	// A circle task has at most one completion per day, so a per-person task
	// that several members finished on one day cannot become one.
	if in.TaskType == model.TaskTypeCircleTask {
		shared, err := st.Completions.SharedDays(ctx, id)
		if err != nil {
			return err
		}
		if shared > 0 {
			return fmt.Errorf("%w: task was completed by several members on %d day(s)", ErrStateConflict, shared)
		}
	}
	t, err := st.Tasks.Update(ctx, id, in)
	if err != nil {
		return err
	}
	return st.Completions.SetExclusive(ctx, id, t.Exclusive())
}

func (taskKind) remove(ctx context.Context, st *store.Stores, id int64) error {
	return st.Tasks.Delete(ctx, id)
}

// ListTasks returns the circle's approved tasks.
func (s *Service) ListTasks(ctx context.Context, circleID, viewerID int64) ([]model.CircleTask, error) {
	st := s.stores()
	if _, err := member(ctx, st, circleID, viewerID); err != nil {
		return nil, err
	}
	return st.Tasks.ListByCircle(ctx, circleID)
}

// AddTask creates a task, or queues the addition when the actor is a plain
// member.
func (s *Service) AddTask(ctx context.Context, circleID, actorID int64, in store.TaskInput) (Outcome[model.CircleTask], error) {
	in, err := normalizeTask(in)
	if err != nil {
		return Outcome[model.CircleTask]{}, err
	}
	return s.mutateTask(ctx, mutation{circleID: circleID, actorID: actorID, kind: model.RequestKindTask, action: model.RequestAdd, payload: in})
}

func (s *Service) EditTask(ctx context.Context, circleID, actorID, taskID int64, in store.TaskInput) (Outcome[model.CircleTask], error) {
	in, err := normalizeTask(in)
	if err != nil {
		return Outcome[model.CircleTask]{}, err
	}
	return s.mutateTask(ctx, mutation{circleID: circleID, actorID: actorID, kind: model.RequestKindTask, action: model.RequestEdit, targetID: taskID, payload: in})
}

// DeleteTask removes a task and, through the schema, its completions.
func (s *Service) DeleteTask(ctx context.Context, circleID, actorID, taskID int64) (Outcome[model.CircleTask], error) {
	return s.mutateTask(ctx, mutation{circleID: circleID, actorID: actorID, kind: model.RequestKindTask, action: model.RequestDelete, targetID: taskID})
}

func (s *Service) mutateTask(ctx context.Context, m mutation) (Outcome[model.CircleTask], error) {
	var out Outcome[model.CircleTask]
	err := s.tx(ctx, func(st *store.Stores) error {
		id, req, err := s.submit(ctx, st, m)
		if err != nil {
			return err
		}
		out.Request = req
		if req == nil && m.action != model.RequestDelete {
			out.Item, err = st.Tasks.GetByID(ctx, id)
		}
		return err
	})
	if err != nil {
		return Outcome[model.CircleTask]{}, err
	}
	if out.Pending() {
		s.events.BroadcastCircle(m.circleID, "request", "created", out.Request.ID, map[string]any{"kind": m.kind})
		return out, nil
	}
	s.afterEntityChange(ctx, m.circleID, m.kind)
	return out, nil
}
