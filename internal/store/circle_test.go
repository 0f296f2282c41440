package store

import (
	"context"
	"errors"
	"testing"

	"github.com/dukerupert/frisfocus/internal/model"
)

func TestCircleCreateAddsOwner(t *testing.T) {
	_, st := setupTestDB(t)
	ctx := context.Background()
	owner := createUser(t, st, "owner@example.com", "Olivia")

	goal := 50
	c, err := st.Circles.Create(ctx, owner.ID, CircleInput{Name: "Williams Household", IconColor: "#10B981", WeeklyPointGoal: &goal})
	if err != nil {
		t.Fatalf("create circle: %v", err)
	}
	if c.MemberCount != 1 || c.CreatedBy != owner.ID {
		t.Errorf("circle = %+v, want one member created by owner", c)
	}
	if c.WeeklyPointGoal == nil || *c.WeeklyPointGoal != 50 || c.DailyPointGoal != nil {
		t.Errorf("goals = %v/%v, want nil/50", c.DailyPointGoal, c.WeeklyPointGoal)
	}

	m, err := st.Circles.GetMember(ctx, c.ID, owner.ID)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if m == nil || m.Role != model.RoleOwner || m.Name() != "Olivia" {
		t.Errorf("member = %+v, want owner Olivia", m)
	}

	n, err := st.Circles.CountOwners(ctx, c.ID)
	if err != nil {
		t.Fatalf("count owners: %v", err)
	}
	if n != 1 {
		t.Errorf("owners = %d, want 1", n)
	}
}

func TestCircleSingleOwnerIndex(t *testing.T) {
	_, st := setupTestDB(t)
	ctx := context.Background()
	owner := createUser(t, st, "owner@example.com", "Olivia")
	other := createUser(t, st, "other@example.com", "Oscar")
	c := createCircle(t, st, owner.ID, "Williams Household")

	if _, err := st.Circles.AddMember(ctx, c.ID, other.ID, model.RoleMember); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if _, err := st.Circles.AddMember(ctx, c.ID, other.ID, model.RoleMember); !errors.Is(err, ErrDuplicate) {
		t.Errorf("repeat add err = %v, want ErrDuplicate", err)
	}
	if err := st.Circles.UpdateMemberRole(ctx, c.ID, other.ID, model.RoleOwner); !errors.Is(err, ErrDuplicate) {
		t.Errorf("second owner err = %v, want ErrDuplicate", err)
	}
	if err := st.Circles.UpdateMemberRole(ctx, c.ID, other.ID, model.RoleAdmin); err != nil {
		t.Fatalf("promote to admin: %v", err)
	}

	managers, err := st.Circles.ListManagers(ctx, c.ID)
	if err != nil {
		t.Fatalf("list managers: %v", err)
	}
	if len(managers) != 2 {
		t.Errorf("managers = %d, want 2", len(managers))
	}

	if err := st.Circles.RemoveMember(ctx, c.ID, other.ID); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	members, err := st.Circles.ListMembers(ctx, c.ID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 1 || members[0].UserID != owner.ID {
		t.Errorf("members = %+v, want owner only", members)
	}
}

func TestCircleInviteCode(t *testing.T) {
	_, st := setupTestDB(t)
	ctx := context.Background()
	owner := createUser(t, st, "owner@example.com", "Olivia")
	a := createCircle(t, st, owner.ID, "Home")
	b := createCircle(t, st, owner.ID, "Office")

	if err := st.Circles.SetInviteCode(ctx, a.ID, "ABCD2345"); err != nil {
		t.Fatalf("set code: %v", err)
	}
	if err := st.Circles.SetInviteCode(ctx, b.ID, "ABCD2345"); !errors.Is(err, ErrDuplicate) {
		t.Errorf("colliding code err = %v, want ErrDuplicate", err)
	}

	got, err := st.Circles.GetByInviteCode(ctx, "ABCD2345")
	if err != nil {
		t.Fatalf("get by code: %v", err)
	}
	if got == nil || got.ID != a.ID {
		t.Errorf("get by code = %+v, want circle %d", got, a.ID)
	}
	if got, _ := st.Circles.GetByInviteCode(ctx, "ZZZZZZZZ"); got != nil {
		t.Error("expected nil for unknown code")
	}

	circles, err := st.Circles.ListByUser(ctx, owner.ID)
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(circles) != 2 {
		t.Errorf("circles = %d, want 2", len(circles))
	}
	ids, err := st.Circles.ListIDs(ctx)
	if err != nil {
		t.Fatalf("list ids: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("ids = %v, want 2", ids)
	}
}
