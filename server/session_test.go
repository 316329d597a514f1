package server

import (
	"errors"
	"testing"
	"time"
)

// TestCreateGet verifies a fresh session starts empty
func TestCreateGet(t *testing.T) {
	store := NewSessions()

	id := store.Create()
	if id == "" {
		t.Fatal("Create returned an empty id")
	}

	sess, ok := store.Get(id)
	if !ok {
		t.Fatalf("Get(%s) returned absence for a just-created session", id)
	}

	if sess.SharerLocation != nil || sess.ViewerLocation != nil {
		t.Error("new session has non-nil locations")
	}
	if sess.SharerConn != "" || sess.ViewerConn != "" {
		t.Error("new session has bound connections")
	}
	if sess.Created.IsZero() {
		t.Error("new session has zero creation time")
	}
}

func TestGetUnknown(t *testing.T) {
	store := NewSessions()
	if _, ok := store.Get("nope"); ok {
		t.Error("Get returned a session for an unknown id")
	}
}

// TestBindUnknownSession verifies a bind against a missing session reports
// the error and mutates nothing
func TestBindUnknownSession(t *testing.T) {
	store := NewSessions()

	if err := store.Bind("missing", RoleSharer, "conn-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Bind on unknown session: got %v, want ErrSessionNotFound", err)
	}
	if store.Len() != 0 {
		t.Errorf("store has %d sessions after failed bind, want 0", store.Len())
	}
}

func TestSetLocationUnknownSession(t *testing.T) {
	store := NewSessions()

	loc := &Location{Latitude: 51.5, Longitude: -0.12}
	if err := store.SetLocation("missing", RoleViewer, loc); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("SetLocation on unknown session: got %v, want ErrSessionNotFound", err)
	}
	if store.Len() != 0 {
		t.Errorf("store has %d sessions after failed update, want 0", store.Len())
	}
}

// TestUnbindClearsOnlyDepartingRole verifies the disconnecting side loses its
// binding and location while the peer keeps both
func TestUnbindClearsOnlyDepartingRole(t *testing.T) {
	store := NewSessions()
	id := store.Create()

	store.Bind(id, RoleSharer, "conn-s")
	store.Bind(id, RoleViewer, "conn-v")
	store.SetLocation(id, RoleSharer, &Location{Latitude: 1, Longitude: 2})
	store.SetLocation(id, RoleViewer, &Location{Latitude: 3, Longitude: 4})

	deleted := store.Unbind("conn-s")
	if len(deleted) != 0 {
		t.Errorf("session deleted while viewer still bound: %v", deleted)
	}

	sess, ok := store.Get(id)
	if !ok {
		t.Fatal("session gone after single disconnect")
	}
	if sess.SharerConn != "" || sess.SharerLocation != nil {
		t.Error("sharer binding or location survived the sharer's disconnect")
	}
	if sess.ViewerConn != "conn-v" {
		t.Errorf("viewer binding changed: got %q, want conn-v", sess.ViewerConn)
	}
	if sess.ViewerLocation == nil || sess.ViewerLocation.Latitude != 3 {
		t.Error("viewer location was cleared by the sharer's disconnect")
	}
}

// TestMutualUnbindDeletesSession verifies the session disappears once both
// connections are gone, in either order
func TestMutualUnbindDeletesSession(t *testing.T) {
	orders := [][]string{
		{"conn-s", "conn-v"},
		{"conn-v", "conn-s"},
	}

	for _, order := range orders {
		store := NewSessions()
		id := store.Create()
		store.Bind(id, RoleSharer, "conn-s")
		store.Bind(id, RoleViewer, "conn-v")

		store.Unbind(order[0])
		deleted := store.Unbind(order[1])

		if len(deleted) != 1 || deleted[0] != id {
			t.Errorf("disconnect order %v: deleted %v, want [%s]", order, deleted, id)
		}
		if _, ok := store.Get(id); ok {
			t.Errorf("disconnect order %v: session still exists", order)
		}
	}
}

// TestUnbindIdempotent verifies repeated or unknown unbinds are harmless
func TestUnbindIdempotent(t *testing.T) {
	store := NewSessions()
	id := store.Create()
	store.Bind(id, RoleSharer, "conn-s")

	store.Unbind("never-bound")
	store.Unbind("conn-s")
	store.Unbind("conn-s")

	// the other session is untouched
	other := store.Create()
	store.Bind(other, RoleViewer, "conn-x")
	store.Unbind("conn-s")

	sess, ok := store.Get(other)
	if !ok {
		t.Fatal("unrelated session deleted by repeated unbind")
	}
	if sess.ViewerConn != "conn-x" {
		t.Errorf("unrelated binding changed: got %q, want conn-x", sess.ViewerConn)
	}
}

// TestPurgeOlderThan verifies aging is on creation time alone, ignoring
// whether anyone is still connected
func TestPurgeOlderThan(t *testing.T) {
	retention := 24 * time.Hour
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	store := NewSessions()
	store.now = func() time.Time { return created }

	id := store.Create()
	store.Bind(id, RoleSharer, "conn-s")
	store.Bind(id, RoleViewer, "conn-v")

	// just inside the window
	if n := store.PurgeOlderThan(retention, created.Add(retention-time.Second)); n != 0 {
		t.Errorf("purged %d sessions inside the retention window, want 0", n)
	}
	if _, ok := store.Get(id); !ok {
		t.Fatal("session purged before the retention window elapsed")
	}

	// just past the window, both roles still bound
	if n := store.PurgeOlderThan(retention, created.Add(retention+time.Second)); n != 1 {
		t.Errorf("purged %d sessions past the retention window, want 1", n)
	}
	if _, ok := store.Get(id); ok {
		t.Error("session survived past the retention window")
	}
}
