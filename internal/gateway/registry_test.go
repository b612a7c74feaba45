package gateway

import (
	"testing"

	"github.com/google/uuid"
)

func testConn(id string, userID uuid.UUID) *Connection {
	c := &Connection{id: id, subs: make(map[string]func())}
	c.userID = userID
	c.authenticated = true
	return c
}

func TestConnRegistryAddAndCount(t *testing.T) {
	t.Parallel()
	r := newConnRegistry()
	userID := uuid.New()

	r.Add(testConn("a", userID))
	r.Add(testConn("b", userID))

	if got := r.Count(); got != 2 {
		t.Errorf("Count() = %d, want 2", got)
	}
	if got := r.CountForUser(userID); got != 2 {
		t.Errorf("CountForUser() = %d, want 2 (multi-device)", got)
	}
}

func TestConnRegistryRemoveLastConnectionClearsUserIndex(t *testing.T) {
	t.Parallel()
	r := newConnRegistry()
	userID := uuid.New()
	conn := testConn("a", userID)

	r.Add(conn)
	if removed := r.Remove(conn); !removed {
		t.Fatal("Remove() = false, want true for a registered connection")
	}
	if got := r.CountForUser(userID); got != 0 {
		t.Errorf("CountForUser() = %d, want 0 after removing the only connection", got)
	}
	if got := r.Count(); got != 0 {
		t.Errorf("Count() = %d, want 0", got)
	}
}

func TestConnRegistryRemoveUnknownConnectionIsNoOp(t *testing.T) {
	t.Parallel()
	r := newConnRegistry()
	if removed := r.Remove(testConn("ghost", uuid.New())); removed {
		t.Error("Remove() = true for a connection that was never added, want false")
	}
}

func TestConnRegistryRemoveOneOfTwoKeepsUserIndexed(t *testing.T) {
	t.Parallel()
	r := newConnRegistry()
	userID := uuid.New()
	first := testConn("a", userID)
	second := testConn("b", userID)

	r.Add(first)
	r.Add(second)
	r.Remove(first)

	if got := r.CountForUser(userID); got != 1 {
		t.Errorf("CountForUser() = %d, want 1 after removing one of two device connections", got)
	}
}

func TestConnRegistryAll(t *testing.T) {
	t.Parallel()
	r := newConnRegistry()
	r.Add(testConn("a", uuid.New()))
	r.Add(testConn("b", uuid.New()))

	if got := len(r.All()); got != 2 {
		t.Errorf("All() returned %d connections, want 2", got)
	}
}
