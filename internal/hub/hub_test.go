package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id     string
	sent   [][]byte
	closed bool
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Enqueue(data []byte) bool {
	f.sent = append(f.sent, data)
	return true
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func TestHub_BindAndMembers(t *testing.T) {
	h := NewHub()
	c1 := &fakeConn{id: "c1"}
	c2 := &fakeConn{id: "c2"}

	h.Bind(c1, RoleViewer, "room-1")
	h.Bind(c2, RoleViewer, "room-1")

	assert.Equal(t, 2, h.CountOf("room-1"))
	assert.Len(t, h.MembersOf("room-1"), 2)

	roomID, role, ok := h.RoomOf("c1")
	require.True(t, ok)
	assert.Equal(t, "room-1", roomID)
	assert.Equal(t, RoleViewer, role)
}

func TestHub_RebindMovesConnection(t *testing.T) {
	h := NewHub()
	c := &fakeConn{id: "c1"}

	h.Bind(c, RoleViewer, "room-1")
	h.Bind(c, RoleViewer, "room-2")

	assert.Equal(t, 0, h.CountOf("room-1"))
	assert.Equal(t, 1, h.CountOf("room-2"))

	roomID, _, ok := h.RoomOf("c1")
	require.True(t, ok)
	assert.Equal(t, "room-2", roomID)
}

func TestHub_Unbind(t *testing.T) {
	h := NewHub()
	c := &fakeConn{id: "c1"}
	h.Bind(c, RoleViewer, "room-1")

	roomID, role, ok := h.Unbind(c)
	require.True(t, ok)
	assert.Equal(t, "room-1", roomID)
	assert.Equal(t, RoleViewer, role)
	assert.Equal(t, 0, h.CountOf("room-1"))

	_, _, ok = h.Unbind(c)
	assert.False(t, ok)
}

func TestHub_OperatorOverwrite(t *testing.T) {
	h := NewHub()
	old := &fakeConn{id: "old"}
	fresh := &fakeConn{id: "fresh"}

	h.BindOperator(old, "room-1", "user-1")
	h.BindOperator(fresh, "room-1", "user-1")

	got, ok := h.OperatorConn("user-1")
	require.True(t, ok)
	assert.Equal(t, "fresh", got.ID())

	// The superseded socket stays bound and open until it disconnects.
	_, _, stillBound := h.RoomOf("old")
	assert.True(t, stillBound)
	assert.False(t, old.closed)
}

func TestHub_UnbindClearsOperatorIndex(t *testing.T) {
	h := NewHub()
	c := &fakeConn{id: "c1"}
	h.BindOperator(c, "room-1", "user-1")

	h.Unbind(c)

	_, ok := h.OperatorConn("user-1")
	assert.False(t, ok)
}

func TestHub_DropRoom(t *testing.T) {
	h := NewHub()
	op := &fakeConn{id: "op"}
	v1 := &fakeConn{id: "v1"}
	v2 := &fakeConn{id: "v2"}

	h.BindOperator(op, "room-1", "user-1")
	h.Bind(v1, RoleViewer, "room-1")
	h.Bind(v2, RoleViewer, "room-1")
	h.Bind(&fakeConn{id: "other"}, RoleViewer, "room-2")

	dropped := h.DropRoom("room-1")

	assert.Len(t, dropped, 3)
	assert.Equal(t, 0, h.CountOf("room-1"))
	assert.Equal(t, 1, h.CountOf("room-2"))
	_, ok := h.OperatorConn("user-1")
	assert.False(t, ok)
	_, _, ok = h.RoomOf("v1")
	assert.False(t, ok)
}

func TestHub_DropRoomUnknown(t *testing.T) {
	h := NewHub()
	assert.Nil(t, h.DropRoom("missing"))
}
