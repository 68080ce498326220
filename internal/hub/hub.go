package hub

import (
	"sync"

	"github.com/shilo-maker/solupresenter-sub012/pkg/log"
)

// Role tags what a connection is allowed to do in its room.
type Role string

const (
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
)

// Conn is the transport-side handle the registry tracks. *Client implements
// it; tests substitute fakes.
type Conn interface {
	ID() string
	// Enqueue hands a marshalled event to the connection's writer without
	// blocking. It reports false when the send buffer is full.
	Enqueue(data []byte) bool
	Close() error
}

type binding struct {
	conn   Conn
	role   Role
	roomID string
}

// Hub is the in-memory bidirectional map between connections and
// (role, room) membership. It is an owned, injectable object, never a
// process-wide singleton.
type Hub struct {
	mu        sync.RWMutex
	conns     map[string]*binding // connID -> binding
	rooms     map[string]map[string]Conn
	operators map[string]string // operatorID -> connID
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		conns:     make(map[string]*binding),
		rooms:     make(map[string]map[string]Conn),
		operators: make(map[string]string),
	}
}

// Bind records membership for a connection. A connection belongs to at most
// one room: any prior binding is silently removed first.
func (h *Hub) Bind(c Conn, role Role, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.unbindLocked(c.ID())

	h.conns[c.ID()] = &binding{conn: c, role: role, roomID: roomID}
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]Conn)
		h.rooms[roomID] = members
	}
	members[c.ID()] = c

	log.L().Debug().
		Str(log.FieldConnID, c.ID()).
		Str(log.FieldRole, string(role)).
		Str(log.FieldRoomID, roomID).
		Msg("connection bound")
}

// BindOperator binds an operator connection and records the operator index.
// A new login overwrites the previous mapping without closing the superseded
// socket.
func (h *Hub) BindOperator(c Conn, roomID, operatorID string) {
	h.Bind(c, RoleOperator, roomID)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.operators[operatorID] = c.ID()
}

// Unbind removes the connection's membership and returns the room it was
// bound to, if any.
func (h *Hub) Unbind(c Conn) (roomID string, role Role, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unbindLocked(c.ID())
}

func (h *Hub) unbindLocked(connID string) (string, Role, bool) {
	b, ok := h.conns[connID]
	if !ok {
		return "", "", false
	}
	delete(h.conns, connID)

	if members, ok := h.rooms[b.roomID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, b.roomID)
		}
	}
	for opID, cid := range h.operators {
		if cid == connID {
			delete(h.operators, opID)
		}
	}
	return b.roomID, b.role, true
}

// MembersOf returns a snapshot of the connections currently bound to a room.
func (h *Hub) MembersOf(roomID string) []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members, ok := h.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]Conn, 0, len(members))
	for _, c := range members {
		out = append(out, c)
	}
	return out
}

// CountOf returns how many connections are bound to a room.
func (h *Hub) CountOf(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// RoomOf returns the binding of a connection.
func (h *Hub) RoomOf(connID string) (roomID string, role Role, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	b, ok := h.conns[connID]
	if !ok {
		return "", "", false
	}
	return b.roomID, b.role, true
}

// OperatorConn returns the connection currently indexed for an operator id.
func (h *Hub) OperatorConn(operatorID string) (Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	connID, ok := h.operators[operatorID]
	if !ok {
		return nil, false
	}
	b, ok := h.conns[connID]
	if !ok {
		return nil, false
	}
	return b.conn, true
}

// DropRoom detaches every connection bound to a room and returns them, so
// the caller can deliver a final event before the bindings disappear.
func (h *Hub) DropRoom(roomID string) []Conn {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]Conn, 0, len(members))
	for connID, c := range members {
		out = append(out, c)
		delete(h.conns, connID)
		for opID, cid := range h.operators {
			if cid == connID {
				delete(h.operators, opID)
			}
		}
	}
	delete(h.rooms, roomID)
	return out
}
