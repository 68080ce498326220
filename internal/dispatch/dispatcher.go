package dispatch

import (
	"context"
	"encoding/json"

	"github.com/shilo-maker/solupresenter-sub012/internal/domain"
	"github.com/shilo-maker/solupresenter-sub012/internal/hub"
	"github.com/shilo-maker/solupresenter-sub012/internal/task"
	"github.com/shilo-maker/solupresenter-sub012/pkg/log"
)

// Dispatcher routes an event to an immediate fan-out across a room's
// connections and, optionally, to a detached durability write. The broadcast
// path never waits on persistence.
type Dispatcher struct {
	hub  *hub.Hub
	exec task.Executor
}

// NewDispatcher creates a dispatcher over the given registry and executor.
func NewDispatcher(h *hub.Hub, exec task.Executor) *Dispatcher {
	return &Dispatcher{hub: h, exec: exec}
}

// Dispatch sends the event to every connection currently bound to the room.
// Marshalling happens once; each connection gets an independent, non-blocking
// enqueue so one slow viewer cannot delay the rest. Calls from a single
// goroutine fan out in issue order.
func (d *Dispatcher) Dispatch(roomID, kind string, payload interface{}) {
	data := d.marshal(roomID, kind, payload)
	for _, c := range d.hub.MembersOf(roomID) {
		if !c.Enqueue(data) {
			log.L().Debug().
				Str(log.FieldRoomID, roomID).
				Str(log.FieldConnID, c.ID()).
				Str(log.FieldEvent, kind).
				Msg("slow connection, event dropped")
		}
	}
}

// DispatchAndPersist fans out first, then schedules the durability write as
// a fire-and-forget task. A persistence failure is logged and never surfaces
// to the operator: the broadcast already represents the accepted outcome.
func (d *Dispatcher) DispatchAndPersist(roomID, kind string, payload interface{}, persist func(ctx context.Context) error) {
	d.Dispatch(roomID, kind, payload)
	d.exec.Submit("persist:"+kind, persist)
}

// SendTo delivers the event to the listed connections only (final messages
// to members of a room being closed).
func (d *Dispatcher) SendTo(conns []hub.Conn, roomID, kind string, payload interface{}) {
	data := d.marshal(roomID, kind, payload)
	for _, c := range conns {
		c.Enqueue(data)
	}
}

// marshal encodes the envelope, degrading to a payloadless event rather than
// dropping the broadcast when the payload cannot be encoded.
func (d *Dispatcher) marshal(roomID, kind string, payload interface{}) []byte {
	data, err := json.Marshal(domain.Event{Type: kind, Payload: payload})
	if err != nil {
		log.L().Error().Err(err).
			Str(log.FieldRoomID, roomID).
			Str(log.FieldEvent, kind).
			Msg("payload marshal failed, sending minimal event")
		data, _ = json.Marshal(domain.Event{Type: kind})
	}
	return data
}
