package audit

import (
	"context"

	"github.com/shilo-maker/solupresenter-sub012/pkg/log"
)

// Audit actions for the sync engine.
const (
	ActionOpenRoom   = "room.open"
	ActionCloseRoom  = "room.close"
	ActionExpireRoom = "room.expire"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action, roomID, userID, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldRoomID, roomID).
		Str(log.FieldUserID, userID).
		Msg(msg)
}
