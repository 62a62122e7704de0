package presenced

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"presenced/core"
)

// decodePayload unmarshals and validates an inbound event payload. A payload
// that fails either step never reaches the coordinator.
func decodePayload(e *core.Event, dst interface{}) error {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("malformed %s payload: %w", e.Type, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("invalid %s payload: %w", e.Type, err)
	}
	return nil
}

// IdentifyHandler re-verifies a token sent over an already-authenticated
// socket. The connection's identity is fixed at upgrade time; a token that is
// invalid or names a different user closes the connection.
func (app *App) IdentifyHandler(ctx context.Context, e *core.Event) error {
	var payload core.IdentifyPayload
	if err := decodePayload(e, &payload); err != nil {
		app.wsManager.CloseConn(e.ConnID)
		return err
	}
	session, err := app.authStore.Verify(ctx, payload.Token)
	if err != nil || session.UserID != e.UserID {
		app.wsManager.CloseConn(e.ConnID)
		return core.ErrAuthenticationRequired
	}
	return nil
}

func (app *App) JoinRoomHandler(ctx context.Context, e *core.Event) error {
	var payload core.RoomPayload
	if err := decodePayload(e, &payload); err != nil {
		return err
	}
	return app.coordinator.JoinRoom(e.ConnID, payload.RoomID)
}

func (app *App) LeaveRoomHandler(ctx context.Context, e *core.Event) error {
	var payload core.RoomPayload
	if err := decodePayload(e, &payload); err != nil {
		return err
	}
	return app.coordinator.LeaveRoom(e.ConnID, payload.RoomID)
}

func (app *App) TypingStartHandler(ctx context.Context, e *core.Event) error {
	var payload core.RoomPayload
	if err := decodePayload(e, &payload); err != nil {
		return err
	}
	return app.coordinator.TypingStart(e.ConnID, payload.RoomID)
}

func (app *App) TypingStopHandler(ctx context.Context, e *core.Event) error {
	var payload core.RoomPayload
	if err := decodePayload(e, &payload); err != nil {
		return err
	}
	return app.coordinator.TypingStop(e.ConnID, payload.RoomID)
}

func (app *App) SendMessageHandler(ctx context.Context, e *core.Event) error {
	var payload core.SendMessagePayload
	if err := decodePayload(e, &payload); err != nil {
		return err
	}
	sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := app.coordinator.Send(sendCtx, e.ConnID, payload.RoomID, payload.Body)
	return err
}

func (app *App) AckDeliveredHandler(ctx context.Context, e *core.Event) error {
	var payload core.AckPayload
	if err := decodePayload(e, &payload); err != nil {
		return err
	}
	return app.coordinator.AckDelivered(e.ConnID, payload.RoomID, payload.Seq)
}

func (app *App) AckReadHandler(ctx context.Context, e *core.Event) error {
	var payload core.AckPayload
	if err := decodePayload(e, &payload); err != nil {
		return err
	}
	return app.coordinator.AckRead(e.ConnID, payload.RoomID, payload.Seq)
}

// IsOnlineHandler answers a presence query with a presence_changed event sent
// to the asking connection only.
func (app *App) IsOnlineHandler(ctx context.Context, e *core.Event) error {
	var payload core.IsOnlinePayload
	if err := decodePayload(e, &payload); err != nil {
		return err
	}
	record := app.coordinator.PresenceOf(payload.UserID)
	event, err := core.NewEvent(core.EventPresenceChanged, core.PresenceChangedPayload{
		UserID: payload.UserID,
		Status: record.Status,
		At:     record.LastTransition,
	})
	if err != nil {
		return err
	}
	app.wsManager.SendToConns(event, e.ConnID)
	return nil
}

// UpdateAvailabilityHandler records whether a worker can take new
// conversations. Only worker connections may toggle it.
func (app *App) UpdateAvailabilityHandler(ctx context.Context, e *core.Event) error {
	var payload core.UpdateAvailabilityPayload
	if err := decodePayload(e, &payload); err != nil {
		return err
	}
	conn, ok := app.coordinator.Registry().Lookup(e.ConnID)
	if !ok {
		return core.ErrUnknownConnection
	}
	if conn.Role != core.RoleWorker {
		return core.ErrUnauthenticated
	}
	setCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return app.availability.SetAvailability(setCtx, e.UserID, payload.IsAvailable)
}

// reportEventError surfaces a handler failure to the connection that sent the
// offending event. Everything else in the room is unaffected.
func (app *App) reportEventError(e *core.Event, err error) {
	app.logger.Error(err.Error(),
		"event", e.Type, "conn_id", e.ConnID, "user_id", e.UserID)
	payload := core.ErrorPayload{Code: core.ErrorCode(err), Op: e.Type}
	if errors.Is(err, core.ErrPersistence) {
		// persistence failures already carry their own event type
		return
	}
	event, encErr := core.NewEvent(core.EventError, payload)
	if encErr != nil {
		return
	}
	app.wsManager.SendToConns(event, e.ConnID)
}
