package core

import (
	"encoding/json"
	"time"
)

// Inbound event types (client to service).
const (
	EventIdentify           = "identify"
	EventJoinRoom           = "join_room"
	EventLeaveRoom          = "leave_room"
	EventTypingStart        = "typing_start"
	EventTypingStop         = "typing_stop"
	EventSendMessage        = "send_message"
	EventAckDelivered       = "ack_delivered"
	EventAckRead            = "ack_read"
	EventIsOnline           = "is_online"
	EventUpdateAvailability = "update_availability"
)

// Outbound event types (service to client).
const (
	EventPresenceChanged = "presence_changed"
	EventTypingChanged   = "typing_changed"
	EventNewMessage      = "new_message"
	EventReceiptChanged  = "delivery_receipt_changed"
	EventPersistFailed   = "message_persist_failed"
	EventError           = "error"
)

type IdentifyPayload struct {
	Token string `json:"token" validate:"required"`
}

type RoomPayload struct {
	RoomID string `json:"room_id" validate:"required"`
}

type SendMessagePayload struct {
	RoomID string          `json:"room_id" validate:"required"`
	Body   json.RawMessage `json:"body" validate:"required"`
}

type AckPayload struct {
	RoomID string `json:"room_id" validate:"required"`
	Seq    int64  `json:"seq" validate:"required"`
}

type IsOnlinePayload struct {
	UserID string `json:"user_id" validate:"required"`
}

type UpdateAvailabilityPayload struct {
	IsAvailable bool `json:"is_available"`
}

type PresenceChangedPayload struct {
	UserID string    `json:"user_id"`
	Status string    `json:"status"`
	At     time.Time `json:"at"`
}

type TypingChangedPayload struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
	Typing bool   `json:"typing"`
}

type ReceiptChangedPayload struct {
	RoomID string    `json:"room_id"`
	Seq    int64     `json:"seq"`
	UserID string    `json:"user_id"`
	State  string    `json:"state"`
	At     time.Time `json:"at"`
}

type PersistFailedPayload struct {
	RoomID string `json:"room_id"`
	Seq    int64  `json:"seq"`
	Code   string `json:"code"`
}

type ErrorPayload struct {
	Code string `json:"code"`
	Op   string `json:"op"`
}
