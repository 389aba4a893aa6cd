package server

import (
	"net/http"
	"time"

	"github.com/nightowl-radio/livechat/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientMessage struct {
	BaseMessage
	Leave *Leave `json:"leave,omitempty"`
}

type Leave struct{}

type ServerMessage struct {
	BaseMessage
	Response *Response       `json:"response,omitempty"`
	Message  *types.Message  `json:"message,omitempty"`
	Presence *PresenceSync   `json:"presence,omitempty"`
	Bans     *BanSync        `json:"bans,omitempty"`
	Deleted  *MessageDeleted `json:"deleted,omitempty"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
}

// PresenceSync carries the full roster, not a delta. The latest sync
// snapshot is always authoritative on the receiving side.
type PresenceSync struct {
	Roster []types.PresenceEntry `json:"roster"`
}

// BanSync carries the full set of actively banned session ids.
type BanSync struct {
	SessionIds []string `json:"session_ids"`
}

type MessageDeleted struct {
	MessageId int `json:"message_id"`
}

func NoErrOK(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
