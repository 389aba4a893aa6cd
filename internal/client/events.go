package client

import (
	"github.com/nightowl-radio/livechat/internal/types"
)

// Handler receives the session's UI-driving side effects. Callbacks run
// on the session's read goroutine and are never invoked after Leave.
type Handler interface {
	OnMessage(msg ViewMessage)
	OnMessageDeleted(id int)
	OnRosterChange(count int, roster []types.PresenceEntry)
	// OnHighlight fires when a marker message arrives. The highlight is
	// transient, HighlightActive reports whether it is still in window.
	OnHighlight(id int)
	// OnSound fires for messages from other participants while the
	// sound toggle is on.
	OnSound(msg ViewMessage)
	// OnStoreError reports a non-fatal store failure, e.g. the history
	// fetch at join falling back to an empty list.
	OnStoreError(err error)
	OnDisconnected(err error)
}

// NoopHandler implements Handler with no-ops, embed it to pick only the
// callbacks of interest.
type NoopHandler struct{}

func (NoopHandler) OnMessage(ViewMessage) {}

func (NoopHandler) OnMessageDeleted(int) {}

func (NoopHandler) OnRosterChange(int, []types.PresenceEntry) {}

func (NoopHandler) OnHighlight(int) {}

func (NoopHandler) OnSound(ViewMessage) {}

func (NoopHandler) OnStoreError(error) {}

func (NoopHandler) OnDisconnected(error) {}
