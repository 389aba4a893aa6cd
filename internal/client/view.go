package client

import (
	"strings"
	"time"

	"github.com/nightowl-radio/livechat/internal/types"
)

// CountMode selects how the listener count is derived from the roster.
// Connections is the historical behavior: two tabs under the same
// nickname count as two listeners.
type CountMode int

const (
	CountConnections CountMode = iota
	CountDistinctNames
)

// Emote messages are rendered without sender or timestamp chrome.
var defaultEmotes = []string{"🔥", "🎶", "❤️", "🙌", "👏"}

const (
	// highlightMarker flags a message for a transient highlight
	// animation. Admin broadcasts carry it as a prefix.
	highlightMarker = "📢"

	highlightDuration = 2 * time.Second
)

type ViewMessage struct {
	types.Message
	// Emote messages render larger, centered, no metadata chrome.
	Emote bool `json:"emote,omitempty"`
	// Highlight marks a transient, time-bounded highlight keyed by id.
	Highlight bool `json:"highlight,omitempty"`
	// Provisional marks an optimistic local echo not yet confirmed by
	// the realtime channel.
	Provisional bool `json:"provisional,omitempty"`
}

// view is the in-memory projection rendered by the UI: the visible
// message list, the current presence roster and the active ban set.
// It is not safe for concurrent use, the Session serializes access.
type view struct {
	messages   []ViewMessage
	roster     []types.PresenceEntry
	banned     map[string]struct{}
	emotes     map[string]struct{}
	highlights map[int]time.Time
	countMode  CountMode
	now        func() time.Time
}

func newView(countMode CountMode, now func() time.Time) *view {
	if now == nil {
		now = time.Now
	}

	emotes := make(map[string]struct{}, len(defaultEmotes))
	for _, e := range defaultEmotes {
		emotes[e] = struct{}{}
	}

	return &view{
		banned:     make(map[string]struct{}),
		emotes:     emotes,
		highlights: make(map[int]time.Time),
		countMode:  countMode,
		now:        now,
	}
}

func (v *view) classify(msg types.Message) ViewMessage {
	vm := ViewMessage{Message: msg}

	if _, ok := v.emotes[msg.Body]; ok {
		vm.Emote = true
	}

	if strings.Contains(msg.Body, highlightMarker) {
		vm.Highlight = true
		v.highlights[msg.Id] = v.now().Add(highlightDuration)
	}

	return vm
}

// suppressed reports whether the sender's session is shadow-banned. The
// admin sentinel is never suppressed.
func (v *view) suppressed(msg types.Message) bool {
	if msg.SessionId == "" || msg.SessionId == types.AdminSessionId {
		return false
	}

	_, ok := v.banned[msg.SessionId]
	return ok
}

func (v *view) setHistory(history []types.Message) {
	v.messages = v.messages[:0]
	for _, msg := range history {
		if v.suppressed(msg) {
			continue
		}
		v.messages = append(v.messages, v.classify(msg))
	}
}

// append adds one live message in arrival order. Messages are never
// re-sorted, out-of-order delivery is left as observed. Returns false
// when the message was suppressed by the ban filter.
func (v *view) append(msg types.Message) (ViewMessage, bool) {
	if v.suppressed(msg) {
		return ViewMessage{}, false
	}

	vm := v.classify(msg)
	v.messages = append(v.messages, vm)
	return vm, true
}

// appendProvisional adds an optimistic local echo keyed by ref.
func (v *view) appendProvisional(msg types.Message) ViewMessage {
	vm := v.classify(msg)
	vm.Provisional = true
	v.messages = append(v.messages, vm)
	return vm
}

// resolveProvisional replaces the provisional entry with the server copy
// when the insert event for the same ref arrives. Returns false when no
// provisional entry matches.
func (v *view) resolveProvisional(msg types.Message) (ViewMessage, bool) {
	if msg.Ref == "" {
		return ViewMessage{}, false
	}

	for i := range v.messages {
		if v.messages[i].Provisional && v.messages[i].Ref == msg.Ref {
			vm := v.classify(msg)
			v.messages[i] = vm
			return vm, true
		}
	}

	return ViewMessage{}, false
}

func (v *view) dropProvisional(ref string) {
	for i := range v.messages {
		if v.messages[i].Provisional && v.messages[i].Ref == ref {
			v.messages = append(v.messages[:i], v.messages[i+1:]...)
			return
		}
	}
}

func (v *view) remove(id int) bool {
	for i := range v.messages {
		if v.messages[i].Id == id {
			v.messages = append(v.messages[:i], v.messages[i+1:]...)
			return true
		}
	}

	return false
}

// applyRoster replaces the roster with the latest sync snapshot.
func (v *view) applyRoster(roster []types.PresenceEntry) {
	v.roster = roster
}

// applyBans replaces the active ban set and retroactively drops any
// already-rendered message from a now-banned session. History renders
// before the first ban sync arrives, so the purge is what makes the
// filter hold for messages loaded at join. Returns the ids of the
// dropped messages.
func (v *view) applyBans(sessionIds []string) []int {
	v.banned = make(map[string]struct{}, len(sessionIds))
	for _, id := range sessionIds {
		v.banned[id] = struct{}{}
	}

	var removed []int
	kept := v.messages[:0]
	for _, m := range v.messages {
		if v.suppressed(m.Message) {
			if m.Id != 0 {
				removed = append(removed, m.Id)
			}
			continue
		}
		kept = append(kept, m)
	}
	v.messages = kept

	return removed
}

func (v *view) listenerCount() int {
	if v.countMode == CountDistinctNames {
		names := make(map[string]struct{}, len(v.roster))
		for _, entry := range v.roster {
			names[entry.Nickname] = struct{}{}
		}
		return len(names)
	}

	return len(v.roster)
}

// highlightActive reports whether the highlight for a message id is
// still within its window.
func (v *view) highlightActive(id int) bool {
	expiry, ok := v.highlights[id]
	if !ok {
		return false
	}

	if !v.now().Before(expiry) {
		delete(v.highlights, id)
		return false
	}

	return true
}

func (v *view) empty() bool {
	return len(v.messages) == 0
}
