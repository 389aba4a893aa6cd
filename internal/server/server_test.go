package server

import (
	"context"
	"testing"
	"time"

	"github.com/nightowl-radio/livechat/internal/database"
	"github.com/nightowl-radio/livechat/internal/stats"
	"github.com/nightowl-radio/livechat/internal/testutil"
	"github.com/nightowl-radio/livechat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// newTestChatServer creates a new ChatServer instance for testing purposes
func newTestChatServer(t *testing.T, db database.ChatRepository, su *stats.MockStatsUpdater) *ChatServer {
	su.On("RegisterMetric", mock.Anything).Return().Times(4)
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()

	logger := testutil.TestLogger(t)
	cs, err := NewChatServer(logger, db, su)
	if err != nil {
		t.Fatalf("failed to create test ChatServer: %v", err)
	}
	return cs
}

func newTestClient(t *testing.T, cs *ChatServer, key, nickname string) *Client {
	t.Helper()
	return NewClient(types.PresenceEntry{
		Key:      key,
		Nickname: nickname,
		JoinedAt: Now(),
	}, "", nil, cs, testutil.TestLogger(t))
}

func recvMessage(t *testing.T, c *Client) *ServerMessage {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestNewChatServer(t *testing.T) {
	db := &database.MockChatRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("RegisterMetric", mock.Anything).Return().Times(4)

	logger := testutil.TestLogger(t)
	cs, err := NewChatServer(logger, db, su)
	assert.NoError(t, err, "expected no error creating ChatServer")
	assert.NotNil(t, cs, "expected ChatServer to be non-nil")
	assert.Equal(t, logger, cs.log, "expected logger to be set")
	assert.Equal(t, db, cs.db, "expected database repository to be set")
	assert.NotNil(t, cs.registerChan, "expected registerChan to be initialized")
	assert.NotNil(t, cs.deregisterChan, "expected deregisterChan to be initialized")
	assert.NotNil(t, cs.publishChan, "expected publishChan to be initialized")
	assert.NotNil(t, cs.banSyncChan, "expected banSyncChan to be initialized")
	assert.NotNil(t, cs.deletedChan, "expected deletedChan to be initialized")
	assert.NotNil(t, cs.stop, "expected stop channel to be initialized")
	assert.NotNil(t, cs.clients, "expected clients map to be initialized")
}

func Test_handleRegister(t *testing.T) {
	cs := newTestChatServer(t, &database.MockChatRepository{}, &stats.MockStatsUpdater{})
	cs.bannedSessions = []string{"banned-session"}

	c := newTestClient(t, cs, "k1", "Nina")
	cs.handleRegister(c)

	assert.Contains(t, cs.clients, c, "expected client to be tracked")

	// the newcomer receives the ban set first, then the roster snapshot
	msg := recvMessage(t, c)
	assert.NotNil(t, msg.Bans, "expected ban sync for new client")
	assert.Equal(t, []string{"banned-session"}, msg.Bans.SessionIds, "expected current ban set")

	msg = recvMessage(t, c)
	assert.NotNil(t, msg.Presence, "expected roster sync for new client")
	assert.Len(t, msg.Presence.Roster, 1, "expected one roster entry")
	assert.Equal(t, "Nina", msg.Presence.Roster[0].Nickname, "expected roster entry nickname to match")
}

func Test_handleRegister_duplicateNicknames(t *testing.T) {
	cs := newTestChatServer(t, &database.MockChatRepository{}, &stats.MockStatsUpdater{})

	// two connections under the same nickname are two listeners
	c1 := newTestClient(t, cs, "k1", "Nina")
	c2 := newTestClient(t, cs, "k2", "Nina")

	cs.handleRegister(c1)
	recvMessage(t, c1) // ban sync
	recvMessage(t, c1) // roster of one

	cs.handleRegister(c2)
	recvMessage(t, c2) // ban sync

	for _, c := range []*Client{c1, c2} {
		msg := recvMessage(t, c)
		assert.NotNil(t, msg.Presence, "expected roster sync")
		assert.Len(t, msg.Presence.Roster, 2, "expected both connections in the roster")
		assert.Equal(t, "Nina", msg.Presence.Roster[0].Nickname)
		assert.Equal(t, "Nina", msg.Presence.Roster[1].Nickname)
		assert.NotEqual(t, msg.Presence.Roster[0].Key, msg.Presence.Roster[1].Key,
			"expected distinct connection keys")
	}
}

func Test_handleDeregister(t *testing.T) {
	cs := newTestChatServer(t, &database.MockChatRepository{}, &stats.MockStatsUpdater{})

	c1 := newTestClient(t, cs, "k1", "Nina")
	c2 := newTestClient(t, cs, "k2", "Al")

	cs.handleRegister(c1)
	cs.handleRegister(c2)
	for range 3 {
		recvMessage(t, c1)
	}
	recvMessage(t, c2)
	recvMessage(t, c2)

	cs.handleDeregister(c1)
	assert.NotContains(t, cs.clients, c1, "expected client to be removed")

	msg := recvMessage(t, c2)
	assert.NotNil(t, msg.Presence, "expected roster sync after leave")
	assert.Len(t, msg.Presence.Roster, 1, "expected one remaining roster entry")
	assert.Equal(t, "Al", msg.Presence.Roster[0].Nickname, "expected remaining entry nickname to match")

	// deregistering an unknown client is a no-op
	cs.handleDeregister(c1)
	assert.Len(t, c2.send, 0, "expected no further roster sync")
}

func TestBroadcastMessage(t *testing.T) {
	t.Run("queued", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockChatRepository{}, &stats.MockStatsUpdater{})

		err := cs.BroadcastMessage(types.Message{Id: 1, Nickname: "Nina", Body: "hello world"})
		assert.NoError(t, err, "expected broadcast to be queued")
		assert.Len(t, cs.publishChan, 1, "expected message on publish channel")
	})

	t.Run("hub busy", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockChatRepository{}, &stats.MockStatsUpdater{})
		cs.publishChan = make(chan *types.Message, 1)
		cs.publishChan <- &types.Message{}

		err := cs.BroadcastMessage(types.Message{Id: 2})
		assert.ErrorIs(t, err, ErrHubBusy, "expected ErrHubBusy when publish channel is full")
	})
}

func TestSyncBans(t *testing.T) {
	cs := newTestChatServer(t, &database.MockChatRepository{}, &stats.MockStatsUpdater{})

	err := cs.SyncBans([]string{"abc"})
	assert.NoError(t, err, "expected ban sync to be queued")
	assert.Len(t, cs.banSyncChan, 1, "expected ban set on sync channel")
}

func TestNotifyMessageDeleted(t *testing.T) {
	cs := newTestChatServer(t, &database.MockChatRepository{}, &stats.MockStatsUpdater{})

	err := cs.NotifyMessageDeleted(9)
	assert.NoError(t, err, "expected deletion notice to be queued")
	assert.Len(t, cs.deletedChan, 1, "expected id on deleted channel")
}

func TestChatServerRun(t *testing.T) {
	cs := newTestChatServer(t, &database.MockChatRepository{}, &stats.MockStatsUpdater{})
	go cs.Run()

	c1 := newTestClient(t, cs, "k1", "Nina")
	c2 := newTestClient(t, cs, "k2", "Nina")

	cs.RegisterClient(c1)
	recvMessage(t, c1) // ban sync
	recvMessage(t, c1) // roster of one

	cs.RegisterClient(c2)
	recvMessage(t, c2) // ban sync
	recvMessage(t, c1) // roster of two
	recvMessage(t, c2)

	// a published message reaches every client, sender included
	err := cs.BroadcastMessage(types.Message{Id: 1, Nickname: "Nina", Body: "hello world", SessionId: "s1"})
	assert.NoError(t, err, "expected broadcast to be accepted")

	for _, c := range []*Client{c1, c2} {
		msg := recvMessage(t, c)
		assert.NotNil(t, msg.Message, "expected chat message")
		assert.Equal(t, "hello world", msg.Message.Body, "expected message body to match")
		assert.Equal(t, "Nina", msg.Message.Nickname, "expected message nickname to match")
	}

	// a ban sync reaches every client
	err = cs.SyncBans([]string{"s1"})
	assert.NoError(t, err, "expected ban sync to be accepted")
	for _, c := range []*Client{c1, c2} {
		msg := recvMessage(t, c)
		assert.NotNil(t, msg.Bans, "expected ban sync")
		assert.Equal(t, []string{"s1"}, msg.Bans.SessionIds, "expected ban set to match")
	}

	// a deletion notice reaches every client
	err = cs.NotifyMessageDeleted(1)
	assert.NoError(t, err, "expected deletion notice to be accepted")
	for _, c := range []*Client{c1, c2} {
		msg := recvMessage(t, c)
		assert.NotNil(t, msg.Deleted, "expected deletion notice")
		assert.Equal(t, 1, msg.Deleted.MessageId, "expected deleted message id to match")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, cs.Shutdown(ctx), "expected clean shutdown")

	for _, c := range []*Client{c1, c2} {
		select {
		case <-c.stop:
			// disconnected as expected
		default:
			t.Error("expected client stop channel to be closed on shutdown")
		}
	}
}

func TestChatServerShutdown(t *testing.T) {
	t.Run("successful shutdown", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockChatRepository{}, &stats.MockStatsUpdater{})
		go cs.Run()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		err := cs.Shutdown(ctx)
		assert.NoError(t, err, "expected successful shutdown without error")
	})

	t.Run("fails with context deadline exceeded", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockChatRepository{}, &stats.MockStatsUpdater{})

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		// Run is not started, the stop channel never drains
		err := cs.Shutdown(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded, "expected deadline exceeded")
	})
}
