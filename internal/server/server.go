package server

import (
	"context"
	"errors"
	"log"
	"sort"

	"github.com/nightowl-radio/livechat/internal/database"
	"github.com/nightowl-radio/livechat/internal/stats"
	"github.com/nightowl-radio/livechat/internal/types"
)

// ErrHubBusy is returned when the hub's inbound channel is full and a
// notification had to be dropped.
var ErrHubBusy = errors.New("chat server busy")

const (
	metricConnectedListeners = "ConnectedListeners"
	metricMessagesBroadcast  = "MessagesBroadcast"
	metricMessagesDeleted    = "MessagesDeleted"
	metricBanUpdates         = "BanUpdates"
)

type stopReq struct {
	done chan struct{}
}

type ChatServer struct {
	log            *log.Logger
	db             database.ChatRepository
	stats          stats.StatsProvider
	clients        map[*Client]struct{}
	registerChan   chan *Client
	deregisterChan chan *Client
	publishChan    chan *types.Message
	banSyncChan    chan []string
	deletedChan    chan int
	// bannedSessions is the latest full ban set, replaced on every sync.
	// Only touched from the Run goroutine.
	bannedSessions []string
	stop           chan stopReq
}

func NewChatServer(logger *log.Logger, db database.ChatRepository, su stats.StatsProvider) (*ChatServer, error) {
	su.RegisterMetric(metricConnectedListeners)
	su.RegisterMetric(metricMessagesBroadcast)
	su.RegisterMetric(metricMessagesDeleted)
	su.RegisterMetric(metricBanUpdates)

	return &ChatServer{
		log:            logger,
		db:             db,
		stats:          su,
		clients:        make(map[*Client]struct{}),
		registerChan:   make(chan *Client, 256),
		deregisterChan: make(chan *Client, 256),
		publishChan:    make(chan *types.Message, 256),
		banSyncChan:    make(chan []string, 16),
		deletedChan:    make(chan int, 16),
		stop:           make(chan stopReq),
	}, nil
}

func (cs *ChatServer) Run() {
	for {
		select {
		case client := <-cs.registerChan:
			cs.handleRegister(client)
		case client := <-cs.deregisterChan:
			cs.handleDeregister(client)
		case msg := <-cs.publishChan:
			cs.broadcast(&ServerMessage{
				BaseMessage: BaseMessage{Timestamp: Now()},
				Message:     msg,
			})
			cs.stats.Incr(metricMessagesBroadcast)
		case ids := <-cs.banSyncChan:
			cs.bannedSessions = ids
			cs.broadcast(&ServerMessage{
				BaseMessage: BaseMessage{Timestamp: Now()},
				Bans:        &BanSync{SessionIds: ids},
			})
			cs.stats.Incr(metricBanUpdates)
		case id := <-cs.deletedChan:
			cs.broadcast(&ServerMessage{
				BaseMessage: BaseMessage{Timestamp: Now()},
				Deleted:     &MessageDeleted{MessageId: id},
			})
			cs.stats.Incr(metricMessagesDeleted)
		case req := <-cs.stop:
			cs.log.Println("disconnecting clients")
			for c := range cs.clients {
				c.stopClient()
			}
			close(req.done)
			return
		}
	}
}

func (cs *ChatServer) handleRegister(c *Client) {
	cs.clients[c] = struct{}{}
	cs.stats.Incr(metricConnectedListeners)
	cs.log.Printf("listener %q joined (%s)", c.entry.Nickname, c.entry.Key)

	// the newcomer gets the current ban set once at join, after that the
	// set arrives only on change
	c.queueMessage(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Bans:        &BanSync{SessionIds: cs.bannedSessions},
	})

	cs.broadcastRoster()
}

func (cs *ChatServer) handleDeregister(c *Client) {
	if _, ok := cs.clients[c]; !ok {
		return
	}

	delete(cs.clients, c)
	cs.stats.Decr(metricConnectedListeners)
	cs.log.Printf("listener %q left (%s)", c.entry.Nickname, c.entry.Key)

	cs.broadcastRoster()
}

// broadcastRoster sends the full roster snapshot to every connected
// client. Replace-on-sync, no incremental deltas.
func (cs *ChatServer) broadcastRoster() {
	roster := make([]types.PresenceEntry, 0, len(cs.clients))
	for c := range cs.clients {
		roster = append(roster, c.entry)
	}
	sort.Slice(roster, func(i, j int) bool {
		if roster[i].JoinedAt.Equal(roster[j].JoinedAt) {
			return roster[i].Key < roster[j].Key
		}
		return roster[i].JoinedAt.Before(roster[j].JoinedAt)
	})

	cs.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Presence:    &PresenceSync{Roster: roster},
	})
}

func (cs *ChatServer) broadcast(msg *ServerMessage) {
	for client := range cs.clients {
		client.queueMessage(msg)
	}
}

func (cs *ChatServer) RegisterClient(c *Client) {
	cs.registerChan <- c
}

func (cs *ChatServer) DeregisterClient(c *Client) {
	cs.deregisterChan <- c
}

// BroadcastMessage fans a stored message out to all connected clients,
// sender included. The write path acks separately, visibility is solely
// driven by this fan-out.
func (cs *ChatServer) BroadcastMessage(msg types.Message) error {
	select {
	case cs.publishChan <- &msg:
		return nil
	default:
		cs.log.Println("publish channel full, dropping broadcast")
		return ErrHubBusy
	}
}

// SyncBans replaces the hub's active ban set and pushes it to all
// connected clients.
func (cs *ChatServer) SyncBans(sessionIds []string) error {
	select {
	case cs.banSyncChan <- sessionIds:
		return nil
	default:
		cs.log.Println("ban sync channel full, dropping update")
		return ErrHubBusy
	}
}

func (cs *ChatServer) NotifyMessageDeleted(id int) error {
	select {
	case cs.deletedChan <- id:
		return nil
	default:
		cs.log.Println("deleted channel full, dropping notification")
		return ErrHubBusy
	}
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	req := stopReq{done: make(chan struct{})}

	select {
	case cs.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
