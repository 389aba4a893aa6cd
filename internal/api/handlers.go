package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nightowl-radio/livechat/internal/database"
	"github.com/nightowl-radio/livechat/internal/server"
	"github.com/nightowl-radio/livechat/internal/types"
)

const (
	maxNicknameLen = 20
	minJoinNameLen = 2
	maxBodyLen     = 500

	defaultMessageLimit = 50
	maxMessageLimit     = 100
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type SendMessageRequest struct {
	Nickname  string `json:"nickname"`
	Body      string `json:"body"`
	SessionId string `json:"session_id,omitempty"`
	Ref       string `json:"ref,omitempty"`
}

type CreateBanRequest struct {
	SessionId string     `json:"session_id"`
	Nickname  string     `json:"nickname,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type BroadcastRequest struct {
	Body string `json:"body"`
}

func (s *ChatApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func apiMessage(m database.Message) types.Message {
	return types.Message{
		Id:        m.Id,
		Ref:       m.Ref,
		Nickname:  m.Nickname,
		Body:      m.Body,
		SessionId: m.SessionId.String,
		CreatedAt: m.CreatedAt,
	}
}

func apiBan(b database.Ban) types.Ban {
	ban := types.Ban{
		Id:        b.Id,
		SessionId: b.SessionId,
		Nickname:  b.Nickname.String,
		Reason:    b.Reason.String,
		CreatedAt: b.CreatedAt,
	}
	if b.ExpiresAt.Valid {
		t := b.ExpiresAt.Time
		ban.ExpiresAt = &t
	}
	return ban
}

func (s *ChatApp) getMessages(w http.ResponseWriter, r *http.Request) {
	limit := defaultMessageLimit

	limitStr := r.URL.Query().Get("limit")
	if limitStr != "" {
		var err error
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}

	dbMessages, err := s.db.RecentMessages(limit)
	if err != nil {
		s.log.Println("recent messages:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messages := make([]types.Message, 0, len(dbMessages))
	for _, m := range dbMessages {
		messages = append(messages, apiMessage(m))
	}

	s.writeJson(w, http.StatusOK, messages)
}

// sendMessage stores the message and hands it to the hub for fan-out.
// The response carries no message body: the sender observes its own
// message through the realtime channel, same as everyone else.
func (s *ChatApp) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	nickname := strings.TrimSpace(req.Nickname)
	body := strings.TrimSpace(req.Body)

	if n := utf8.RuneCountInString(nickname); n < 1 || n > maxNicknameLen {
		errResp := NewValidationError("nickname must be 1-20 characters")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if n := utf8.RuneCountInString(body); n < 1 || n > maxBodyLen {
		errResp := NewValidationError("message must be 1-500 characters")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	limiterKey := req.SessionId
	if limiterKey == "" {
		limiterKey = nickname
	}
	if !s.limiter.allow(limiterKey) {
		errResp := NewTooManyRequestsError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	ref := req.Ref
	if ref == "" {
		var err error
		ref, err = s.generateRef()
		if err != nil {
			s.log.Print("generateRef:", err)
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	msg, err := s.db.CreateMessage(database.CreateMessageParams{
		Ref:       ref,
		Nickname:  nickname,
		Body:      body,
		SessionId: req.SessionId,
	})
	if err != nil {
		s.log.Println("create message:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.cs.BroadcastMessage(apiMessage(msg)); err != nil {
		// stored but not fanned out, subscribers catch up on refetch
		s.log.Println("broadcast message:", err)
	}

	s.writeJson(w, http.StatusAccepted, nil)
}

func (s *ChatApp) deleteMessage(w http.ResponseWriter, r *http.Request) {
	idStr := r.URL.Query().Get("id")
	if idStr == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	id, err := strconv.Atoi(idStr)
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.DeleteMessage(id); err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.cs.NotifyMessageDeleted(id); err != nil {
		s.log.Println("notify message deleted:", err)
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *ChatApp) listBans(w http.ResponseWriter, r *http.Request) {
	dbBans, err := s.db.ListBans()
	if err != nil {
		s.log.Println("list bans:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	bans := make([]types.Ban, 0, len(dbBans))
	for _, b := range dbBans {
		bans = append(bans, apiBan(b))
	}

	s.writeJson(w, http.StatusOK, bans)
}

func (s *ChatApp) createBan(w http.ResponseWriter, r *http.Request) {
	var req CreateBanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.SessionId == "" {
		errResp := NewMissingSessionIdError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.SessionId == types.AdminSessionId {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	ban, err := s.db.CreateBan(database.CreateBanParams{
		SessionId: req.SessionId,
		Nickname:  req.Nickname,
		Reason:    req.Reason,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		s.log.Println("create ban:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.syncBans()

	s.writeJson(w, http.StatusCreated, apiBan(ban))
}

func (s *ChatApp) deleteBan(w http.ResponseWriter, r *http.Request) {
	idStr := r.URL.Query().Get("id")
	if idStr == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	id, err := strconv.Atoi(idStr)
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.DeleteBan(id); err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.syncBans()

	s.writeJson(w, http.StatusNoContent, nil)
}

// syncBans pushes the current active ban set to the hub so connected
// clients can update their filter stage.
func (s *ChatApp) syncBans() {
	ids, err := s.db.ActiveBanSessionIds()
	if err != nil {
		s.log.Println("active ban session ids:", err)
		return
	}

	if err := s.cs.SyncBans(ids); err != nil {
		s.log.Println("sync bans:", err)
	}
}

func (s *ChatApp) adminBroadcast(w http.ResponseWriter, r *http.Request) {
	var req BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	body := strings.TrimSpace(req.Body)
	if n := utf8.RuneCountInString(body); n < 1 || n > maxBodyLen {
		errResp := NewValidationError("message must be 1-500 characters")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	ref, err := s.generateRef()
	if err != nil {
		s.log.Print("generateRef:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := s.db.CreateMessage(database.CreateMessageParams{
		Ref:       ref,
		Nickname:  s.adminName,
		Body:      "📢 " + body,
		SessionId: types.AdminSessionId,
	})
	if err != nil {
		s.log.Println("create message:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.cs.BroadcastMessage(apiMessage(msg)); err != nil {
		s.log.Println("broadcast message:", err)
	}

	s.writeJson(w, http.StatusAccepted, nil)
}

func (s *ChatApp) createAccount(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	newUser, err := s.db.CreateAccount(database.CreateAccountParams{
		Username:     req.Username,
		EmailAddress: req.Email,
		PasswordHash: pwdHash,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, types.User{
		Id:           newUser.Id,
		Username:     newUser.Username,
		EmailAddress: newUser.EmailAddress,
		CreatedAt:    newUser.CreatedAt,
		UpdatedAt:    newUser.UpdatedAt,
	})
}

func (s *ChatApp) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&lr); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if lr.Email == "" || lr.Password == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbUser, err := s.db.GetAccountByEmail(lr.Email)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !verifyPassword(dbUser.PasswordHash, lr.Password) {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	u := types.User{
		Id:           dbUser.Id,
		Username:     dbUser.Username,
		EmailAddress: dbUser.EmailAddress,
		CreatedAt:    dbUser.CreatedAt,
		UpdatedAt:    dbUser.UpdatedAt,
	}

	token, err := s.createJwtForSession(u, defaultJwtExpiration)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	http.SetCookie(w, createJwtCookie(token, defaultJwtExpiration))

	s.writeJson(w, http.StatusOK, u)
}

func (s *ChatApp) logout(w http.ResponseWriter, _ *http.Request) {
	// instruct browser to delete cookie by overwriting it with an expired token
	http.SetCookie(w, createJwtCookie("", time.Duration(time.Unix(0, 0).Unix())))
	w.WriteHeader(http.StatusNoContent)
}

func (s *ChatApp) session(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetAccountById(userId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, types.User{
		Id:           user.Id,
		Username:     user.Username,
		EmailAddress: user.EmailAddress,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	})
}

func (s *ChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	nickname := strings.TrimSpace(r.URL.Query().Get("nickname"))
	if n := utf8.RuneCountInString(nickname); n < minJoinNameLen || n > maxNicknameLen {
		errResp := NewValidationError("nickname must be 2-20 characters")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sessionId := r.URL.Query().Get("session_id")

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(types.PresenceEntry{
		Key:      uuid.NewString(),
		Nickname: nickname,
		JoinedAt: server.Now(),
	}, sessionId, conn, s.cs, s.log)

	s.cs.RegisterClient(client)
	go client.Write()
	go client.Read()
}
