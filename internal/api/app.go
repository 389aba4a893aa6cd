package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/nightowl-radio/livechat/internal/config"
	"github.com/nightowl-radio/livechat/internal/database"
	"github.com/nightowl-radio/livechat/internal/server"
	"github.com/teris-io/shortid"
)

type ChatApp struct {
	log            *log.Logger
	db             database.ChatRepository
	mux            *http.Server
	cs             *server.ChatServer
	signingKey     []byte
	adminName      string
	allowedOrigins []string
	limiter        *sessionLimiter
	// generateRef produces the public ref id stamped on stored messages,
	// overridable in tests
	generateRef func() (string, error)
}

func NewChatApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, db database.ChatRepository, cfg *config.Config) *ChatApp {
	s := &ChatApp{
		log:            logger,
		db:             db,
		cs:             cs,
		signingKey:     cfg.SigningKey,
		adminName:      cfg.AdminName,
		allowedOrigins: cfg.AllowedOrigins,
		limiter:        newSessionLimiter(),
		generateRef:    shortid.Generate,
	}

	mux.HandleFunc("POST /api/auth/register", s.registerGuard(s.createAccount))
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.Handle("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.HandleFunc("GET /api/messages", s.getMessages)
	mux.HandleFunc("POST /api/messages", s.sendMessage)
	mux.Handle("DELETE /api/messages", s.authMiddleware(s.deleteMessage))
	mux.Handle("GET /api/bans", s.authMiddleware(s.listBans))
	mux.Handle("POST /api/bans", s.authMiddleware(s.createBan))
	mux.Handle("DELETE /api/bans", s.authMiddleware(s.deleteBan))
	mux.Handle("POST /api/broadcast", s.authMiddleware(s.adminBroadcast))
	mux.HandleFunc("GET /ws", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *ChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *ChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
