// Package console serves the review desk to browser front-ends: a JSON API
// over each moderator's review session and a websocket that pushes state
// and notices as they change.
package console

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"slices"
	"sync"
	"time"

	"reviewdesk/internal/database"
	"reviewdesk/internal/locales"
	"reviewdesk/internal/review"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Deps holds the dependencies of the console Server.
type Deps struct {
	Addr           string
	JWTSecret      string
	AllowedOrigins []string
	Debug          bool
	Registry       *review.Registry
	ReviewOptions  review.Options
	Store          database.Store
}

// session is one moderator's review session.
type session struct {
	subject     string
	lang        string
	ctrl        *review.Controller
	visibility  *review.Visibility
	unsubscribe func()

	// presenceMu orders visibility changes driven by websocket presence.
	presenceMu sync.Mutex
}

// Server is the HTTP console.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	hub        *Hub
	upgrader   websocket.Upgrader
	registry   *review.Registry
	opts       review.Options
	store      database.Store

	mu        sync.Mutex
	lifetime  context.Context
	bySubject map[string]*session
}

// New builds the console and its routes.
func New(deps Deps) (*Server, error) {
	if deps.JWTSecret == "" {
		return nil, errors.New("console JWT secret cannot be empty")
	}
	if deps.Registry == nil {
		return nil, errors.New("review registry cannot be nil")
	}
	if deps.Store == nil {
		deps.Store = database.NopStore{}
	}
	if !deps.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		registry:  deps.Registry,
		opts:      deps.ReviewOptions,
		store:     deps.Store,
		lifetime:  context.Background(),
		bySubject: make(map[string]*session),
	}
	s.hub = NewHub(s.handlePresence)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(deps.AllowedOrigins),
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.New(corsConfig(deps.AllowedOrigins)))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := r.Group("/api", AuthMiddleware(deps.JWTSecret))
	{
		api.GET("/state", s.getState)
		api.DELETE("/session", s.closeSession)
		api.POST("/search", s.search)
		api.PUT("/category/:key", s.switchCategory)
		api.PUT("/page", s.setPage)
		api.PUT("/selection", s.setSelection)
		api.DELETE("/selection", s.clearSelection)
		api.POST("/visibility", s.setVisibility)
		api.POST("/decisions", s.beginDecision)
		api.POST("/decisions/:id/confirm", s.confirmDecision)
		api.POST("/decisions/:id/cancel", s.cancelDecision)
		api.GET("/detail/:id", s.viewDetail)
		api.DELETE("/detail", s.closeDetail)
		api.GET("/actions", s.recentActions)
		api.GET("/ws", s.serveWS)
	}
	s.engine = r

	s.httpServer = &http.Server{
		Addr:              deps.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the console's HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Start runs the hub and serves HTTP until Stop is called. Sessions opened
// afterwards refresh in the background under ctx.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	s.lifetime = ctx
	s.mu.Unlock()
	go s.hub.Run(ctx)

	log.Printf("Console listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("console server failed: %w", err)
	}
	return nil
}

// Stop shuts the HTTP server down and closes every review session.
func (s *Server) Stop(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.closeAll()
	log.Println("Console stopped, review sessions closed.")
	return err
}

// sessionFor returns the moderator's session, opening and mounting one on
// first use. Notices are localized in the language of the request that
// opened it.
func (s *Server) sessionFor(c *gin.Context) (*session, error) {
	claims := moderator(c)

	s.mu.Lock()
	if existing, ok := s.bySubject[claims.Subject]; ok {
		s.mu.Unlock()
		return existing, nil
	}
	lifetime := s.lifetime

	opts := s.opts
	opts.Visibility = review.NewVisibility(true)
	sess := &session{
		subject:    claims.Subject,
		lang:       requestLanguage(c),
		visibility: opts.Visibility,
	}
	hub := s.hub
	sess.ctrl = review.NewController(s.registry, review.NotifierFunc(func(_ context.Context, n review.Notice) {
		hub.Publish(sess.subject, Frame{Type: "notice", Notice: &NoticeFrame{
			Notice: n,
			Text:   locales.Text(sess.lang, n.MessageID, n.Data),
		}})
	}), opts)
	sess.unsubscribe = sess.ctrl.Subscribe(func(snap review.Snapshot) {
		hub.Publish(sess.subject, Frame{Type: "state", State: &snap})
	})
	s.bySubject[claims.Subject] = sess
	s.mu.Unlock()

	log.Printf("[Console Sub:%s] Opened review session", claims.Subject)
	// A failed first fetch was already reported as a notice.
	if err := sess.ctrl.Mount(lifetime); errors.Is(err, review.ErrClosed) {
		return nil, err
	}
	return sess, nil
}

func (s *Server) closeSession(c *gin.Context) {
	subject := moderator(c).Subject
	s.mu.Lock()
	sess, ok := s.bySubject[subject]
	delete(s.bySubject, subject)
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no review session"})
		return
	}
	sess.unsubscribe()
	sess.ctrl.Close()
	log.Printf("[Console Sub:%s] Closed review session", subject)
	c.Status(http.StatusNoContent)
}

func (s *Server) closeAll() {
	s.mu.Lock()
	sessions := s.bySubject
	s.bySubject = make(map[string]*session)
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.unsubscribe()
		sess.ctrl.Close()
	}
}

// handlePresence hides a moderator's queue while no websocket is connected
// and shows it again when one connects. Showing the queue refreshes it, so
// the change is applied off the hub loop.
func (s *Server) handlePresence(subject string, _ int) {
	s.mu.Lock()
	sess, ok := s.bySubject[subject]
	s.mu.Unlock()
	if ok {
		go s.applyPresence(sess)
	}
}

// applyPresence sets visibility from the current client count, so changes
// applied out of order still settle on the latest state.
func (s *Server) applyPresence(sess *session) {
	sess.presenceMu.Lock()
	defer sess.presenceMu.Unlock()
	sess.visibility.Set(s.hub.Connected(sess.subject) > 0)
}

func requestLanguage(c *gin.Context) string {
	if lang := c.GetHeader("Accept-Language"); lang != "" {
		return lang
	}
	return locales.GetDefaultLanguageTag().String()
}

// corsConfig allows the console origins. An empty list or "*" allows any
// origin.
func corsConfig(origins []string) cors.Config {
	config := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Accept-Language", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		config.AllowAllOrigins = true
		return config
	}
	config.AllowOrigins = origins
	return config
}

// originChecker allows websocket upgrades from the console origins and
// from clients that send no Origin header.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		set[origin] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || len(set) == 0 || set["*"] || set[origin]
	}
}
