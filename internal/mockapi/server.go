// Package mockapi is an in-memory stand-in for the assistant backend. It
// serves the same routes as the hosted service and backs the client tests
// and the `mock-server` command.
package mockapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Responder produces the assistant's answer for a message
type Responder func(message string, topic Topic) string

type message struct {
	ID        string    `json:"_id"`
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

type chatSession struct {
	SessionID    string    `json:"sessionId"`
	UserID       string    `json:"-"`
	Title        string    `json:"title"`
	Preview      string    `json:"preview"`
	Topic        Topic     `json:"topic"`
	MessageCount int       `json:"messageCount"`
	LastActivity time.Time `json:"lastActivity"`
	CreatedAt    time.Time `json:"createdAt"`
	Messages     []message `json:"messages,omitempty"`
}

type account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	password string
}

// Server holds the fake backend state
type Server struct {
	mu       sync.Mutex
	sessions map[string]*chatSession
	accounts map[string]*account

	tokens    *tokenIssuer
	validate  *validator.Validate
	responder Responder
	delay     time.Duration
	failNext  atomic.Int32
	now       func() time.Time
	logger    zerolog.Logger
}

// Option configures a Server
type Option func(*Server)

// WithResponder replaces the canned answers
func WithResponder(r Responder) Option {
	return func(s *Server) { s.responder = r }
}

// WithDelay makes every request wait before it is handled
func WithDelay(d time.Duration) Option {
	return func(s *Server) { s.delay = d }
}

// WithSecret sets the HS256 signing secret
func WithSecret(secret string) Option {
	return func(s *Server) { s.tokens = newTokenIssuer(secret, 24*time.Hour) }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithLogger sets the request logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// Demo account seeded into every server
const (
	DemoEmail    = "demo@pitchside.dev"
	DemoPassword = "blueisthecolour"
)

// New creates a server seeded with the demo account
func New(opts ...Option) *Server {
	s := &Server{
		sessions:  make(map[string]*chatSession),
		accounts:  make(map[string]*account),
		tokens:    newTokenIssuer("pitchside-dev-secret", 24*time.Hour),
		validate:  validator.New(),
		responder: DefaultResponder,
		now:       time.Now,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.accounts[DemoEmail] = &account{
		ID:       uuid.NewString(),
		Username: "demo",
		Email:    DemoEmail,
		password: DemoPassword,
	}
	return s
}

// FailNext makes the next n requests answer 500
func (s *Server) FailNext(n int) {
	s.failNext.Store(int32(n))
}

// IssueToken mints a token for the demo account
func (s *Server) IssueToken() (string, error) {
	s.mu.Lock()
	acc := s.accounts[DemoEmail]
	s.mu.Unlock()
	return s.tokens.issue(acc.ID, acc.Email, s.now())
}

// SessionCount returns how many sessions exist
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Handler builds the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.faults)

	r.Route("/api", func(api chi.Router) {
		api.Post("/free/message", s.handleFreeMessage)

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/login", s.handleLogin)
			auth.Post("/register", s.handleRegister)
			auth.With(s.requireAuth).Get("/verify", s.handleVerify)
		})

		api.Route("/users/chat", func(chat chi.Router) {
			chat.Use(s.requireAuth)
			chat.Post("/message", s.handleChatMessage)
			chat.Get("/history", s.handleHistory)
			chat.Get("/history/{sessionID}", s.handleGetSession)
			chat.Delete("/history/{sessionID}", s.handleDeleteSession)
			chat.Get("/stats", s.handleStats)
		})
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Str("request_id", r.Header.Get("X-Request-ID")).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) faults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.delay > 0 {
			select {
			case <-time.After(s.delay):
			case <-r.Context().Done():
				return
			}
		}
		for {
			n := s.failNext.Load()
			if n <= 0 {
				break
			}
			if s.failNext.CompareAndSwap(n, n-1) {
				respondError(w, http.StatusInternalServerError, "injected failure")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe serves until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("mock server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// userSessions returns the caller's sessions, most recent first.
// Callers hold s.mu.
func (s *Server) userSessions(userID string) []*chatSession {
	var out []*chatSession
	for _, cs := range s.sessions {
		if cs.UserID == userID {
			out = append(out, cs)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	return out
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
