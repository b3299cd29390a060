package mockapi

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{"success": false, "error": message})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (s *Server) handleFreeMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message string `json:"message" validate:"required"`
	}
	if !s.decode(w, r, &payload) {
		return
	}

	topic := Classify(payload.Message)
	respondJSON(w, http.StatusOK, map[string]any{
		"response":   s.responder(payload.Message, topic),
		"isOffTopic": topic == TopicGeneral,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	if !s.decode(w, r, &payload) {
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[payload.Email]
	s.mu.Unlock()
	if !ok || acc.password != payload.Password {
		respondJSON(w, http.StatusOK, map[string]any{"success": false, "message": "Invalid email or password"})
		return
	}

	token, err := s.tokens.issue(acc.ID, acc.Email, s.now())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "token": token, "user": acc})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username" validate:"required,min=3"`
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=6"`
	}
	if !s.decode(w, r, &payload) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[payload.Email]; exists {
		respondJSON(w, http.StatusConflict, map[string]any{"success": false, "message": "Email already registered"})
		return
	}
	s.accounts[payload.Email] = &account{
		ID:       uuid.NewString(),
		Username: payload.Username,
		Email:    payload.Email,
		password: payload.Password,
	}
	respondJSON(w, http.StatusCreated, map[string]any{"success": true})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	c := claimsFrom(r)

	s.mu.Lock()
	acc, ok := s.accounts[c.Email]
	s.mu.Unlock()
	if !ok {
		respondError(w, http.StatusUnauthorized, "unknown user")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "user": acc})
}

func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message   string `json:"message" validate:"required"`
		SessionID string `json:"sessionId"`
	}
	if !s.decode(w, r, &payload) {
		return
	}
	userID := claimsFrom(r).Subject

	sessionID := payload.SessionID
	if sessionID == "" {
		sessionID = "session_" + uuid.NewString()
	}

	topic := Classify(payload.Message)
	reply := s.responder(payload.Message, topic)
	now := s.now()

	s.mu.Lock()
	cs, ok := s.sessions[sessionID]
	if ok && cs.UserID != userID {
		s.mu.Unlock()
		respondError(w, http.StatusForbidden, "session belongs to another user")
		return
	}
	if !ok {
		cs = &chatSession{
			SessionID: sessionID,
			UserID:    userID,
			Title:     truncate(payload.Message, 30),
			CreatedAt: now,
		}
		s.sessions[sessionID] = cs
	}
	cs.Messages = append(cs.Messages,
		message{ID: uuid.NewString(), Content: payload.Message, Sender: "user", Timestamp: now},
		message{ID: uuid.NewString(), Content: reply, Sender: "bot", Timestamp: now.Add(time.Millisecond)},
	)
	cs.Topic = mergeTopic(cs.Topic, topic)
	cs.Preview = truncate(reply, 50)
	cs.MessageCount = len(cs.Messages)
	cs.LastActivity = now
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"response":  reply,
		"sessionId": sessionID,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	page := queryInt(r, "page", 1)
	userID := claimsFrom(r).Subject

	s.mu.Lock()
	all := s.userSessions(userID)
	start := (page - 1) * limit
	end := start + limit
	if start > len(all) {
		start = len(all)
	}
	if end > len(all) {
		end = len(all)
	}

	chats := make([]map[string]any, 0, end-start)
	for _, cs := range all[start:end] {
		chats = append(chats, map[string]any{
			"_id":          cs.SessionID,
			"title":        cs.Title,
			"preview":      cs.Preview,
			"topic":        cs.Topic,
			"messageCount": cs.MessageCount,
			"lastActivity": cs.LastActivity,
			"createdAt":    cs.CreatedAt,
		})
	}
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, map[string]any{"success": true, "chats": chats})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	userID := claimsFrom(r).Subject

	s.mu.Lock()
	cs, ok := s.sessions[sessionID]
	var snapshot chatSession
	if ok {
		snapshot = *cs
		snapshot.Messages = append([]message(nil), cs.Messages...)
	}
	s.mu.Unlock()

	if !ok || snapshot.UserID != userID {
		respondError(w, http.StatusNotFound, "chat not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "chat": snapshot})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	userID := claimsFrom(r).Subject

	s.mu.Lock()
	cs, ok := s.sessions[sessionID]
	if ok && cs.UserID == userID {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()

	if !ok || cs.UserID != userID {
		respondError(w, http.StatusNotFound, "chat not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	userID := claimsFrom(r).Subject

	s.mu.Lock()
	all := s.userSessions(userID)
	totalMessages := 0
	topics := make(map[Topic]int)
	for _, cs := range all {
		totalMessages += cs.MessageCount
		topics[cs.Topic]++
	}
	mostActive, best := "None", 0
	for _, t := range []Topic{TopicChelsea, TopicFrontend, TopicMixed, TopicGeneral} {
		if topics[t] > best {
			mostActive, best = string(t), topics[t]
		}
	}
	avg := 0.0
	if len(all) > 0 {
		avg = math.Round(float64(totalMessages)/float64(len(all))*10) / 10
	}

	recent := make([]map[string]any, 0, 5)
	for i, cs := range all {
		if i == 5 {
			break
		}
		recent = append(recent, map[string]any{
			"sessionId": cs.SessionID,
			"title":     cs.Title,
			"topic":     cs.Topic,
			"timestamp": cs.LastActivity,
			"lastMessage": map[string]any{
				"content": cs.Preview,
			},
		})
	}
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"stats": map[string]any{
			"totalChats":         len(all),
			"totalMessages":      totalMessages,
			"avgMessagesPerChat": avg,
			"mostActiveTopic":    mostActive,
		},
		"recentActivity": recent,
	})
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
