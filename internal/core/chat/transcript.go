// Package chat holds the in-memory conversation and drives a send cycle
// from user input to a fully revealed reply.
package chat

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/neilberkman/pitchside/internal/core/models"
)

const (
	titleRunes   = 30
	previewRunes = 50
)

// SessionCreated is emitted once, when the first exchange of a brand-new
// conversation completes, so a dashboard can list it without a refetch.
type SessionCreated struct {
	SessionID string
	Title     string
	Preview   string
	Topic     models.Topic
	CreatedAt time.Time
	Messages  [2]models.Message
}

// Session converts the event into a history entry
func (e SessionCreated) Session() models.Session {
	return models.Session{
		SessionID:    e.SessionID,
		Title:        e.Title,
		Preview:      e.Preview,
		Topic:        e.Topic,
		MessageCount: 2,
		LastActivity: e.CreatedAt,
		CreatedAt:    e.CreatedAt,
		Messages:     e.Messages[:],
	}
}

// Transcript is the ordered message list of the conversation on screen
type Transcript struct {
	mu        sync.Mutex
	messages  []models.Message
	sessionID string
	title     string
	topic     models.Topic
	hydrated  bool
	lastID    int64
	lastTime  time.Time
	now       func() time.Time
}

// NewTranscript returns an empty transcript
func NewTranscript() *Transcript {
	return &Transcript{now: time.Now, topic: models.TopicGeneral}
}

// nextID returns a timestamp-derived id that is strictly greater than any
// id handed out before. Callers hold t.mu.
func (t *Transcript) nextID(at time.Time) string {
	id := at.UnixMilli()
	if id <= t.lastID {
		id = t.lastID + 1
	}
	t.lastID = id
	return strconv.FormatInt(id, 10)
}

// stamp returns now, never earlier than the previous message. Callers hold t.mu.
func (t *Transcript) stamp() time.Time {
	now := t.now()
	if now.Before(t.lastTime) {
		now = t.lastTime
	}
	t.lastTime = now
	return now
}

func (t *Transcript) push(m models.Message) models.Message {
	m.Timestamp = t.stamp()
	m.ID = t.nextID(m.Timestamp)
	m.SessionID = t.sessionID
	t.messages = append(t.messages, m)
	return m
}

// AppendUser adds a message typed by the user
func (t *Transcript) AppendUser(text string) models.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.push(models.Message{Text: text, Sender: models.SenderUser})
}

// AppendBot adds an assistant reply to the latest user message. It returns
// a SessionCreated event when this is the first reply of a conversation
// that had no session id yet and the reply assigned one.
func (t *Transcript) AppendBot(text, sessionID string, offTopic bool) (models.Message, *SessionCreated) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.appendBot(t.lastUserID(), text, sessionID, offTopic)
}

// AppendReply is AppendBot for a reply to a specific user message. The
// SessionCreated event pairs that message with the reply, so an earlier
// failed prompt never titles the conversation.
func (t *Transcript) AppendReply(prompt models.Message, text, sessionID string, offTopic bool) (models.Message, *SessionCreated) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.appendBot(prompt.ID, text, sessionID, offTopic)
}

// appendBot does the work for AppendBot and AppendReply. Callers hold t.mu.
func (t *Transcript) appendBot(promptID, text, sessionID string, offTopic bool) (models.Message, *SessionCreated) {
	var created *SessionCreated
	if sessionID != "" && t.sessionID == "" && !t.hydrated {
		t.sessionID = sessionID
		for i := range t.messages {
			t.messages[i].SessionID = sessionID
		}
		created = &SessionCreated{SessionID: sessionID}
	}

	m := t.push(models.Message{Text: text, Sender: models.SenderBot, OffTopic: offTopic})

	if created != nil {
		user := t.userByID(promptID)
		created.Title = Truncate(user.Text, titleRunes)
		created.Preview = Truncate(text, previewRunes)
		created.Topic = t.topic
		created.CreatedAt = m.Timestamp
		created.Messages = [2]models.Message{user, m}
		t.title = created.Title
	}
	return m, created
}

// lastUserID returns the id of the newest user message. Callers hold t.mu.
func (t *Transcript) lastUserID() string {
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].Sender == models.SenderUser {
			return t.messages[i].ID
		}
	}
	return ""
}

// userByID returns the user message with the given id. Callers hold t.mu.
func (t *Transcript) userByID(id string) models.Message {
	for _, m := range t.messages {
		if m.Sender == models.SenderUser && m.ID == id {
			return m
		}
	}
	return models.Message{}
}

// AppendError adds a synthesized bot message that reports a failed turn
func (t *Transcript) AppendError(text string) models.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.push(models.Message{Text: text, Sender: models.SenderBot, IsError: true})
}

// Hydrate replaces the transcript with a persisted conversation
func (t *Transcript) Hydrate(s models.Session) {
	t.mu.Lock()
	defer t.mu.Unlock()

	msgs := make([]models.Message, len(s.Messages))
	copy(msgs, s.Messages)
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})

	seen := make(map[string]bool, len(msgs))
	t.lastTime = time.Time{}
	for i := range msgs {
		msgs[i].Timestamp = msgs[i].Timestamp.Local()
		msgs[i].SessionID = s.SessionID
		if msgs[i].ID == "" || seen[msgs[i].ID] {
			msgs[i].ID = t.nextID(msgs[i].Timestamp)
		}
		seen[msgs[i].ID] = true
		if msgs[i].Timestamp.After(t.lastTime) {
			t.lastTime = msgs[i].Timestamp
		}
	}

	t.messages = msgs
	t.sessionID = s.SessionID
	t.title = s.Title
	t.topic = models.ParseTopic(string(s.Topic))
	t.hydrated = true
}

// Reset clears the transcript for a new conversation
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.messages = nil
	t.sessionID = ""
	t.title = ""
	t.topic = models.TopicGeneral
	t.hydrated = false
}

// Messages returns a copy of the message list
func (t *Transcript) Messages() []models.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]models.Message(nil), t.messages...)
}

// Len returns the number of messages
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

// SessionID returns the current conversation id, empty for a new chat
func (t *Transcript) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// Title returns the conversation title, if known
func (t *Transcript) Title() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.title
}

// Topic returns the conversation topic
func (t *Transcript) Topic() models.Topic {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.topic
}

// Hydrated reports whether the transcript was loaded from history
func (t *Transcript) Hydrated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hydrated
}

// Snapshot returns the transcript as a session value
func (t *Transcript) Snapshot() models.Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := models.Session{
		SessionID:    t.sessionID,
		Title:        t.title,
		Topic:        t.topic,
		MessageCount: len(t.messages),
		Messages:     append([]models.Message(nil), t.messages...),
	}
	if n := len(t.messages); n > 0 {
		s.CreatedAt = t.messages[0].Timestamp
		s.LastActivity = t.messages[n-1].Timestamp
	}
	return s
}

// Truncate shortens s to n runes and appends "..." when it was cut
func Truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}
