package mockapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)

	var out map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &out)
	return resp, out
}

func TestFreeMessage(t *testing.T) {
	h := New().Handler()

	resp, body := doJSON(t, h, http.MethodPost, "/api/free/message", "", map[string]string{"message": "Who scored for Chelsea?"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if body["response"] == "" {
		t.Errorf("empty response")
	}
	if body["isOffTopic"] != false {
		t.Errorf("chelsea question flagged off-topic")
	}

	resp, _ = doJSON(t, h, http.MethodPost, "/api/free/message", "", map[string]string{"message": ""})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("empty message: expected 400, got %d", resp.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	h := New().Handler()

	resp, _ := doJSON(t, h, http.MethodGet, "/api/users/chat/history", "", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.Code)
	}

	resp, _ = doJSON(t, h, http.MethodGet, "/api/users/chat/history", "garbage", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("bad token: expected 401, got %d", resp.Code)
	}
}

func TestLogin(t *testing.T) {
	h := New().Handler()

	_, body := doJSON(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{"email": DemoEmail, "password": DemoPassword})
	if body["success"] != true || body["token"] == "" {
		t.Fatalf("login failed: %v", body)
	}

	_, body = doJSON(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{"email": DemoEmail, "password": "nope"})
	if body["success"] != false {
		t.Errorf("wrong password accepted: %v", body)
	}
}

func TestChatLifecycle(t *testing.T) {
	srv := New()
	h := srv.Handler()
	token, err := srv.IssueToken()
	if err != nil {
		t.Fatal(err)
	}

	_, body := doJSON(t, h, http.MethodPost, "/api/users/chat/message", token, map[string]string{
		"message":   "Explain React hooks",
		"sessionId": "session_1",
	})
	if body["sessionId"] != "session_1" {
		t.Fatalf("sessionId = %v", body["sessionId"])
	}
	doJSON(t, h, http.MethodPost, "/api/users/chat/message", token, map[string]string{
		"message":   "And what about Chelsea?",
		"sessionId": "session_1",
	})

	_, body = doJSON(t, h, http.MethodGet, "/api/users/chat/history/session_1", token, nil)
	chat, _ := body["chat"].(map[string]any)
	msgs, _ := chat["messages"].([]any)
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	if chat["topic"] != string(TopicMixed) {
		t.Errorf("topic = %v, want mixed", chat["topic"])
	}

	_, body = doJSON(t, h, http.MethodGet, "/api/users/chat/stats", token, nil)
	stats, _ := body["stats"].(map[string]any)
	if stats["totalChats"] != float64(1) || stats["totalMessages"] != float64(4) {
		t.Errorf("stats = %v", stats)
	}

	resp, _ := doJSON(t, h, http.MethodDelete, "/api/users/chat/history/session_1", token, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", resp.Code)
	}
	resp, _ = doJSON(t, h, http.MethodDelete, "/api/users/chat/history/session_1", token, nil)
	if resp.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", resp.Code)
	}
}

func TestFailNext(t *testing.T) {
	srv := New()
	h := srv.Handler()
	srv.FailNext(1)

	resp, _ := doJSON(t, h, http.MethodPost, "/api/free/message", "", map[string]string{"message": "hi"})
	if resp.Code != http.StatusInternalServerError {
		t.Errorf("expected injected 500, got %d", resp.Code)
	}
	resp, _ = doJSON(t, h, http.MethodPost, "/api/free/message", "", map[string]string{"message": "hi"})
	if resp.Code != http.StatusOK {
		t.Errorf("expected recovery, got %d", resp.Code)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want Topic
	}{
		{"Is Palmer playing on Sunday?", TopicChelsea},
		{"How do I memoize a React component?", TopicFrontend},
		{"Build a Chelsea fan site in React", TopicMixed},
		{"What's the weather?", TopicGeneral},
	}
	for _, tt := range tests {
		if got := Classify(tt.text); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}
