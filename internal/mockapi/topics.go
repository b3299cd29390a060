package mockapi

import (
	"fmt"
	"strings"
)

// Topic mirrors the backend's conversation classification
type Topic string

const (
	TopicChelsea  Topic = "chelsea"
	TopicFrontend Topic = "frontend"
	TopicMixed    Topic = "mixed"
	TopicGeneral  Topic = "general"
)

var chelseaKeywords = []string{
	"chelsea", "blues", "stamford bridge", "premier league", "champions league",
	"lampard", "drogba", "terry", "palmer", "enzo", "mudryk", "pochettino", "maresca",
}

var frontendKeywords = []string{
	"react", "javascript", "typescript", "css", "html", "frontend", "component",
	"hook", "vue", "angular", "tailwind", "dom", "webpack", "vite",
}

// Classify picks a topic by keyword
func Classify(text string) Topic {
	lower := strings.ToLower(text)
	chelsea := containsAny(lower, chelseaKeywords)
	frontend := containsAny(lower, frontendKeywords)

	switch {
	case chelsea && frontend:
		return TopicMixed
	case chelsea:
		return TopicChelsea
	case frontend:
		return TopicFrontend
	default:
		return TopicGeneral
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// mergeTopic widens a session topic as new messages arrive
func mergeTopic(current, next Topic) Topic {
	switch {
	case current == "" || current == TopicGeneral:
		return next
	case next == TopicGeneral || next == current:
		return current
	default:
		return TopicMixed
	}
}

// DefaultResponder answers with a canned line per topic
func DefaultResponder(msg string, topic Topic) string {
	switch topic {
	case TopicChelsea:
		return fmt.Sprintf("Great Chelsea question! Here's what I know about %q: the Blues have a rich history at Stamford Bridge.", truncate(msg, 40))
	case TopicFrontend:
		return fmt.Sprintf("Good frontend question. For %q, start with small, composable components and measure before optimizing.", truncate(msg, 40))
	case TopicMixed:
		return "You're mixing football and code. Think of a squad like a component tree: clear roles, clean interfaces."
	default:
		return "I specialize in Chelsea FC and frontend development. Ask me about the Blues or about building for the web!"
	}
}
