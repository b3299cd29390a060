package history

import (
	"math"

	"github.com/neilberkman/pitchside/internal/core/models"
)

const recentLimit = 5

// TopicCount is one row of the topic distribution
type TopicCount struct {
	Topic models.Topic
	Count int
	// Share is Count over the number of conversations, 0..1
	Share float64
}

// Aggregate computes dashboard stats from a history list. Conversations
// without a message count count as one message.
func Aggregate(sessions []models.Session) models.Stats {
	stats := models.Stats{
		TotalChats:      len(sessions),
		MostActiveTopic: models.TopicGeneral.Label(),
	}
	for _, s := range sessions {
		stats.TotalMessages += messageCount(s)
	}
	stats.AvgMessagesPerChat = roundedAverage(stats.TotalMessages, stats.TotalChats)

	dist := TopicDistribution(sessions)
	best := 0
	for _, tc := range dist {
		if tc.Count > best {
			best = tc.Count
			stats.MostActiveTopic = tc.Topic.Label()
		}
	}

	n := min(recentLimit, len(sessions))
	stats.RecentActivity = append([]models.Session(nil), sessions[:n]...)
	return stats
}

// TopicDistribution counts conversations per topic in models.Topics order,
// omitting topics with no conversations.
func TopicDistribution(sessions []models.Session) []TopicCount {
	counts := make(map[models.Topic]int, len(models.Topics))
	for _, s := range sessions {
		counts[models.ParseTopic(string(s.Topic))]++
	}

	var out []TopicCount
	for _, t := range models.Topics {
		if counts[t] == 0 {
			continue
		}
		out = append(out, TopicCount{
			Topic: t,
			Count: counts[t],
			Share: float64(counts[t]) / float64(len(sessions)),
		})
	}
	return out
}

func messageCount(s models.Session) int {
	if s.MessageCount > 0 {
		return s.MessageCount
	}
	return 1
}

func roundedAverage(total, n int) float64 {
	if n == 0 {
		return 0
	}
	return math.Round(float64(total) / float64(n))
}
