package advisor

import "github.com/ashureev/advisor/internal/domain"

// EstimateTokens approximates the token count of a message at roughly four
// characters per token.
func EstimateTokens(m domain.Message) int {
	return (len(m.Content)+3)/4 + 4
}

// TruncateHistory keeps the most recent messages that fit in budget tokens.
// A budget of zero or less keeps everything. The returned slice never shares
// its backing array with messages.
func TruncateHistory(messages []domain.Message, budget int) []domain.Message {
	if budget <= 0 {
		return append([]domain.Message(nil), messages...)
	}
	used := 0
	start := len(messages)
	for i := len(messages) - 1; i >= 0; i-- {
		cost := EstimateTokens(messages[i])
		if used+cost > budget {
			break
		}
		used += cost
		start = i
	}
	return append([]domain.Message(nil), messages[start:]...)
}
