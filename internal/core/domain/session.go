package domain

// MaxSessionHistory bounds the number of messages a session keeps.
const MaxSessionHistory = 10

// SessionMessage is one query/response exchange.
type SessionMessage struct {
	Query    string `json:"query"`
	Response string `json:"response"`
}

// RagSession holds recent queries used to expand follow-up queries.
type RagSession struct {
	ID      string           `json:"id"`
	History []SessionMessage `json:"history"`
}

// NewRagSession creates an empty session with the given id.
func NewRagSession(id string) *RagSession {
	return &RagSession{ID: id}
}

// Append records an exchange, evicting the oldest entries beyond
// MaxSessionHistory.
func (s *RagSession) Append(query, response string) {
	s.History = append(s.History, SessionMessage{Query: query, Response: response})
	if n := len(s.History); n > MaxSessionHistory {
		s.History = append([]SessionMessage(nil), s.History[n-MaxSessionHistory:]...)
	}
}

// RecentQueries returns up to n queries, most recent first.
func (s *RagSession) RecentQueries(n int) []string {
	if s == nil || n <= 0 {
		return nil
	}
	out := make([]string, 0, n)
	for i := len(s.History) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.History[i].Query)
	}
	return out
}
