package domain

import "time"

// PracticeRecord is one finished training session.
type PracticeRecord struct {
	SessionID  string    `json:"session_id"`
	Color      string    `json:"color"`
	LineName   string    `json:"line_name"`
	Moves      []string  `json:"moves"`
	Deviations int       `json:"deviations"`
	EndReason  string    `json:"end_reason"`
	ECOCode    string    `json:"eco_code,omitempty"`
	ECOTitle   string    `json:"eco_title,omitempty"`
	Eval       *float64  `json:"eval,omitempty"`
	TopMoves   []string  `json:"top_moves,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

func (r PracticeRecord) Duration() time.Duration {
	if r.EndedAt.Before(r.StartedAt) {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}
