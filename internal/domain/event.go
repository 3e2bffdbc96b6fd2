package domain

const (
	EventNameScoreSubmitted = "score.submitted"
	EventNameRosterChanged  = "roster.changed"
)

type EventScoreSubmitted struct {
	EventID    string
	UserID     string
	TeamID     string
	Score      int
	PerfectRun bool
}

func (EventScoreSubmitted) Name() string { return EventNameScoreSubmitted }

type EventRosterChanged struct {
	EventID string
	Seats   int
}

func (EventRosterChanged) Name() string { return EventNameRosterChanged }
