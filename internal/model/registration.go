package model

import "time"

// Registration links a fencer to a tournament before results are final
type Registration struct {
	TournamentID TournamentID
	FencerID     FencerID
	Bracket      AgeBracket // as of the tournament date
	RegisteredAt time.Time
}
