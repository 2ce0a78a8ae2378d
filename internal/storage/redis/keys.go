package redis

import (
	"fmt"

	"github.com/mcoot/allfence/internal/model"
)

// Key prefix for all ranking data
const keyPrefix = "allfence"

// fencerKey returns the Redis key for a Fencer
func fencerKey(id model.FencerID) string {
	return fmt.Sprintf("%s:fencer:%s", keyPrefix, id)
}

// fencersIndexKey returns the Redis key for the SET of fencer IDs
func fencersIndexKey() string {
	return fmt.Sprintf("%s:idx:fencers", keyPrefix)
}

// clubKey returns the Redis key for a Club
func clubKey(id model.ClubID) string {
	return fmt.Sprintf("%s:club:%s", keyPrefix, id)
}

// clubsIndexKey returns the Redis key for the SET of club IDs
func clubsIndexKey() string {
	return fmt.Sprintf("%s:idx:clubs", keyPrefix)
}

// tournamentKey returns the Redis key for a Tournament
func tournamentKey(id model.TournamentID) string {
	return fmt.Sprintf("%s:tournament:%s", keyPrefix, id)
}

// tournamentsIndexKey returns the Redis key for the SET of tournament IDs
func tournamentsIndexKey() string {
	return fmt.Sprintf("%s:idx:tournaments", keyPrefix)
}

// adminKey returns the Redis key for an Admin
func adminKey(username string) string {
	return fmt.Sprintf("%s:admin:%s", keyPrefix, username)
}

// registrationsKey returns the Redis key for the HASH of fencer ID -> registration
func registrationsKey(id model.TournamentID) string {
	return fmt.Sprintf("%s:registrations:%s", keyPrefix, id)
}

// resultLogKey returns the Redis key for the LIST of every result record in append order
func resultLogKey() string {
	return fmt.Sprintf("%s:results", keyPrefix)
}

// tournamentResultsKey returns the Redis key for the LIST of a tournament's records
func tournamentResultsKey(id model.TournamentID) string {
	return fmt.Sprintf("%s:results:tournament:%s", keyPrefix, id)
}

// fencerResultsKey returns the Redis key for the LIST of a fencer's records
func fencerResultsKey(id model.FencerID) string {
	return fmt.Sprintf("%s:results:fencer:%s", keyPrefix, id)
}

// rankingKey returns the Redis key for the HASH of fencer ID -> ranking entry in a bracket
func rankingKey(bracket model.AgeBracket) string {
	return fmt.Sprintf("%s:ranking:%s", keyPrefix, bracket)
}

// allRankingKeys returns the ranking keys for every bracket
func allRankingKeys() []string {
	keys := make([]string, 0, len(model.AgeRanges))
	for _, r := range model.AgeRanges {
		keys = append(keys, rankingKey(r.Bracket))
	}
	return keys
}
