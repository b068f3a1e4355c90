package models

import "time"

type MatchStatus string

const (
	MatchUpcoming  MatchStatus = "upcoming"
	MatchLive      MatchStatus = "live"
	MatchCompleted MatchStatus = "completed"
	MatchAbandoned MatchStatus = "abandoned"
)

type Team struct {
	ID        int64  `json:"id" db:"id" yaml:"id"`
	APIID     string `json:"api_id" db:"api_id" yaml:"api_id"`
	Name      string `json:"name" db:"name" yaml:"name"`
	ShortName string `json:"short_name" db:"short_name" yaml:"short_name"`
}

type Player struct {
	ID     int64  `json:"id" db:"id" yaml:"id"`
	APIID  string `json:"api_id" db:"api_id" yaml:"api_id"`
	Name   string `json:"name" db:"name" yaml:"name"`
	TeamID int64  `json:"team_id" db:"team_id" yaml:"team_id"`
	Role   string `json:"role" db:"role" yaml:"role"`
}

type Match struct {
	ID        int64       `json:"id" db:"id" yaml:"id"`
	APIID     string      `json:"api_id" db:"api_id" yaml:"api_id"`
	TeamAID   int64       `json:"team_a_id" db:"team_a_id" yaml:"team_a_id"`
	TeamBID   int64       `json:"team_b_id" db:"team_b_id" yaml:"team_b_id"`
	Title     string      `json:"title" db:"title" yaml:"title"`
	Venue     string      `json:"venue" db:"venue" yaml:"venue"`
	MatchDate time.Time   `json:"match_date" db:"match_date" yaml:"match_date"`
	Status    MatchStatus `json:"status" db:"status" yaml:"status"`
}

// Bettable reports whether new sessions may still be opened on the match.
func (m *Match) Bettable() bool {
	return m.Status == MatchUpcoming || m.Status == MatchLive
}

func (m *Match) HasTeam(teamID int64) bool {
	return m.TeamAID == teamID || m.TeamBID == teamID
}

type PlayerMatchStats struct {
	PlayerID   int64     `json:"player_id" db:"player_id" yaml:"player_id"`
	MatchID    int64     `json:"match_id" db:"match_id" yaml:"match_id"`
	RunsScored int       `json:"runs_scored" db:"runs_scored" yaml:"runs_scored"`
	BallsFaced int       `json:"balls_faced" db:"balls_faced" yaml:"balls_faced"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at" yaml:"-"`
}

// PlayerStat is a final batting line as reported by a score feed.
type PlayerStat struct {
	Runs       int `json:"runs"`
	BallsFaced int `json:"balls_faced"`
}
