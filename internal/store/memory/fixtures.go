package memory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cricketduel/backend/internal/models"
)

// Fixtures is the catalogue of teams, players and matches the store starts
// with when no score feed importer populates it.
type Fixtures struct {
	Teams   []models.Team             `yaml:"teams"`
	Players []models.Player           `yaml:"players"`
	Matches []models.Match            `yaml:"matches"`
	Stats   []models.PlayerMatchStats `yaml:"stats"`
}

func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures file: %w", err)
	}

	return ParseFixtures(data)
}

func ParseFixtures(data []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}
	return &f, nil
}

// Seed loads the catalogue. Records keep their fixture IDs.
func (s *Store) Seed(f *Fixtures) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state
	for _, t := range f.Teams {
		st.teams[t.ID] = t
		st.bumpID(t.ID)
	}
	for _, p := range f.Players {
		st.players[p.ID] = p
		st.bumpID(p.ID)
	}
	for _, m := range f.Matches {
		st.matches[m.ID] = m
		st.bumpID(m.ID)
	}
	for _, ps := range f.Stats {
		st.stats[statsKey{playerID: ps.PlayerID, matchID: ps.MatchID}] = ps
	}
}

func (st *state) bumpID(id int64) {
	if id > st.nextID {
		st.nextID = id
	}
}
