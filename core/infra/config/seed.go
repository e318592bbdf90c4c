package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedTeam declares a team bootstrapped into the store at startup.
type SeedTeam struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
}

// SeedUser declares a user plus their team memberships, in order.
type SeedUser struct {
	ID     int64   `yaml:"id"`
	Email  string  `yaml:"email"`
	Name   string  `yaml:"name,omitempty"`
	APIKey string  `yaml:"api_key,omitempty"`
	Teams  []int64 `yaml:"teams,omitempty"`
}

// Seed describes the initial directory state for a console deployment.
type Seed struct {
	Teams []SeedTeam `yaml:"teams,omitempty"`
	Users []SeedUser `yaml:"users,omitempty"`
}

// ParseSeed parses seed data from YAML bytes.
func ParseSeed(data []byte) (*Seed, error) {
	if len(data) == 0 {
		return nil, errors.New("seed config is empty")
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed config: %w", err)
	}
	seen := map[int64]bool{}
	for _, team := range seed.Teams {
		if team.ID <= 0 {
			return nil, fmt.Errorf("seed team %q has invalid id %d", team.Name, team.ID)
		}
		if seen[team.ID] {
			return nil, fmt.Errorf("seed team id %d declared twice", team.ID)
		}
		seen[team.ID] = true
	}
	for _, user := range seed.Users {
		for _, teamID := range user.Teams {
			if !seen[teamID] {
				return nil, fmt.Errorf("seed user %q references unknown team %d", user.Email, teamID)
			}
		}
	}
	return &seed, nil
}

// LoadSeed reads a YAML seed file.
func LoadSeed(path string) (*Seed, error) {
	if path == "" {
		return nil, errors.New("seed config path is empty")
	}
	// #nosec G304 -- seed path is operator-provided.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed config %s: %w", path, err)
	}
	seed, err := ParseSeed(data)
	if err != nil {
		return nil, fmt.Errorf("load seed config %s: %w", path, err)
	}
	return seed, nil
}
