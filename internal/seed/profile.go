package seed

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile controls the shape of a generated demo dataset. Profiles are
// loaded from YAML so a demo can be tuned without rebuilding.
type Profile struct {
	Locations     int      `yaml:"locations"`
	DaysOfHistory int      `yaml:"daysOfHistory"`
	MissedPickups int      `yaml:"missedPickups"`
	LatePickupPct float64  `yaml:"latePickupPct"`
	Regions       []string `yaml:"regions"`
	Seed          int64    `yaml:"seed"`
}

// DefaultProfile mirrors the canonical demo dataset: 50 stores, 90 days of
// history, 7 missed pickups scattered over the recent quarter.
func DefaultProfile() Profile {
	return Profile{
		Locations:     50,
		DaysOfHistory: 90,
		MissedPickups: 7,
		LatePickupPct: 0.08,
		Regions:       []string{"North", "South", "East", "West"},
		Seed:          42,
	}
}

// LoadProfile reads a YAML profile, filling unset fields from the default.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()

	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("cannot read profile %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("cannot parse profile %s: %w", path, err)
	}

	if err := p.validate(); err != nil {
		return p, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

func (p Profile) validate() error {
	if p.Locations < 3 {
		return fmt.Errorf("locations must be >= 3 (the scenario stores are always present)")
	}
	if p.DaysOfHistory < 7 {
		return fmt.Errorf("daysOfHistory must be >= 7")
	}
	if p.MissedPickups < 0 {
		return fmt.Errorf("missedPickups must be >= 0")
	}
	if p.LatePickupPct < 0 || p.LatePickupPct > 1 {
		return fmt.Errorf("latePickupPct must be between 0 and 1")
	}
	if len(p.Regions) == 0 {
		return fmt.Errorf("at least one region is required")
	}
	return nil
}
