package devotion

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Badge is an achievement unlocked once both criteria are met.
type Badge struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description" yaml:"description"`
	Criteria    BadgeCriteria `json:"criteria" yaml:"criteria"`
}

// BadgeCriteria holds the minimum totals for a badge.
type BadgeCriteria struct {
	Prayers     int `json:"prayers" yaml:"prayers"`
	Invocations int `json:"invocations" yaml:"invocations"`
}

// EarnedBy reports whether both totals reach the badge thresholds.
func (b Badge) EarnedBy(t Totals) bool {
	return t.TotalPrayers >= b.Criteria.Prayers && t.TotalInvocations >= b.Criteria.Invocations
}

// Totals are the aggregate counts badges are evaluated against.
type Totals struct {
	TotalPrayers     int `json:"total_prayers"`
	TotalInvocations int `json:"total_invocations"`
}

// Tally counts prayers and sums invocation recitations.
func Tally(prayers []Prayer, invocations []Invocation) Totals {
	t := Totals{TotalPrayers: len(prayers)}
	for _, inv := range invocations {
		t.TotalInvocations += inv.Count
	}
	return t
}

// EarnedBadges returns the badges of table whose criteria are all met, in
// table order.
func EarnedBadges(totalPrayers, totalInvocations int, table []Badge) []Badge {
	t := Totals{TotalPrayers: totalPrayers, TotalInvocations: totalInvocations}
	earned := make([]Badge, 0, len(table))
	for _, b := range table {
		if b.EarnedBy(t) {
			earned = append(earned, b)
		}
	}
	return earned
}

// DefaultBadges returns the built-in badge table. IDs must remain stable:
// clients key on them.
func DefaultBadges() []Badge {
	return []Badge{
		{
			ID:          "first_prayer",
			Name:        "Premier pas",
			Description: "Enregistrer sa première prière",
			Criteria:    BadgeCriteria{Prayers: 1},
		},
		{
			ID:          "first_dhikr",
			Name:        "Première invocation",
			Description: "Réciter une première invocation",
			Criteria:    BadgeCriteria{Invocations: 1},
		},
		{
			ID:          "steady_week",
			Name:        "Semaine régulière",
			Description: "35 prières, l'équivalent d'une semaine complète",
			Criteria:    BadgeCriteria{Prayers: 35},
		},
		{
			ID:          "dhikr_100",
			Name:        "Cœur qui se souvient",
			Description: "100 récitations d'invocations",
			Criteria:    BadgeCriteria{Invocations: 100},
		},
		{
			ID:          "balanced",
			Name:        "Équilibre",
			Description: "35 prières et 100 récitations",
			Criteria:    BadgeCriteria{Prayers: 35, Invocations: 100},
		},
		{
			ID:          "steady_month",
			Name:        "Mois assidu",
			Description: "150 prières, l'équivalent d'un mois complet",
			Criteria:    BadgeCriteria{Prayers: 150},
		},
		{
			ID:          "dhikr_1000",
			Name:        "Langue humide de dhikr",
			Description: "1000 récitations d'invocations",
			Criteria:    BadgeCriteria{Invocations: 1000},
		},
		{
			ID:          "pillar",
			Name:        "Pilier",
			Description: "500 prières et 5000 récitations",
			Criteria:    BadgeCriteria{Prayers: 500, Invocations: 5000},
		},
	}
}

type badgeFile struct {
	Badges []Badge `yaml:"badges"`
}

// LoadBadgeTable decodes a YAML badge table of the form
//
//	badges:
//	  - id: first_prayer
//	    name: Premier pas
//	    criteria: {prayers: 1, invocations: 0}
func LoadBadgeTable(r io.Reader) ([]Badge, error) {
	var file badgeFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("badge table is empty")
		}
		return nil, fmt.Errorf("decode badge table: %w", err)
	}
	if err := validateBadgeTable(file.Badges); err != nil {
		return nil, err
	}
	return file.Badges, nil
}

func validateBadgeTable(table []Badge) error {
	if len(table) == 0 {
		return errors.New("badge table is empty")
	}
	seen := make(map[string]struct{}, len(table))
	for i, b := range table {
		id := strings.TrimSpace(b.ID)
		if id == "" {
			return fmt.Errorf("badge %d: id is required", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("badge %s: duplicate id", id)
		}
		seen[id] = struct{}{}
		if b.Criteria.Prayers < 0 || b.Criteria.Invocations < 0 {
			return fmt.Errorf("badge %s: criteria must be non-negative", id)
		}
	}
	return nil
}
