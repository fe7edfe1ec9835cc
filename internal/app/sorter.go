package app

import (
	"strconv"
	"strings"

	"house-points-service/internal/domain"
)

// Sorter maps quiz answers onto one of the four houses. It is pure: no
// side effects, identical output for identical input.
//
// Two answer shapes are accepted. When every answer parses as an integer
// the numeric form applies: each value is clamped into [0,3] and votes for
// the house at that index of the canonical ordering. Otherwise the keyword
// form applies: each answer is scanned case-insensitively for per-house
// keyword substrings, and may vote for several houses at once.
type Sorter struct {
	keywords map[domain.House][]string
}

// NewSorter builds a Sorter with the given keyword table. A nil or empty
// table falls back to DefaultKeywords.
func NewSorter(keywords map[domain.House][]string) *Sorter {
	if len(keywords) == 0 {
		keywords = DefaultKeywords()
	}
	return &Sorter{keywords: keywords}
}

// DefaultKeywords is the built-in house keyword table.
func DefaultKeywords() map[domain.House][]string {
	return map[domain.House][]string{
		domain.Gryffindor: {"brave", "courage", "daring", "bold"},
		domain.Slytherin:  {"ambition", "cunning", "power", "lead"},
		domain.Hufflepuff: {"loyal", "patience", "kind", "fair"},
		domain.Ravenclaw:  {"wisdom", "learn", "wit", "clever"},
	}
}

// Score assigns a house for a raw answer sequence, auto-detecting the
// answer shape. An empty sequence resolves to the first canonical house.
func (s *Sorter) Score(answers []string) domain.House {
	if values, ok := parseNumericAnswers(answers); ok {
		return ScoreNumeric(values)
	}
	return s.ScoreKeywords(answers)
}

// ScoreNumeric tallies clamped index votes. Values below 0 count as 0,
// values above 3 count as 3.
func ScoreNumeric(values []int) domain.House {
	var tallies [len(domain.Houses)]int
	for _, v := range values {
		if v < 0 {
			v = 0
		}
		if v > len(domain.Houses)-1 {
			v = len(domain.Houses) - 1
		}
		tallies[v]++
	}
	return pickWinner(tallies)
}

// ScoreKeywords tallies keyword-set matches. A single answer can increment
// several houses; the sets are checked independently.
func (s *Sorter) ScoreKeywords(answers []string) domain.House {
	var tallies [len(domain.Houses)]int
	for _, answer := range answers {
		lowered := strings.ToLower(answer)
		for i, house := range domain.Houses {
			for _, kw := range s.keywords[house] {
				if strings.Contains(lowered, kw) {
					tallies[i]++
					break
				}
			}
		}
	}
	return pickWinner(tallies)
}

// pickWinner returns the house with the strictly highest tally; ties
// resolve to the earliest house in canonical order.
func pickWinner(tallies [len(domain.Houses)]int) domain.House {
	winner := 0
	for i := 1; i < len(tallies); i++ {
		if tallies[i] > tallies[winner] {
			winner = i
		}
	}
	return domain.Houses[winner]
}

// parseNumericAnswers reports whether every answer is an integer literal.
// An empty sequence is treated as numeric (all tallies zero).
func parseNumericAnswers(answers []string) ([]int, bool) {
	values := make([]int, 0, len(answers))
	for _, a := range answers {
		v, err := strconv.Atoi(strings.TrimSpace(a))
		if err != nil {
			return nil, false
		}
		values = append(values, v)
	}
	return values, true
}
