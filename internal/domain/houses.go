package domain

// House is one of the four fixed teams a student can be sorted into.
type House string

const (
	Gryffindor House = "Gryffindor"
	Slytherin  House = "Slytherin"
	Hufflepuff House = "Hufflepuff"
	Ravenclaw  House = "Ravenclaw"
)

// Houses is the canonical house ordering. Numeric quiz answers index into
// it, and scoring tie-breaks resolve to the earliest entry.
var Houses = [4]House{Gryffindor, Slytherin, Hufflepuff, Ravenclaw}

// ParseHouse validates a raw house name against the fixed enumeration.
// Names are case-sensitive; unknown names are rejected at the boundary.
func ParseHouse(raw string) (House, error) {
	for _, h := range Houses {
		if string(h) == raw {
			return h, nil
		}
	}
	return "", ErrUnknownHouse
}

// Valid reports whether h is one of the four canonical houses.
func (h House) Valid() bool {
	_, err := ParseHouse(string(h))
	return err == nil
}
