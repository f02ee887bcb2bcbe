package department

import "fmt"

// Code identifies one emergency-room unit
type Code string

const (
	Adult      Code = "PSA"
	Pediatric  Code = "PSI"
	Orthopedic Code = "PSO"
)

// Department is a static configuration entry for one emergency-room unit
type Department struct {
	Code        Code
	ExternalID  int
	DisplayName string
}

var defaults = []Department{
	{Code: Adult, ExternalID: 3, DisplayName: "Pronto Socorro Adulto"},
	{Code: Pediatric, ExternalID: 4, DisplayName: "Pronto Socorro Infantil"},
	{Code: Orthopedic, ExternalID: 33, DisplayName: "Pronto Socorro Ortopédico"},
}

// Defaults returns the fixed department set in display order (Adult, Pediatric, Orthopedic).
// The slice is a copy; callers may not mutate the shared configuration.
func Defaults() []Department {
	out := make([]Department, len(defaults))
	copy(out, defaults)
	return out
}

// Lookup returns the default department for a code
func Lookup(code Code) (Department, error) {
	for _, d := range defaults {
		if d.Code == code {
			return d, nil
		}
	}
	return Department{}, fmt.Errorf("unknown department code %q", code)
}

func (d Department) String() string {
	return fmt.Sprintf("%s(%d)", d.Code, d.ExternalID)
}
