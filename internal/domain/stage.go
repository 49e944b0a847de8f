package domain

import "fmt"

// Stage is the IFRS 9 impairment stage.
type Stage int

const (
	Stage1 Stage = 1 // performing, 12-month ECL
	Stage2 Stage = 2 // significant increase in credit risk, lifetime ECL
	Stage3 Stage = 3 // credit-impaired, lifetime ECL
)

// AllStages returns stages in ascending order.
func AllStages() []Stage {
	return []Stage{Stage1, Stage2, Stage3}
}

// IsValid checks if the stage is 1, 2 or 3.
func (s Stage) IsValid() bool {
	return s >= Stage1 && s <= Stage3
}

// Lifetime reports whether ECL for this stage uses the lifetime PD horizon.
func (s Stage) Lifetime() bool {
	return s == Stage2 || s == Stage3
}

// String returns "Stage N".
func (s Stage) String() string {
	return fmt.Sprintf("Stage %d", int(s))
}
