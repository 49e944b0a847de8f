package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRounder_HalfToEven(t *testing.T) {
	r := newRounder(Rounding{Enabled: true, PD: 6, LGD: 4, ECL: 2, Rate: 4})

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"ecl half rounds down to even", r.ecl(1.125), 1.12},
		{"ecl half rounds up to even", r.ecl(1.135), 1.14},
		{"ecl above half", r.ecl(1.1251), 1.13},
		{"negative half", r.ecl(-0.125), -0.12},
		{"lgd half", r.lgd(0.12345), 0.1234},
		{"rate half", r.rate(2.50005), 2.5},
		{"pd half", r.pd(0.0000125), 0.000012},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestRounder_Disabled(t *testing.T) {
	r := newRounder(Rounding{Enabled: false, ECL: 2})
	assert.Equal(t, 1.125, r.ecl(1.125))
}
