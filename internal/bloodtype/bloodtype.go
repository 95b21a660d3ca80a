// internal/bloodtype/bloodtype.go
package bloodtype

import (
	"fmt"
	"strings"

	"bloodbank/internal/apperr"
)

// ABO is the antigen group of a blood type.
type ABO string

const (
	A  ABO = "A"
	B  ABO = "B"
	AB ABO = "AB"
	O  ABO = "O"
)

// Rh is the Rh factor of a blood type.
type Rh string

const (
	Positive Rh = "+"
	Negative Rh = "-"
)

// BloodType is the pairing of an ABO group and an Rh factor, e.g. "O-".
type BloodType string

const (
	APos  BloodType = "A+"
	ANeg  BloodType = "A-"
	BPos  BloodType = "B+"
	BNeg  BloodType = "B-"
	ABPos BloodType = "AB+"
	ABNeg BloodType = "AB-"
	OPos  BloodType = "O+"
	ONeg  BloodType = "O-"
)

var ErrUnknownBloodType = fmt.Errorf("%w: unknown blood type", apperr.ErrInvalid)

// all is the display order used by summaries and exports.
var all = []BloodType{APos, ANeg, BPos, BNeg, ABPos, ABNeg, OPos, ONeg}

// All returns the eight valid blood types.
func All() []BloodType {
	out := make([]BloodType, len(all))
	copy(out, all)
	return out
}

func (g ABO) Valid() bool {
	switch g {
	case A, B, AB, O:
		return true
	}
	return false
}

func (r Rh) Valid() bool {
	return r == Positive || r == Negative
}

// Of combines a group and a factor.
func Of(group ABO, factor Rh) (BloodType, error) {
	if !group.Valid() {
		return "", fmt.Errorf("%w: abo group %q", ErrUnknownBloodType, group)
	}
	if !factor.Valid() {
		return "", fmt.Errorf("%w: rh factor %q", ErrUnknownBloodType, factor)
	}
	return BloodType(string(group) + string(factor)), nil
}

// Parse accepts "AB+", "o-" and the Unicode minus sign used in printed charts.
func Parse(s string) (BloodType, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "−", "-")
	if len(s) < 2 {
		return "", fmt.Errorf("%w: %q", ErrUnknownBloodType, s)
	}
	return Of(ABO(s[:len(s)-1]), Rh(s[len(s)-1:]))
}

func (t BloodType) Valid() bool {
	_, err := Parse(string(t))
	return err == nil && strings.ToUpper(string(t)) == string(t)
}

// Group returns the ABO part. It is empty for an invalid type.
func (t BloodType) Group() ABO {
	if !t.Valid() {
		return ""
	}
	return ABO(t[:len(t)-1])
}

// Factor returns the Rh part. It is empty for an invalid type.
func (t BloodType) Factor() Rh {
	if !t.Valid() {
		return ""
	}
	return Rh(t[len(t)-1:])
}

func (t BloodType) String() string { return string(t) }

// UnmarshalText lets blood types arrive as "O-" in JSON bodies and query strings.
func (t *BloodType) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
