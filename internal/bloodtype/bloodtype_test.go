package bloodtype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func genBloodType() *rapid.Generator[BloodType] {
	return rapid.SampledFrom(All())
}

func TestParse(t *testing.T) {
	cases := map[string]BloodType{
		"O-":    ONeg,
		"o-":    ONeg,
		" ab+ ": ABPos,
		"B−":    BNeg,
		"A+":    APos,
	}
	for in, want := range cases {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "O", "C+", "AB", "A*", "ABO+"} {
		_, err := Parse(bad)
		assert.ErrorIs(t, err, ErrUnknownBloodType, bad)
	}
}

func TestOfProducesEightTypes(t *testing.T) {
	seen := map[BloodType]bool{}
	for _, g := range []ABO{A, B, AB, O} {
		for _, r := range []Rh{Positive, Negative} {
			bt, err := Of(g, r)
			require.NoError(t, err)
			assert.Equal(t, g, bt.Group())
			assert.Equal(t, r, bt.Factor())
			seen[bt] = true
		}
	}
	assert.Len(t, seen, 8)
	assert.ElementsMatch(t, All(), keys(seen))
}

func keys(m map[BloodType]bool) []BloodType {
	out := make([]BloodType, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestCompatibleRecipientsTable(t *testing.T) {
	assert.Len(t, CompatibleRecipients(ONeg), 8, "O- is the universal donor")
	assert.Equal(t, []BloodType{ABPos}, CompatibleRecipients(ABPos))
	assert.ElementsMatch(t, []BloodType{OPos, APos, BPos, ABPos}, CompatibleRecipients(OPos))
	assert.ElementsMatch(t, []BloodType{ANeg, APos, ABNeg, ABPos}, CompatibleRecipients(ANeg))
	assert.ElementsMatch(t, []BloodType{APos, ABPos}, CompatibleRecipients(APos))
	assert.ElementsMatch(t, []BloodType{BNeg, BPos, ABNeg, ABPos}, CompatibleRecipients(BNeg))
	assert.ElementsMatch(t, []BloodType{BPos, ABPos}, CompatibleRecipients(BPos))
	assert.ElementsMatch(t, []BloodType{ABNeg, ABPos}, CompatibleRecipients(ABNeg))
	assert.Empty(t, CompatibleRecipients("X+"))
}

func TestCompatibleRecipientsReturnsCopy(t *testing.T) {
	got := CompatibleRecipients(ABNeg)
	got[0] = ONeg
	assert.Equal(t, ABNeg, CompatibleRecipients(ABNeg)[0])
}

func TestCompatibleDonorsIsInverse(t *testing.T) {
	assert.Len(t, CompatibleDonors(ABPos), 8, "AB+ receives from everyone")
	assert.Equal(t, []BloodType{ONeg}, CompatibleDonors(ONeg))

	rapid.Check(t, func(t *rapid.T) {
		donor := genBloodType().Draw(t, "donor")
		recipient := genBloodType().Draw(t, "recipient")
		inverse := false
		for _, d := range CompatibleDonors(recipient) {
			if d == donor {
				inverse = true
			}
		}
		if inverse != CanReceive(donor, recipient) {
			t.Fatalf("donor %s recipient %s: inverse=%v forward=%v", donor, recipient, inverse, CanReceive(donor, recipient))
		}
	})
}

func TestCompatibilityProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		bt := genBloodType().Draw(t, "type")
		if !CanReceive(bt, bt) {
			t.Fatalf("%s must receive its own type", bt)
		}
		if !CanReceive(ONeg, bt) {
			t.Fatalf("O- must be receivable by %s", bt)
		}
		if !CanReceive(bt, ABPos) {
			t.Fatalf("AB+ must receive %s", bt)
		}
		// A negative recipient never receives a positive unit.
		if bt.Factor() == Negative {
			for _, donor := range CompatibleDonors(bt) {
				if donor.Factor() == Positive {
					t.Fatalf("%s received positive %s", bt, donor)
				}
			}
		}
	})
}

type typed struct {
	name string
	bt   BloodType
}

func (x typed) BloodType() BloodType { return x.bt }

func TestFilter(t *testing.T) {
	items := []typed{{"a", APos}, {"b", ONeg}, {"c", ABPos}, {"d", BNeg}}

	got := Filter(APos, items)
	assert.Equal(t, []typed{{"a", APos}, {"c", ABPos}}, got)

	none := Filter(ABPos, []typed{{"x", ONeg}})
	require.NotNil(t, none)
	assert.Empty(t, none)
}

func TestUnmarshalText(t *testing.T) {
	var bt BloodType
	require.NoError(t, bt.UnmarshalText([]byte("ab-")))
	assert.Equal(t, ABNeg, bt)
	assert.Error(t, bt.UnmarshalText([]byte("Z+")))
}
