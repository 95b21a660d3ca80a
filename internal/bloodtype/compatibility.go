// internal/bloodtype/compatibility.go
package bloodtype

// recipients maps a donor blood type to the recipient types that may receive
// it. The relation is donor -> recipient; CompatibleDonors walks it backwards.
var recipients = map[BloodType][]BloodType{
	ONeg:  {ONeg, OPos, ANeg, APos, BNeg, BPos, ABNeg, ABPos},
	OPos:  {OPos, APos, BPos, ABPos},
	ANeg:  {ANeg, APos, ABNeg, ABPos},
	APos:  {APos, ABPos},
	BNeg:  {BNeg, BPos, ABNeg, ABPos},
	BPos:  {BPos, ABPos},
	ABNeg: {ABNeg, ABPos},
	ABPos: {ABPos},
}

// CompatibleRecipients returns the patient blood types that may receive a unit
// of the donor type. An invalid donor type has no recipients.
func CompatibleRecipients(donor BloodType) []BloodType {
	out := make([]BloodType, len(recipients[donor]))
	copy(out, recipients[donor])
	return out
}

// CanReceive reports whether a recipient may be transfused with the donor type.
func CanReceive(donor, recipient BloodType) bool {
	for _, t := range recipients[donor] {
		if t == recipient {
			return true
		}
	}
	return false
}

// CompatibleDonors returns the donor types a recipient may receive, in display order.
func CompatibleDonors(recipient BloodType) []BloodType {
	var out []BloodType
	for _, donor := range all {
		if CanReceive(donor, recipient) {
			out = append(out, donor)
		}
	}
	return out
}

// Typed is anything carrying a blood type, such as a patient record.
type Typed interface {
	BloodType() BloodType
}

// Filter keeps the items whose blood type may receive the donor type. The
// result is never nil so callers can tell "no compatible candidate" apart from
// a failed lookup.
func Filter[T Typed](donor BloodType, items []T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if CanReceive(donor, item.BloodType()) {
			out = append(out, item)
		}
	}
	return out
}
