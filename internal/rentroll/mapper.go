package rentroll

import (
	"regexp"
	"strings"

	apperrors "github.com/adverant/nexus/rentroll-worker/internal/errors"
)

// LeadingFields is the number of unconditional leading tokens:
// control number, site number, type and status.
const LeadingFields = 4

// fieldLayout maps token positions onto record fields.
// resident is a half-open token range.
type fieldLayout struct {
	name     string
	resident [2]int
	moveIn   int
	leaseExp int
	charges  [5]int // base rent, pet fee, MTM premium, ST premium, vacancy
	total    int
}

var (
	// "101 1-101 Occ Active Smith 2023-01-01 2024-01-01 900 0 0 0 0 [900]"
	singleNameLayout = fieldLayout{
		name:     "single-name",
		resident: [2]int{4, 5},
		moveIn:   5,
		leaseExp: 6,
		charges:  [5]int{7, 8, 9, 10, 11},
		total:    12,
	}

	// "101 1-101 Occ Active Jane Doe 2023-01-01 2024-01-01 1000 50 0 0 0 [1050]"
	splitNameLayout = fieldLayout{
		name:     "split-name",
		resident: [2]int{4, 6},
		moveIn:   6,
		leaseExp: 7,
		charges:  [5]int{8, 9, 10, 11, 12},
		total:    13,
	}
)

// Word-shaped name token: letters with inner apostrophes, dots or hyphens,
// optionally ending in a comma ("Doe,", "O'Brien", "Smith-Jones").
var nameTokenPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z'.\-]*,?$`)

// FieldMapper maps a completed row's tokens onto a Record
type FieldMapper struct{}

// NewFieldMapper creates a field mapper
func NewFieldMapper() *FieldMapper {
	return &FieldMapper{}
}

// Map builds a Record from a logical row. start locates the line that opened it.
// Rows shorter than the leading fields return a MALFORMED_LINE error.
func (m *FieldMapper) Map(tokens []string, start Line) (Record, error) {
	if len(tokens) < LeadingFields {
		return Record{}, apperrors.NewMalformedLineError(start.Page, start.Index, len(tokens), LeadingFields)
	}

	layout := m.layoutFor(tokens)

	rec := Record{
		CtlNumber:  tokens[0],
		SiteNumber: tokens[1],
		Type:       tokens[2],
		Status:     tokens[3],
		Page:       start.Page,
		Line:       start.Index,
	}

	rec.Resident = joinRange(tokens, layout.resident)
	if rec.Resident == "" {
		rec.Defaulted |= FieldResident
	}

	rec.MoveInDate = textAt(tokens, layout.moveIn, FieldMoveInDate, &rec)
	rec.LeaseExpirationDate = textAt(tokens, layout.leaseExp, FieldLeaseExpirationDate, &rec)

	rec.BaseRent = moneyAt(tokens, layout.charges[0], FieldBaseRent, &rec)
	rec.PetFee = moneyAt(tokens, layout.charges[1], FieldPetFee, &rec)
	rec.MTMPremium = moneyAt(tokens, layout.charges[2], FieldMTMPremium, &rec)
	rec.STPremium = moneyAt(tokens, layout.charges[3], FieldSTPremium, &rec)
	rec.Vacancy = moneyAt(tokens, layout.charges[4], FieldVacancy, &rec)
	rec.TotalCharges = moneyAt(tokens, layout.total, FieldTotalCharges, &rec)

	return rec, nil
}

// layoutFor picks the split-name table when the two tokens after the leading
// fields are both word-shaped, unless the token count fits only the
// single-name table. A word in the move-in slot of a 12-token row is then
// read as a bad date, not as the rest of the name.
func (m *FieldMapper) layoutFor(tokens []string) fieldLayout {
	if len(tokens) < splitNameLayout.resident[1] {
		return singleNameLayout
	}
	first, second := tokens[LeadingFields], tokens[LeadingFields+1]
	if !nameTokenPattern.MatchString(first) || !nameTokenPattern.MatchString(second) {
		return singleNameLayout
	}
	if singleNameLayout.fits(len(tokens)) && !splitNameLayout.fits(len(tokens)) {
		return singleNameLayout
	}
	return splitNameLayout
}

// fits reports whether n tokens is a complete row for l, with or without
// the optional total
func (l fieldLayout) fits(n int) bool {
	return n == l.total || n == l.total+1
}

func joinRange(tokens []string, r [2]int) string {
	lo, hi := r[0], r[1]
	if lo >= len(tokens) {
		return ""
	}
	if hi > len(tokens) {
		hi = len(tokens)
	}
	return strings.Join(tokens[lo:hi], " ")
}

func textAt(tokens []string, i int, f FieldSet, rec *Record) string {
	if i >= len(tokens) {
		rec.Defaulted |= f
		return ""
	}
	return tokens[i]
}

func moneyAt(tokens []string, i int, f FieldSet, rec *Record) Money {
	if i >= len(tokens) {
		rec.Defaulted |= f
		return Money{}
	}
	v, ok := NormalizeMoney(tokens[i])
	if !ok {
		rec.Unparsed |= f
	}
	return v
}
