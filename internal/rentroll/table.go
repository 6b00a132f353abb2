package rentroll

import (
	"strings"

	apperrors "github.com/adverant/nexus/rentroll-worker/internal/errors"
)

// Canonical column order of every extracted table
const (
	ColCtlNumber           = "Ctl#"
	ColSiteNumber          = "Site#"
	ColType                = "Type"
	ColStatus              = "Status"
	ColResident            = "Resident"
	ColMoveInDate          = "Move-In Date"
	ColLeaseExpirationDate = "Lease Expiration Date"
	ColBaseRent            = "Base Rent"
	ColPetFee              = "Pet Fee"
	ColMTMPremium          = "MTM Premium"
	ColSTPremium           = "ST Premium"
	ColVacancy             = "Vacancy"
	ColTotalCharges        = "Total Charges"
)

var columns = []string{
	ColCtlNumber, ColSiteNumber, ColType, ColStatus, ColResident,
	ColMoveInDate, ColLeaseExpirationDate,
	ColBaseRent, ColPetFee, ColMTMPremium, ColSTPremium, ColVacancy, ColTotalCharges,
}

// Columns returns the canonical column order
func Columns() []string {
	out := make([]string, len(columns))
	copy(out, columns)
	return out
}

// IsAmountColumn reports whether the named column holds money
func IsAmountColumn(name string) bool {
	switch name {
	case ColBaseRent, ColPetFee, ColMTMPremium, ColSTPremium, ColVacancy, ColTotalCharges:
		return true
	}
	return false
}

// FieldSet is a set of record fields, used to flag defaulted or unparsed values
type FieldSet uint16

const (
	FieldResident FieldSet = 1 << iota
	FieldMoveInDate
	FieldLeaseExpirationDate
	FieldBaseRent
	FieldPetFee
	FieldMTMPremium
	FieldSTPremium
	FieldVacancy
	FieldTotalCharges
)

var fieldNames = []struct {
	field FieldSet
	name  string
}{
	{FieldResident, ColResident},
	{FieldMoveInDate, ColMoveInDate},
	{FieldLeaseExpirationDate, ColLeaseExpirationDate},
	{FieldBaseRent, ColBaseRent},
	{FieldPetFee, ColPetFee},
	{FieldMTMPremium, ColMTMPremium},
	{FieldSTPremium, ColSTPremium},
	{FieldVacancy, ColVacancy},
	{FieldTotalCharges, ColTotalCharges},
}

// Has reports whether f is in the set
func (s FieldSet) Has(f FieldSet) bool {
	return s&f != 0
}

// Count returns the number of fields in the set
func (s FieldSet) Count() int {
	n := 0
	for _, fn := range fieldNames {
		if s.Has(fn.field) {
			n++
		}
	}
	return n
}

// Names returns the column names in the set, in canonical order
func (s FieldSet) Names() []string {
	names := make([]string, 0, len(fieldNames))
	for _, fn := range fieldNames {
		if s.Has(fn.field) {
			names = append(names, fn.name)
		}
	}
	return names
}

func (s FieldSet) String() string {
	return strings.Join(s.Names(), ",")
}

// Record is one assembled rent-roll line item
type Record struct {
	CtlNumber           string `json:"ctl_number"`
	SiteNumber          string `json:"site_number"`
	Type                string `json:"type"`
	Status              string `json:"status"`
	Resident            string `json:"resident"`
	MoveInDate          string `json:"move_in_date"`
	LeaseExpirationDate string `json:"lease_expiration_date"`
	BaseRent            Money  `json:"base_rent"`
	PetFee              Money  `json:"pet_fee"`
	MTMPremium          Money  `json:"mtm_premium"`
	STPremium           Money  `json:"st_premium"`
	Vacancy             Money  `json:"vacancy"`
	TotalCharges        Money  `json:"total_charges"`

	// Defaulted holds fields absent from the row; Unparsed holds money
	// fields present but not numeric. Both render as "" or $0.00.
	Defaulted FieldSet `json:"-"`
	Unparsed  FieldSet `json:"-"`

	// Source position of the line that started the row
	Page int `json:"page"`
	Line int `json:"line"`
}

// Values returns the record's cells in canonical column order
func (r Record) Values() []string {
	return []string{
		r.CtlNumber,
		r.SiteNumber,
		r.Type,
		r.Status,
		r.Resident,
		r.MoveInDate,
		r.LeaseExpirationDate,
		r.BaseRent.String(),
		r.PetFee.String(),
		r.MTMPremium.String(),
		r.STPremium.String(),
		r.Vacancy.String(),
		r.TotalCharges.String(),
	}
}

// Table is the ordered record set of one document
type Table struct {
	records []Record
}

// NewTable wraps records loaded from elsewhere, such as a store
func NewTable(records []Record) *Table {
	out := make([]Record, len(records))
	copy(out, records)
	return &Table{records: out}
}

// Columns returns the canonical header
func (t *Table) Columns() []string {
	return Columns()
}

// Rows returns every record as a row of cells
func (t *Table) Rows() [][]string {
	if t == nil {
		return nil
	}
	rows := make([][]string, 0, len(t.records))
	for _, r := range t.records {
		rows = append(rows, r.Values())
	}
	return rows
}

// Records returns a copy of the records in encounter order
func (t *Table) Records() []Record {
	if t == nil {
		return nil
	}
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// Len returns the number of records
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.records)
}

// Condition is the document-level outcome of an extraction pass
type Condition int

const (
	ConditionOK Condition = iota
	ConditionNoData
	ConditionNoHeader
)

func (c Condition) String() string {
	switch c {
	case ConditionOK:
		return "ok"
	case ConditionNoData:
		return "no_data"
	case ConditionNoHeader:
		return "no_header"
	}
	return "unknown"
}

// Stats counts what an extraction pass recovered from
type Stats struct {
	Lines          int // non-empty lines read from unskipped pages
	RowStarts      int // row-boundary detections
	MalformedRows  int // row starts that never reached the leading fields
	SkippedLines   int // physical lines dropped as malformed
	IgnoredLines   int // preamble and stray lines outside any row
	HeaderLines    int // header lines, including repeats on later pages
	SkippedPages   int // pages with no text because OCR timed out or failed
	MoneyFallbacks int // money tokens that were not numeric
	DefaultedCells int // fields absent from their row
}

// Result is the outcome of one extraction pass
type Result struct {
	Table     *Table
	Header    Header
	Mode      Mode
	Stats     Stats
	Condition Condition
}

// Err reports document-level failure conditions, nil when records were produced
func (r *Result) Err() error {
	switch r.Condition {
	case ConditionNoData:
		return apperrors.NewNoDataExtractedError("", r.Stats.SkippedLines, r.Stats.SkippedPages)
	case ConditionNoHeader:
		return apperrors.NewNoHeaderFoundError("", r.Stats.Lines)
	}
	return nil
}

// TableBuilder accumulates records in encounter order
type TableBuilder struct {
	table *Table
	stats Stats
}

// NewTableBuilder creates an empty builder
func NewTableBuilder() *TableBuilder {
	return &TableBuilder{table: &Table{}}
}

// Add appends a record
func (b *TableBuilder) Add(r Record) {
	b.table.records = append(b.table.records, r)
	b.stats.MoneyFallbacks += r.Unparsed.Count()
	b.stats.DefaultedCells += r.Defaulted.Count()
}

// Stats exposes the counters for the assembler to update
func (b *TableBuilder) Stats() *Stats {
	return &b.stats
}

// Build finalizes the pass. An empty table is reported as ConditionNoData.
func (b *TableBuilder) Build(mode Mode, header Header) *Result {
	cond := ConditionOK
	if b.table.Len() == 0 {
		cond = ConditionNoData
	}
	return &Result{
		Table:     b.table,
		Header:    header,
		Mode:      mode,
		Stats:     b.stats,
		Condition: cond,
	}
}
