package ledger

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/i2row/internal/scanning"
)

// NormalizedRow is one editable ledger line produced from a receipt item
type NormalizedRow struct {
	ID                    string    `json:"id"`
	Date                  string    `json:"date"`
	Vendor                string    `json:"vendor"`
	DebitAccountCategory  string    `json:"debitAccountCategory"`
	CreditAccountCategory string    `json:"creditAccountCategory"`
	Description           string    `json:"description"`
	Amount                float64   `json:"amount"`
	TaxCategory           string    `json:"taxCategory"`
	UnitPrice             *float64  `json:"unitPrice,omitempty"`
	Quantity              *float64  `json:"quantity,omitempty"`
	IsHeader              bool      `json:"isHeader"`
	CaptureID             string    `json:"captureId,omitempty"`
	CreatedAt             time.Time `json:"createdAt"`
}

// Capture records one processed image and the rows it produced
type Capture struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	RowIDs      []string  `json:"rowIds"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RowPatch holds the user-editable fields of a row. Nil fields are left unchanged.
type RowPatch struct {
	Date                  *string  `json:"date,omitempty"`
	Vendor                *string  `json:"vendor,omitempty"`
	DebitAccountCategory  *string  `json:"debitAccountCategory,omitempty"`
	CreditAccountCategory *string  `json:"creditAccountCategory,omitempty"`
	Description           *string  `json:"description,omitempty"`
	Amount                *float64 `json:"amount,omitempty"`
	TaxCategory           *string  `json:"taxCategory,omitempty"`
	UnitPrice             *float64 `json:"unitPrice,omitempty"`
	Quantity              *float64 `json:"quantity,omitempty"`
}

// Apply copies the set fields of the patch onto row
func (p RowPatch) Apply(row *NormalizedRow) {
	setString(&row.Date, p.Date)
	setString(&row.Vendor, p.Vendor)
	setString(&row.DebitAccountCategory, p.DebitAccountCategory)
	setString(&row.CreditAccountCategory, p.CreditAccountCategory)
	setString(&row.Description, p.Description)
	setString(&row.TaxCategory, p.TaxCategory)
	if p.Amount != nil {
		row.Amount = finite(*p.Amount)
	}
	if p.UnitPrice != nil {
		row.UnitPrice = floatPtr(finite(*p.UnitPrice))
	}
	if p.Quantity != nil {
		row.Quantity = floatPtr(finite(*p.Quantity))
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// IDGenerator generates unique IDs for rows and captures
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// uuidGenerator generates random (version 4) UUIDs
type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// MapToRows turns each decoded line item into a ledger row, in order.
// Unknown strings become empty and unknown numbers become zero.
func MapToRows(receipt *scanning.DecodedReceipt, ids IDGenerator) []NormalizedRow {
	if ids == nil {
		ids = &uuidGenerator{}
	}
	rows := make([]NormalizedRow, 0, len(receipt.Items))
	for _, item := range receipt.Items {
		rows = append(rows, NormalizedRow{
			ID:                    ids.Generate(),
			Date:                  known(receipt.Date),
			Vendor:                known(receipt.Vendor),
			DebitAccountCategory:  known(item.DebitAccountCategory),
			CreditAccountCategory: known(item.CreditAccountCategory),
			Description:           known(item.Description),
			Amount:                item.Amount.Float(),
			TaxCategory:           known(item.TaxCategory),
			UnitPrice:             floatPtr(item.UnitPrice.Float()),
			Quantity:              floatPtr(item.Quantity.Float()),
			IsHeader:              false,
		})
	}
	return rows
}

// HistoryFromRows converts stored rows into prompt history lines
func HistoryFromRows(rows []*NormalizedRow) []scanning.HistoryLine {
	lines := make([]scanning.HistoryLine, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, scanning.HistoryLine{
			Date:          r.Date,
			Vendor:        r.Vendor,
			DebitAccount:  r.DebitAccountCategory,
			CreditAccount: r.CreditAccountCategory,
			Amount:        r.Amount,
			TaxCategory:   r.TaxCategory,
			Description:   r.Description,
		})
	}
	return lines
}

func known(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), "unknown") {
		return ""
	}
	return s
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func floatPtr(v float64) *float64 {
	return &v
}
