package scanning

import "context"

// HistoryLine is a previously booked ledger line used as prompt context
type HistoryLine struct {
	Date          string
	Vendor        string
	DebitAccount  string
	CreditAccount string
	Amount        float64
	TaxCategory   string
	Description   string
}

// ExtractionRequest holds everything needed for one model call on one capture
type ExtractionRequest struct {
	Image      []byte
	MimeType   string
	History    []HistoryLine
	ModelID    string
	Credential string
}

// Tier identifies which decoding strategy recovered a receipt
type Tier int

const (
	TierNone Tier = iota
	TierStrict
	TierExtracted
	TierScraped
)

func (t Tier) String() string {
	switch t {
	case TierStrict:
		return "strict"
	case TierExtracted:
		return "extracted"
	case TierScraped:
		return "scraped"
	default:
		return "none"
	}
}

// LineItem is one purchased item as reported by the model
type LineItem struct {
	Description           string `json:"description"`
	AccountCategory       string `json:"accountCategory"`
	DebitAccountCategory  string `json:"debitAccountCategory"`
	CreditAccountCategory string `json:"creditAccountCategory"`
	TaxCategory           string `json:"taxCategory"`
	UnitPrice             Amount `json:"unitPrice"`
	Quantity              Amount `json:"quantity"`
	Amount                Amount `json:"amount"`
}

// DecodedReceipt is the structured result recovered from a model response
type DecodedReceipt struct {
	Date          string     `json:"date"`
	Vendor        string     `json:"vendor"`
	TotalAmount   Amount     `json:"totalAmount"`
	Currency      string     `json:"currency"`
	TaxAmount     Amount     `json:"taxAmount"`
	PaymentMethod string     `json:"paymentMethod"`
	Items         []LineItem `json:"items"`

	Tier Tier `json:"-"`
}

// Model defines a multimodal backend that turns a receipt image and prompt into raw text
type Model interface {
	// Generate performs a single call and returns the model's raw text answer
	Generate(ctx context.Context, req *ExtractionRequest, prompt string) (string, error)
	// Close releases backend resources
	Close() error
}

// credentialless is implemented by backends that can run without an API credential
type credentialless interface {
	RequiresCredential() bool
}

func requiresCredential(m Model) bool {
	if c, ok := m.(credentialless); ok {
		return c.RequiresCredential()
	}
	return true
}
