package scanning

import (
	"bytes"
	"encoding/json"
)

// Text is a string receipt field. Models sometimes answer with a bare number
// or boolean where a string belongs, so any scalar is accepted as its literal
// text and null reads as empty.
type Text string

// UnmarshalJSON never fails on a well-formed JSON value; objects and arrays
// read as empty.
func (t *Text) UnmarshalJSON(data []byte) error {
	*t = ""
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	case '{', '[':
	default:
		*t = Text(data)
	}
	return nil
}

// UnmarshalJSON reads a line item, accepting scalars of any kind in its text fields
func (l *LineItem) UnmarshalJSON(data []byte) error {
	type plain LineItem
	aux := struct {
		*plain
		Description           Text `json:"description"`
		AccountCategory       Text `json:"accountCategory"`
		DebitAccountCategory  Text `json:"debitAccountCategory"`
		CreditAccountCategory Text `json:"creditAccountCategory"`
		TaxCategory           Text `json:"taxCategory"`
	}{plain: (*plain)(l)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	l.Description = string(aux.Description)
	l.AccountCategory = string(aux.AccountCategory)
	l.DebitAccountCategory = string(aux.DebitAccountCategory)
	l.CreditAccountCategory = string(aux.CreditAccountCategory)
	l.TaxCategory = string(aux.TaxCategory)
	return nil
}

// UnmarshalJSON reads a receipt, accepting scalars of any kind in its text fields
func (r *DecodedReceipt) UnmarshalJSON(data []byte) error {
	type plain DecodedReceipt
	aux := struct {
		*plain
		Date          Text `json:"date"`
		Vendor        Text `json:"vendor"`
		Currency      Text `json:"currency"`
		PaymentMethod Text `json:"paymentMethod"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	r.Date = string(aux.Date)
	r.Vendor = string(aux.Vendor)
	r.Currency = string(aux.Currency)
	r.PaymentMethod = string(aux.PaymentMethod)
	return nil
}
