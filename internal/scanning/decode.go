package scanning

import (
	"encoding/json"
	"regexp"
	"strings"
)

// DefaultCurrency is assumed when a scraped response names no currency
const DefaultCurrency = "JPY"

// parseFailureMessage is reported when no tier recovers a receipt
const parseFailureMessage = "failed to parse model response as JSON"

var (
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

	scrapeDateRe     = regexp.MustCompile(`"?\bdate\b"?\s*:\s*(?:"([^"]+)"|(\d[\d/.-]*))`)
	scrapeVendorRe   = regexp.MustCompile(`"?\bvendor\b"?\s*:\s*"([^"]+)"`)
	scrapeTotalRe    = regexp.MustCompile(`"?\btotalAmount\b"?\s*:\s*"?(-?\d[\d,]*(?:\.\d+)?)`)
	scrapeCurrencyRe = regexp.MustCompile(`"?\bcurrency\b"?\s*:\s*"([^"]+)"`)
)

// receiptKeys are the top-level keys that make a JSON object look like a receipt
var receiptKeys = []string{"date", "vendor", "totalAmount", "items"}

// Decode recovers a receipt from sanitized model output. It tries a strict
// parse, then the outermost braces with trailing commas removed, then scrapes
// individual fields. The returned error is always a *DecodeFailure.
func Decode(cleaned string) (*DecodedReceipt, error) {
	if receipt, failure, ok := decodeObject(cleaned, cleaned); ok {
		return tagged(receipt, failure, TierStrict)
	}

	if extracted, found := extractObject(cleaned); found {
		if receipt, failure, ok := decodeObject(extracted, cleaned); ok {
			return tagged(receipt, failure, TierExtracted)
		}
	}

	if receipt, ok := scrapeFields(cleaned); ok {
		receipt.Tier = TierScraped
		return receipt, nil
	}

	return nil, &DecodeFailure{Message: parseFailureMessage, RawText: cleaned}
}

func tagged(receipt *DecodedReceipt, failure *DecodeFailure, tier Tier) (*DecodedReceipt, error) {
	if failure != nil {
		return nil, failure
	}
	receipt.Tier = tier
	return receipt, nil
}

// decodeObject parses text as a single JSON object. ok is false when the text
// is not a receipt-shaped object; an {"error": ...} object yields a failure.
func decodeObject(text, original string) (*DecodedReceipt, *DecodeFailure, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil || fields == nil {
		return nil, nil, false
	}

	if raw, ok := fields["error"]; ok && string(raw) != "null" {
		return nil, &DecodeFailure{Message: errorMessage(raw), RawText: original}, true
	}

	if !hasAnyKey(fields, receiptKeys) {
		return nil, nil, false
	}

	var receipt DecodedReceipt
	if err := json.Unmarshal([]byte(text), &receipt); err != nil {
		return nil, nil, false
	}
	if receipt.Items == nil {
		receipt.Items = []LineItem{}
	}
	return &receipt, nil, true
}

func errorMessage(raw json.RawMessage) string {
	var msg string
	if err := json.Unmarshal(raw, &msg); err == nil && strings.TrimSpace(msg) != "" {
		return msg
	}
	return strings.TrimSpace(string(raw))
}

func hasAnyKey(fields map[string]json.RawMessage, keys []string) bool {
	for _, k := range keys {
		if _, ok := fields[k]; ok {
			return true
		}
	}
	return false
}

// extractObject takes the text between the first '{' and the last '}' and
// drops trailing commas before closing braces and brackets.
func extractObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	if start == -1 {
		return "", false
	}
	end := strings.LastIndex(text, "}")
	if end == -1 || end < start {
		return "", false
	}
	return trailingCommaRe.ReplaceAllString(text[start:end+1], "$1"), true
}

// scrapeFields pulls date, vendor, totalAmount and currency out of text that
// is not valid JSON. Items are always dropped.
func scrapeFields(text string) (*DecodedReceipt, bool) {
	date := firstGroup(scrapeDateRe, text)
	vendor := firstGroup(scrapeVendorRe, text)
	total := firstGroup(scrapeTotalRe, text)
	if date == "" || vendor == "" || total == "" {
		return nil, false
	}

	value, ok := parseNumber(total)
	if !ok {
		return nil, false
	}

	currency := firstGroup(scrapeCurrencyRe, text)
	if currency == "" {
		currency = DefaultCurrency
	}

	return &DecodedReceipt{
		Date:          date,
		Vendor:        vendor,
		TotalAmount:   KnownAmount(value),
		Currency:      currency,
		TaxAmount:     KnownAmount(0),
		PaymentMethod: unknownValue,
		Items:         []LineItem{},
	}, true
}

func firstGroup(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	for _, group := range m[1:] {
		if group != "" {
			return group
		}
	}
	return ""
}
