package extraction

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jlagdameo/gastos-bot/internal/expense"
)

var recordKeys = []string{"date", "time", "mode_of_payment", "source", "category", "amount", "notes"}

var titleCaser = cases.Title(language.English)

// parseRecord parses a model response into a canonical record. It tolerates
// markdown code fences and stray prose around the JSON object, but requires
// all seven keys to be present with non-null values. A record returned from
// here is always fully populated.
func parseRecord(text string) (expense.Record, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	// Extract the outermost JSON object, which also drops any closing fence.
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return expense.Record{}, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return expense.Record{}, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	decoder := json.NewDecoder(strings.NewReader(text))
	decoder.UseNumber()
	var fields map[string]any
	if err := decoder.Decode(&fields); err != nil {
		return expense.Record{}, fmt.Errorf("unmarshaling json: %w", err)
	}

	values := make(map[string]string, len(recordKeys))
	for _, key := range recordKeys {
		v, ok := fields[key]
		if !ok || v == nil {
			return expense.Record{}, fmt.Errorf("response is missing key %q", key)
		}
		values[key] = stringValue(v)
	}

	rec := expense.Record{
		Date:          values["date"],
		Time:          values["time"],
		ModeOfPayment: normalizePayment(values["mode_of_payment"]),
		Source:        titleCase(values["source"]),
		Category:      values["category"],
		Amount:        normalizeAmount(values["amount"]),
		Notes:         values["notes"],
	}
	return rec, nil
}

// stringValue coerces a decoded JSON value to a string. Models occasionally
// return the amount as a bare number despite the prompt.
func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}

// normalizePayment maps model phrasing onto the canonical payment modes.
// Values outside the known set pass through trimmed.
func normalizePayment(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gcash":
		return "GCash"
	case "cash":
		return "Cash"
	case "debit card", "debit":
		return "Debit Card"
	case "credit card", "credit":
		return "Credit Card"
	case "", "unknown", "n/a":
		return "Unknown"
	}
	return strings.TrimSpace(s)
}

// titleCase fixes merchant names the model returned in all lowercase.
// Mixed-case names ("McDonald's") are left alone.
func titleCase(s string) string {
	s = strings.TrimSpace(s)
	if s != "" && s == strings.ToLower(s) {
		return titleCaser.String(s)
	}
	return s
}

// normalizeAmount re-formats an amount with comma thousands separators,
// preserving whatever decimal places the model produced. Unparseable or
// negative values pass through untouched.
func normalizeAmount(s string) string {
	cleaned := strings.NewReplacer(",", "", "₱", "", "PHP", "", " ", "").Replace(strings.TrimSpace(s))
	d, err := decimal.NewFromString(cleaned)
	if err != nil || d.IsNegative() {
		return strings.TrimSpace(s)
	}

	intPart := d.Truncate(0).BigInt().String()
	var b strings.Builder
	for i := 0; i < len(intPart); i++ {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteByte(intPart[i])
	}
	if idx := strings.Index(cleaned, "."); idx >= 0 {
		b.WriteString(cleaned[idx:])
	}
	return b.String()
}
