package expense

import (
	"fmt"
	"time"
)

// Date and time layouts used everywhere a record is stamped or rendered.
const (
	DateLayout = "January 02, 2006"
	TimeLayout = "03:04 PM"
)

// Record is the canonical expense representation every input is normalized
// into. All seven fields are always present. Values are strings because the
// human-readable formatting (comma-grouped amounts, 12-hour times) is part of
// the wire contract.
type Record struct {
	Date          string `json:"date"`
	Time          string `json:"time"`
	ModeOfPayment string `json:"mode_of_payment"`
	Source        string `json:"source"`
	Category      string `json:"category"`
	Amount        string `json:"amount"`
	Notes         string `json:"notes"`
}

// DefaultRecord is the fallback substituted whenever extraction cannot
// produce a valid structured result. It is fully populated, never partial.
func DefaultRecord(captureTime time.Time) Record {
	return Record{
		Date:          captureTime.Format(DateLayout),
		Time:          captureTime.Format(TimeLayout),
		ModeOfPayment: "Unknown",
		Source:        "Unknown",
		Category:      "Miscellaneous",
		Amount:        "0",
		Notes:         "Could not parse expense details",
	}
}

// FormatFields renders the labeled field lines shown in every record message.
func (r Record) FormatFields() string {
	return fmt.Sprintf(`📅 Date: %s
🕐 Time: %s
💳 Payment Mode: %s
🏪 Source: %s
📂 Category: %s
💰 Amount: ₱%s
📝 Notes: %s`, r.Date, r.Time, r.ModeOfPayment, r.Source, r.Category, r.Amount, r.Notes)
}

// Format renders the full parsed-expense message body.
func (r Record) Format() string {
	return "📊 Expense Parsed\n\n" + r.FormatFields()
}
