package extraction

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jlagdameo/gastos-bot/internal/expense"
)

// All prompts demand the same seven-key JSON object so one parser covers
// every inference path.

const recordKeysClause = `Return ONLY a valid JSON object with these exact keys: date, time, mode_of_payment, source, category, amount, notes

Example format:
{"date": "July 28, 2025", "time": "10:18 PM", "mode_of_payment": "Cash", "source": "Jikoku Fukuoka Ramen", "category": "Food", "amount": "1,056.00", "notes": "Tonkotsu Ramen, Gyoza (5 pcs), Iced Green Tea"}`

const transcribePrompt = "Transcribe this audio recording exactly as spoken. Return only the transcript text with no commentary."

// imagePrompt instructs the vision model to read a receipt or payment
// screenshot. Date and time are dictated by the capture moment, never by
// timestamps printed on the receipt.
func imagePrompt(captureTime time.Time) string {
	return fmt.Sprintf(`You are an expert at reading receipts and payment screenshots. Analyze this image carefully and extract expense information.

Current time: %s

Look for these details in the image:
1. Date: ALWAYS use today's date in format "Month Day, Year": %s
2. Time: ALWAYS use the current time in 12-hour format: %s
3. Mode of Payment:
   - If you see "GCash" branding, logos, or text -> "GCash"
   - If you see card logos (Visa, Mastercard) or "CARD" -> "Debit Card" or "Credit Card"
   - If it's a paper receipt without digital payment info -> "Cash"
   - Otherwise -> "Unknown"
4. Source: The restaurant/store/business name (with proper Title Case capitalization)
5. Category: Based on the business type (Food, Transportation, Shopping, Bills, etc.)
6. Amount: Look for "Total", "Amount", or the final price. Format with commas (e.g., "1,056.00")
7. Notes: List the specific items purchased from the receipt. If items aren't clearly visible, provide a brief summary

IMPORTANT:
- Read the text in the image carefully
- Don't return "Unknown" unless you truly cannot read the information
- The business name should be readable from the receipt header

%s`,
		captureTime.Format("2006-01-02 03:04 PM"),
		captureTime.Format(expense.DateLayout),
		captureTime.Format(expense.TimeLayout),
		recordKeysClause)
}

// textPrompt instructs the model to parse a free-text expense description.
// It omits the visual payment-mode cues that only apply to images.
func textPrompt(text string, captureTime time.Time) string {
	return fmt.Sprintf(`Parse this expense description and extract information. Current time: %s

Text: %q

Extract:
1. Date: ALWAYS use today's date in format "Month Day, Year": %s
2. Time: ALWAYS use the current time in 12-hour format: %s
3. Mode of Payment: Determine from context (GCash, debit card, credit card, cash)
4. Source: The business/merchant name (proper capitalization)
5. Category: Classify the expense (Food, Transportation, Shopping, Bills, etc.)
6. Amount: Extract amount with proper comma formatting
7. Notes: Brief summary with proper grammar

%s`,
		captureTime.Format("2006-01-02 03:04 PM"),
		text,
		captureTime.Format(expense.DateLayout),
		captureTime.Format(expense.TimeLayout),
		recordKeysClause)
}

// editPrompt carries the serialized record plus the user's instruction.
// Unchanged fields must come back verbatim; notes are rewritten as one
// natural sentence rather than appended to.
func editPrompt(rec expense.Record, instruction string) string {
	serialized, _ := json.MarshalIndent(rec, "", "  ")
	return fmt.Sprintf(`Original expense data: %s

User's edit instruction: %q

Apply the user's requested changes to the expense data intelligently:
1. Keep all unchanged fields exactly the same
2. For notes: Rewrite to sound natural and conversational, like how a person would describe the expense
3. Don't just append - create a proper, flowing sentence
4. For other fields: Update only if the instruction implies a change

Example:
Original notes: "Regular Concrete, Special Oreo"
Edit: "add that I ate with my college friends"
Good result: "Ate with my college friends and ordered Regular Concrete and Special Oreo."

%s`, serialized, instruction, recordKeysClause)
}
