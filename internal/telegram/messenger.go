package telegram

import (
	"context"

	"github.com/jlagdameo/gastos-bot/internal/expense"
)

// confirmationKeyboard carries the three action affordances attached to
// every pending-record message.
var confirmationKeyboard = &InlineKeyboardMarkup{
	InlineKeyboard: [][]InlineKeyboardButton{{
		{Text: "✅ CONFIRM", CallbackData: string(expense.ActionConfirm)},
		{Text: "✏️ EDIT", CallbackData: string(expense.ActionEdit)},
		{Text: "❌ CANCEL", CallbackData: string(expense.ActionCancel)},
	}},
}

// Messenger adapts Client to the expense.Messenger interface.
type Messenger struct {
	client *Client
}

// NewMessenger creates a new Messenger instance.
func NewMessenger(client *Client) *Messenger {
	return &Messenger{client: client}
}

// SendText sends a plain text message and returns its message ID.
func (m *Messenger) SendText(ctx context.Context, chatID int64, text string) (int, error) {
	msg, err := m.client.SendMessage(ctx, chatID, text, nil)
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// SendConfirmation sends a message with the confirm/edit/cancel buttons.
func (m *Messenger) SendConfirmation(ctx context.Context, chatID int64, text string) (int, error) {
	msg, err := m.client.SendMessage(ctx, chatID, text, confirmationKeyboard)
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// EditText replaces the text of an existing message.
func (m *Messenger) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	return m.client.EditMessageText(ctx, chatID, messageID, text)
}

// Delete removes a message.
func (m *Messenger) Delete(ctx context.Context, chatID int64, messageID int) error {
	return m.client.DeleteMessage(ctx, chatID, messageID)
}
