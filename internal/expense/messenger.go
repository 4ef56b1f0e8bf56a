package expense

import "context"

// Action tags carried by the confirmation buttons.
type Action string

const (
	ActionConfirm Action = "confirm"
	ActionEdit    Action = "edit"
	ActionCancel  Action = "cancel"
)

// Messenger is the narrow surface of the messaging transport the service
// needs: plain sends, sends carrying the confirm/edit/cancel buttons, and
// edits or deletions of earlier messages. Send methods return the ID of the
// sent message so it can be edited or deleted later.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) (int, error)
	SendConfirmation(ctx context.Context, chatID int64, text string) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string) error
	Delete(ctx context.Context, chatID int64, messageID int) error
}
