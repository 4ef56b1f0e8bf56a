package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jlagdameo/gastos-bot/internal/expense"
)

// Bot long-polls the Telegram API and dispatches updates to the expense
// service. Each update runs in its own goroutine; the service serializes
// turns per user, so one slow extraction never blocks other users.
type Bot struct {
	client      *Client
	service     *expense.Service
	pollTimeout int
}

// NewBot creates a new Bot instance. pollTimeout is the long-poll timeout in
// seconds.
func NewBot(client *Client, service *expense.Service, pollTimeout int) *Bot {
	if pollTimeout <= 0 {
		pollTimeout = 30
	}
	return &Bot{
		client:      client,
		service:     service,
		pollTimeout: pollTimeout,
	}
}

// Run polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	slog.Info("Bot started, polling for updates", "poll_timeout", b.pollTimeout)

	var offset int64
	for {
		updates, err := b.client.GetUpdates(ctx, offset, b.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("Failed to fetch updates", "error", err)
			time.Sleep(3 * time.Second)
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			go b.dispatch(ctx, update)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, update Update) {
	log := slog.With("request_id", uuid.NewString(), "update_id", update.UpdateID)

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, log, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, log, update.Message)
	}
}

func (b *Bot) handleCallback(ctx context.Context, log *slog.Logger, query *CallbackQuery) {
	if err := b.client.AnswerCallbackQuery(ctx, query.ID); err != nil {
		log.Warn("Failed to answer callback query", "error", err)
	}
	if query.Message == nil {
		log.Warn("Callback query without message", "user_id", query.From.ID)
		return
	}

	log.Info("Handling action", "user_id", query.From.ID, "action", query.Data)
	b.service.HandleAction(ctx, query.From.ID, query.Message.Chat.ID, query.Message.MessageID, expense.Action(query.Data))
}

func (b *Bot) handleMessage(ctx context.Context, log *slog.Logger, msg *Message) {
	if msg.From == nil {
		return
	}
	userID, chatID := msg.From.ID, msg.Chat.ID

	if strings.HasPrefix(msg.Text, "/") {
		if command(msg.Text) == "/start" {
			log.Info("Handling /start", "user_id", userID)
			b.service.HandleStart(ctx, chatID)
		}
		return
	}

	in, ok, err := b.inputFor(ctx, msg)
	if err != nil {
		log.Error("Failed to fetch message payload", "user_id", userID, "error", err)
		if _, sendErr := b.client.SendMessage(ctx, chatID, "Sorry, I couldn't process that. Please try again.", nil); sendErr != nil {
			log.Error("Failed to send apology message", "error", sendErr)
		}
		return
	}
	if !ok {
		return // stickers, locations, etc.
	}

	log.Info("Handling message", "user_id", userID, "modality", in.Modality)
	b.service.HandleMessage(ctx, userID, chatID, in)
}

// inputFor maps a Telegram message onto a normalized input, downloading the
// attachment when there is one.
func (b *Bot) inputFor(ctx context.Context, msg *Message) (expense.Input, bool, error) {
	switch {
	case len(msg.Photo) > 0:
		// Telegram orders photo sizes smallest first.
		largest := msg.Photo[len(msg.Photo)-1]
		data, err := b.client.DownloadFile(ctx, largest.FileID)
		if err != nil {
			return expense.Input{}, false, fmt.Errorf("downloading photo: %w", err)
		}
		return expense.Input{Modality: expense.ModalityImage, Data: data, MimeType: "image/jpeg"}, true, nil

	case msg.Voice != nil:
		data, err := b.client.DownloadFile(ctx, msg.Voice.FileID)
		if err != nil {
			return expense.Input{}, false, fmt.Errorf("downloading voice note: %w", err)
		}
		return expense.Input{Modality: expense.ModalityAudio, Data: data, MimeType: msg.Voice.MimeType}, true, nil

	case msg.Audio != nil:
		data, err := b.client.DownloadFile(ctx, msg.Audio.FileID)
		if err != nil {
			return expense.Input{}, false, fmt.Errorf("downloading audio: %w", err)
		}
		return expense.Input{Modality: expense.ModalityAudio, Data: data, MimeType: msg.Audio.MimeType}, true, nil

	case msg.Document != nil && isVisualDocument(msg.Document.MimeType):
		data, err := b.client.DownloadFile(ctx, msg.Document.FileID)
		if err != nil {
			return expense.Input{}, false, fmt.Errorf("downloading document: %w", err)
		}
		return expense.Input{Modality: expense.ModalityImage, Data: data, MimeType: msg.Document.MimeType}, true, nil

	case msg.Text != "":
		return expense.Input{Modality: expense.ModalityText, Text: msg.Text}, true, nil
	}

	return expense.Input{}, false, nil
}

// isVisualDocument reports whether a document attachment can go through the
// image extraction path.
func isVisualDocument(mimeType string) bool {
	mimeType = strings.ToLower(mimeType)
	return strings.HasPrefix(mimeType, "image/") || mimeType == "application/pdf"
}

func command(text string) string {
	cmd := strings.Fields(text)[0]
	// Commands may be addressed as /start@botname in groups.
	if at := strings.Index(cmd, "@"); at != -1 {
		cmd = cmd[:at]
	}
	return cmd
}
