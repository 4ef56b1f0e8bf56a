package expense

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Modality identifies the kind of raw input a user sent.
type Modality string

const (
	ModalityImage Modality = "image"
	ModalityAudio Modality = "audio"
	ModalityText  Modality = "text"
)

// Input is one inbound user message in normalized form. Data carries the raw
// bytes for image and audio input; Text carries the message text.
type Input struct {
	Modality Modality
	Data     []byte
	MimeType string
	Text     string
}

// Extractor turns one input into a canonical record. Implementations never
// fail: unusable inference output maps to the default record for the capture
// time.
type Extractor interface {
	Extract(ctx context.Context, in Input, captureTime time.Time) Record
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// Merger applies a free-form edit instruction to an existing record.
// Implementations return the input record unchanged when the instruction
// cannot be applied.
type Merger interface {
	ApplyEdit(ctx context.Context, rec Record, instruction string) Record
}

// TimeSource provides the current time.
type TimeSource interface {
	Now() time.Time
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

const (
	welcomeMessage = "🏪 Welcome to Gastos Bot!\n\n" +
		"Send me:\n" +
		"📷 Images of receipts or GCash screenshots\n" +
		"🎵 Audio recordings of expenses\n" +
		"💬 Text descriptions of expenses\n\n" +
		"I'll parse them and extract expense details for you!"

	loadingImageMessage = "🔍 Analyzing receipt image..."
	loadingAudioMessage = "🎵 Processing audio recording..."
	loadingTextMessage  = "💭 Processing expense description..."

	confirmPrompt    = "\n\n📋 Please confirm or edit this expense:"
	confirmedSuffix  = "\n\n✅ Expense confirmed and saved!"
	cancelledMessage = "❌ Expense entry cancelled."
	notFoundMessage  = "❌ Expense data not found. Please try again."
	apologyMessage   = "Sorry, I couldn't process that. Please try again."
)

// Service drives the extraction-and-confirmation conversation. A user's slot
// moves through: empty → pending (extraction), pending → pending (edit merge
// or a fresh image), pending → empty (confirm or cancel). Any text or audio
// message from a user with a pending record is treated as an edit
// instruction; no explicit edit handshake is required.
type Service struct {
	store      PendingStore
	extractor  Extractor
	merger     Merger
	messenger  Messenger
	timeSource TimeSource
	loc        *time.Location

	mu        sync.Mutex
	userLocks map[int64]*sync.Mutex
}

// NewService creates a new Service with the default time source.
func NewService(store PendingStore, extractor Extractor, merger Merger, messenger Messenger, loc *time.Location) *Service {
	return NewServiceWithDeps(store, extractor, merger, messenger, loc, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with a custom time source for testing.
func NewServiceWithDeps(store PendingStore, extractor Extractor, merger Merger, messenger Messenger, loc *time.Location, timeSource TimeSource) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		store:      store,
		extractor:  extractor,
		merger:     merger,
		messenger:  messenger,
		timeSource: timeSource,
		loc:        loc,
		userLocks:  make(map[int64]*sync.Mutex),
	}
}

// userLock returns the per-user mutex, creating it on first use. Holding it
// for a whole extract/merge cycle keeps one user's turns sequential without
// blocking other users.
func (s *Service) userLock(userID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	return lock
}

func (s *Service) now() time.Time {
	return s.timeSource.Now().In(s.loc)
}

// HandleStart sends the welcome message.
func (s *Service) HandleStart(ctx context.Context, chatID int64) {
	if _, err := s.messenger.SendText(ctx, chatID, welcomeMessage); err != nil {
		slog.Error("Failed to send welcome message", "chat_id", chatID, "error", err)
	}
}

// HandleMessage routes one inbound message. Text and audio from a user with a
// pending record become edit instructions; everything else runs a fresh
// extraction. An image always re-extracts, replacing any pending record.
func (s *Service) HandleMessage(ctx context.Context, userID, chatID int64, in Input) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	pending, ok, err := s.store.Get(userID)
	if err != nil {
		slog.Error("Failed to read pending slot", "user_id", userID, "error", err)
		s.apologize(ctx, chatID)
		return
	}

	if ok && in.Modality != ModalityImage {
		s.applyEdit(ctx, userID, chatID, pending, in)
		return
	}
	s.extract(ctx, userID, chatID, in)
}

// extract runs a fresh extraction and presents the result. The pending slot
// is written only after the extraction call has returned, so a half-updated
// record is never observable.
func (s *Service) extract(ctx context.Context, userID, chatID int64, in Input) {
	loadingID, loadingErr := s.messenger.SendText(ctx, chatID, loadingMessage(in.Modality))
	if loadingErr != nil {
		slog.Warn("Failed to send loading message", "chat_id", chatID, "error", loadingErr)
	}

	rec := s.extractor.Extract(ctx, in, s.now())

	if loadingErr == nil {
		if err := s.messenger.Delete(ctx, chatID, loadingID); err != nil {
			slog.Warn("Failed to delete loading message", "chat_id", chatID, "error", err)
		}
	}

	s.present(ctx, userID, chatID, rec)
}

// applyEdit treats the input as an edit instruction against the pending
// record. Audio is transcribed first and the transcript echoed back.
func (s *Service) applyEdit(ctx context.Context, userID, chatID int64, pending Record, in Input) {
	instruction := in.Text
	if in.Modality == ModalityAudio {
		transcript, err := s.extractor.Transcribe(ctx, in.Data, in.MimeType)
		if err != nil {
			slog.Error("Failed to transcribe edit instruction", "user_id", userID, "error", err)
			s.apologize(ctx, chatID)
			return
		}
		instruction = transcript
		if _, err := s.messenger.SendText(ctx, chatID, fmt.Sprintf("🎙️ I heard: %q", transcript)); err != nil {
			slog.Warn("Failed to echo transcript", "chat_id", chatID, "error", err)
		}
	}

	updated := s.merger.ApplyEdit(ctx, pending, instruction)
	s.present(ctx, userID, chatID, updated)
}

// present stores rec as the user's pending record and sends it back with the
// confirmation buttons.
func (s *Service) present(ctx context.Context, userID, chatID int64, rec Record) {
	if err := s.store.Set(userID, rec); err != nil {
		slog.Error("Failed to store pending record", "user_id", userID, "error", err)
		s.apologize(ctx, chatID)
		return
	}

	if _, err := s.messenger.SendConfirmation(ctx, chatID, rec.Format()+confirmPrompt); err != nil {
		slog.Error("Failed to send confirmation message", "chat_id", chatID, "error", err)
	}
}

// HandleAction resolves a confirm/edit/cancel button press by editing the
// message the buttons were attached to. An action with no pending record
// reports "not found" and leaves state empty; it is never an error.
func (s *Service) HandleAction(ctx context.Context, userID, chatID int64, messageID int, action Action) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	rec, ok, err := s.store.Get(userID)
	if err != nil {
		slog.Error("Failed to read pending slot", "user_id", userID, "error", err)
		s.editMessage(ctx, chatID, messageID, notFoundMessage)
		return
	}
	if !ok {
		s.editMessage(ctx, chatID, messageID, notFoundMessage)
		return
	}

	switch action {
	case ActionConfirm:
		s.clear(userID)
		s.editMessage(ctx, chatID, messageID, rec.Format()+confirmedSuffix)
	case ActionEdit:
		// Pressing edit only echoes the record as a prompt. The next
		// message is already treated as an instruction either way.
		s.editMessage(ctx, chatID, messageID, "✏️ Edit mode activated!\n\nWhat should we change here?\n\n"+rec.FormatFields())
	case ActionCancel:
		s.clear(userID)
		s.editMessage(ctx, chatID, messageID, cancelledMessage)
	default:
		slog.Warn("Unknown action", "user_id", userID, "action", action)
	}
}

func (s *Service) clear(userID int64) {
	if err := s.store.Clear(userID); err != nil {
		slog.Error("Failed to clear pending slot", "user_id", userID, "error", err)
	}
}

func (s *Service) editMessage(ctx context.Context, chatID int64, messageID int, text string) {
	if err := s.messenger.EditText(ctx, chatID, messageID, text); err != nil {
		slog.Error("Failed to edit message", "chat_id", chatID, "message_id", messageID, "error", err)
	}
}

func (s *Service) apologize(ctx context.Context, chatID int64) {
	if _, err := s.messenger.SendText(ctx, chatID, apologyMessage); err != nil {
		slog.Error("Failed to send apology message", "chat_id", chatID, "error", err)
	}
}

func loadingMessage(m Modality) string {
	switch m {
	case ModalityImage:
		return loadingImageMessage
	case ModalityAudio:
		return loadingAudioMessage
	default:
		return loadingTextMessage
	}
}
