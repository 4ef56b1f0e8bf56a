package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jlagdameo/gastos-bot/internal/expense"
)

// Provider is the inference backend the extractor and merger call into.
type Provider interface {
	// GenerateVision sends a prompt plus an image and returns the text response.
	GenerateVision(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)

	// GenerateText sends a text-only prompt and returns the text response.
	GenerateText(ctx context.Context, prompt string) (string, error)

	// Transcribe converts audio to text.
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)

	// Close closes the provider and releases resources.
	Close() error
}

// Extractor normalizes raw user input into canonical expense records.
type Extractor struct {
	provider Provider
}

// NewExtractor creates a new Extractor instance.
func NewExtractor(provider Provider) *Extractor {
	return &Extractor{provider: provider}
}

// Extract converts one input into a record. It never fails: any provider
// error or malformed response logs and yields the default record for
// captureTime. Date and time in the result always reflect captureTime, never
// timestamps found in the input itself.
func (e *Extractor) Extract(ctx context.Context, in expense.Input, captureTime time.Time) expense.Record {
	rec, err := e.extract(ctx, in, captureTime)
	if err != nil {
		slog.Error("Extraction failed, using default record", "modality", in.Modality, "error", err)
		return expense.DefaultRecord(captureTime)
	}

	rec.Date = captureTime.Format(expense.DateLayout)
	rec.Time = captureTime.Format(expense.TimeLayout)
	return rec
}

func (e *Extractor) extract(ctx context.Context, in expense.Input, captureTime time.Time) (expense.Record, error) {
	switch in.Modality {
	case expense.ModalityImage:
		image, mimeType, err := preparePayload(in.Data, in.MimeType)
		if err != nil {
			return expense.Record{}, fmt.Errorf("preparing image: %w", err)
		}
		raw, err := e.provider.GenerateVision(ctx, imagePrompt(captureTime), image, mimeType)
		if err != nil {
			return expense.Record{}, fmt.Errorf("vision call: %w", err)
		}
		slog.Debug("Vision response", "response", raw)
		return parseRecord(raw)

	case expense.ModalityAudio:
		transcript, err := e.provider.Transcribe(ctx, in.Data, in.MimeType)
		if err != nil {
			return expense.Record{}, fmt.Errorf("transcribing audio: %w", err)
		}
		slog.Debug("Audio transcript", "transcript", transcript)
		return e.fromText(ctx, transcript, captureTime)

	case expense.ModalityText:
		return e.fromText(ctx, in.Text, captureTime)

	default:
		return expense.Record{}, fmt.Errorf("unsupported modality: %s", in.Modality)
	}
}

func (e *Extractor) fromText(ctx context.Context, text string, captureTime time.Time) (expense.Record, error) {
	raw, err := e.provider.GenerateText(ctx, textPrompt(text, captureTime))
	if err != nil {
		return expense.Record{}, fmt.Errorf("text call: %w", err)
	}
	slog.Debug("Text response", "response", raw)
	return parseRecord(raw)
}

// Transcribe converts audio to text for use as an edit instruction.
func (e *Extractor) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	return e.provider.Transcribe(ctx, audio, mimeType)
}

// Close closes the underlying provider.
func (e *Extractor) Close() error {
	return e.provider.Close()
}
