package expense

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// mockExtractor is a mock implementation of Extractor
type mockExtractor struct {
	record        Record
	transcript    string
	transcribeErr error

	extractInputs []Input
	captureTimes  []time.Time
}

func (m *mockExtractor) Extract(ctx context.Context, in Input, captureTime time.Time) Record {
	m.extractInputs = append(m.extractInputs, in)
	m.captureTimes = append(m.captureTimes, captureTime)
	return m.record
}

func (m *mockExtractor) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if m.transcribeErr != nil {
		return "", m.transcribeErr
	}
	return m.transcript, nil
}

// mockMerger is a mock implementation of Merger
type mockMerger struct {
	updated      Record
	noop         bool
	records      []Record
	instructions []string
}

func (m *mockMerger) ApplyEdit(ctx context.Context, rec Record, instruction string) Record {
	m.records = append(m.records, rec)
	m.instructions = append(m.instructions, instruction)
	if m.noop {
		return rec
	}
	return m.updated
}

type sentMessage struct {
	chatID    int64
	messageID int
	text      string
	buttons   bool
}

// mockMessenger records every outbound interaction.
type mockMessenger struct {
	nextID  int
	sent    []sentMessage
	edits   []sentMessage
	deleted []sentMessage

	sendErr   error
	editErr   error
	deleteErr error
}

func (m *mockMessenger) send(chatID int64, text string, buttons bool) (int, error) {
	if m.sendErr != nil {
		return 0, m.sendErr
	}
	m.nextID++
	m.sent = append(m.sent, sentMessage{chatID: chatID, messageID: m.nextID, text: text, buttons: buttons})
	return m.nextID, nil
}

func (m *mockMessenger) SendText(ctx context.Context, chatID int64, text string) (int, error) {
	return m.send(chatID, text, false)
}

func (m *mockMessenger) SendConfirmation(ctx context.Context, chatID int64, text string) (int, error) {
	return m.send(chatID, text, true)
}

func (m *mockMessenger) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	if m.editErr != nil {
		return m.editErr
	}
	m.edits = append(m.edits, sentMessage{chatID: chatID, messageID: messageID, text: text})
	return nil
}

func (m *mockMessenger) Delete(ctx context.Context, chatID int64, messageID int) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, sentMessage{chatID: chatID, messageID: messageID})
	return nil
}

// confirmations filters sent messages down to ones carrying buttons.
func (m *mockMessenger) confirmations() []sentMessage {
	var out []sentMessage
	for _, msg := range m.sent {
		if msg.buttons {
			out = append(out, msg)
		}
	}
	return out
}

// mockTimeSource is a mock implementation of TimeSource
type mockTimeSource struct {
	now time.Time
}

func (m *mockTimeSource) Now() time.Time {
	return m.now
}

var _ = Describe("Service", func() {
	const (
		userID = int64(101)
		chatID = int64(201)
	)

	var (
		store     *MemoryStore
		extractor *mockExtractor
		merger    *mockMerger
		messenger *mockMessenger
		timeSrc   *mockTimeSource
		service   *Service
		ctx       context.Context

		extracted Record
		merged    Record
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = NewMemoryStore()
		extracted = Record{
			Date:          "July 28, 2025",
			Time:          "02:30 PM",
			ModeOfPayment: "Cash",
			Source:        "Jeepney",
			Category:      "Transportation",
			Amount:        "250",
			Notes:         "Jeepney fare",
		}
		merged = extracted
		merged.Amount = "300"

		extractor = &mockExtractor{record: extracted}
		merger = &mockMerger{updated: merged}
		messenger = &mockMessenger{}
		timeSrc = &mockTimeSource{now: time.Date(2025, 7, 28, 14, 30, 0, 0, time.UTC)}
		service = NewServiceWithDeps(store, extractor, merger, messenger, time.UTC, timeSrc)
	})

	Describe("HandleStart", func() {
		It("sends the welcome message", func() {
			service.HandleStart(ctx, chatID)
			Expect(messenger.sent).To(HaveLen(1))
			Expect(messenger.sent[0].text).To(ContainSubstring("Welcome"))
		})
	})

	Describe("HandleMessage with no pending record", func() {
		var in Input

		BeforeEach(func() {
			in = Input{Modality: ModalityText, Text: "Spent 250 on jeepney fare"}
		})

		JustBeforeEach(func() {
			service.HandleMessage(ctx, userID, chatID, in)
		})

		It("runs the extractor with the capture time", func() {
			Expect(extractor.extractInputs).To(HaveLen(1))
			Expect(extractor.captureTimes[0]).To(Equal(timeSrc.now))
		})

		It("does not run the merger", func() {
			Expect(merger.records).To(BeEmpty())
		})

		It("stores the extracted record as pending", func() {
			got, ok, _ := store.Get(userID)
			Expect(ok).To(BeTrue())
			Expect(got).To(Equal(extracted))
		})

		It("sends a loading message and deletes it after extraction", func() {
			Expect(messenger.sent[0].text).To(ContainSubstring("Processing"))
			Expect(messenger.deleted).To(HaveLen(1))
			Expect(messenger.deleted[0].messageID).To(Equal(messenger.sent[0].messageID))
		})

		It("sends the record with the confirmation buttons", func() {
			confirmations := messenger.confirmations()
			Expect(confirmations).To(HaveLen(1))
			Expect(confirmations[0].text).To(ContainSubstring("₱250"))
			Expect(confirmations[0].text).To(ContainSubstring("Please confirm or edit"))
		})

		When("the input is an image", func() {
			BeforeEach(func() {
				in = Input{Modality: ModalityImage, Data: []byte("image"), MimeType: "image/jpeg"}
			})

			It("uses the image loading message", func() {
				Expect(messenger.sent[0].text).To(ContainSubstring("Analyzing receipt image"))
			})
		})

		When("the loading message cannot be sent", func() {
			BeforeEach(func() {
				messenger.sendErr = errors.New("transport down")
			})

			It("still stores the extracted record", func() {
				_, ok, _ := store.Get(userID)
				Expect(ok).To(BeTrue())
			})

			It("does not try to delete anything", func() {
				Expect(messenger.deleted).To(BeEmpty())
			})
		})
	})

	Describe("HandleMessage with a pending record", func() {
		var in Input

		BeforeEach(func() {
			Expect(store.Set(userID, extracted)).To(Succeed())
			in = Input{Modality: ModalityText, Text: "change amount to 300"}
		})

		JustBeforeEach(func() {
			service.HandleMessage(ctx, userID, chatID, in)
		})

		It("feeds the pending record and instruction to the merger", func() {
			Expect(merger.records).To(ConsistOf(extracted))
			Expect(merger.instructions).To(ConsistOf("change amount to 300"))
		})

		It("does not run the extractor", func() {
			Expect(extractor.extractInputs).To(BeEmpty())
		})

		It("replaces the pending record with the merge result", func() {
			got, ok, _ := store.Get(userID)
			Expect(ok).To(BeTrue())
			Expect(got).To(Equal(merged))
		})

		It("re-sends the record with the confirmation buttons", func() {
			confirmations := messenger.confirmations()
			Expect(confirmations).To(HaveLen(1))
			Expect(confirmations[0].text).To(ContainSubstring("₱300"))
		})

		When("the merger cannot apply the instruction", func() {
			BeforeEach(func() {
				merger.noop = true
			})

			It("keeps the pending record value-identical", func() {
				got, _, _ := store.Get(userID)
				Expect(got).To(Equal(extracted))
			})
		})

		When("the input is audio", func() {
			BeforeEach(func() {
				extractor.transcript = "change amount to 300"
				in = Input{Modality: ModalityAudio, Data: []byte("voice"), MimeType: "audio/ogg"}
			})

			It("echoes the transcript", func() {
				Expect(messenger.sent[0].text).To(ContainSubstring(`I heard: "change amount to 300"`))
			})

			It("merges with the transcript as the instruction", func() {
				Expect(merger.instructions).To(ConsistOf("change amount to 300"))
			})
		})

		When("audio transcription fails", func() {
			BeforeEach(func() {
				extractor.transcribeErr = errors.New("no speech model")
				in = Input{Modality: ModalityAudio, Data: []byte("voice"), MimeType: "audio/ogg"}
			})

			It("apologizes instead of merging", func() {
				Expect(merger.records).To(BeEmpty())
				Expect(messenger.sent).To(HaveLen(1))
				Expect(messenger.sent[0].text).To(ContainSubstring("Sorry"))
			})

			It("leaves the pending record untouched", func() {
				got, _, _ := store.Get(userID)
				Expect(got).To(Equal(extracted))
			})
		})

		When("the input is an image", func() {
			var fresh Record

			BeforeEach(func() {
				fresh = extracted
				fresh.Source = "Shell"
				extractor.record = fresh
				in = Input{Modality: ModalityImage, Data: []byte("image"), MimeType: "image/jpeg"}
			})

			It("re-extracts instead of merging", func() {
				Expect(extractor.extractInputs).To(HaveLen(1))
				Expect(merger.records).To(BeEmpty())
			})

			It("replaces the pending record with the new extraction", func() {
				got, _, _ := store.Get(userID)
				Expect(got).To(Equal(fresh))
			})
		})
	})

	Describe("HandleAction", func() {
		const messageID = 7

		var action Action

		JustBeforeEach(func() {
			service.HandleAction(ctx, userID, chatID, messageID, action)
		})

		When("no record is pending", func() {
			BeforeEach(func() {
				action = ActionConfirm
			})

			It("reports not found", func() {
				Expect(messenger.edits).To(HaveLen(1))
				Expect(messenger.edits[0].text).To(ContainSubstring("not found"))
			})

			It("stays not found on repeat", func() {
				service.HandleAction(ctx, userID, chatID, messageID, ActionCancel)
				Expect(messenger.edits).To(HaveLen(2))
				Expect(messenger.edits[1].text).To(ContainSubstring("not found"))
			})
		})

		When("confirming a pending record", func() {
			BeforeEach(func() {
				action = ActionConfirm
				Expect(store.Set(userID, extracted)).To(Succeed())
			})

			It("clears the slot", func() {
				_, ok, _ := store.Get(userID)
				Expect(ok).To(BeFalse())
			})

			It("annotates the message as confirmed", func() {
				Expect(messenger.edits).To(HaveLen(1))
				Expect(messenger.edits[0].messageID).To(Equal(messageID))
				Expect(messenger.edits[0].text).To(ContainSubstring("confirmed and saved"))
				Expect(messenger.edits[0].text).To(ContainSubstring("₱250"))
			})

			It("reports not found on a second confirm", func() {
				service.HandleAction(ctx, userID, chatID, messageID, ActionConfirm)
				Expect(messenger.edits[1].text).To(ContainSubstring("not found"))
			})
		})

		When("cancelling a pending record", func() {
			BeforeEach(func() {
				action = ActionCancel
				Expect(store.Set(userID, extracted)).To(Succeed())
			})

			It("clears the slot", func() {
				_, ok, _ := store.Get(userID)
				Expect(ok).To(BeFalse())
			})

			It("acknowledges the cancellation", func() {
				Expect(messenger.edits[0].text).To(ContainSubstring("cancelled"))
			})
		})

		When("pressing edit", func() {
			BeforeEach(func() {
				action = ActionEdit
				Expect(store.Set(userID, extracted)).To(Succeed())
			})

			It("echoes the record as a prompt", func() {
				Expect(messenger.edits[0].text).To(ContainSubstring("What should we change here?"))
				Expect(messenger.edits[0].text).To(ContainSubstring("₱250"))
			})

			It("keeps the record pending", func() {
				_, ok, _ := store.Get(userID)
				Expect(ok).To(BeTrue())
			})
		})
	})

	Describe("per-user isolation", func() {
		It("never shares pending slots between users", func() {
			otherRecord := extracted
			otherRecord.Source = "Shell"

			service.HandleMessage(ctx, userID, chatID, Input{Modality: ModalityText, Text: "jeepney fare 250"})

			extractor.record = otherRecord
			service.HandleMessage(ctx, 102, 202, Input{Modality: ModalityText, Text: "gas 1500"})

			got1, _, _ := store.Get(userID)
			got2, _, _ := store.Get(102)
			Expect(got1.Source).To(Equal("Jeepney"))
			Expect(got2.Source).To(Equal("Shell"))
		})

		It("extracts for the second user even while the first has a pending record", func() {
			Expect(store.Set(userID, extracted)).To(Succeed())

			service.HandleMessage(ctx, 102, 202, Input{Modality: ModalityText, Text: "gas 1500"})

			Expect(extractor.extractInputs).To(HaveLen(1))
			Expect(merger.records).To(BeEmpty())
		})
	})
})
