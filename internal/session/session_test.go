package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/doc-digitizer/internal/document"
	"github.com/zombor/doc-digitizer/internal/extraction"
	"github.com/zombor/doc-digitizer/internal/history"
	"github.com/zombor/doc-digitizer/internal/ingest"
	"github.com/zombor/doc-digitizer/internal/storage"
)

func TestSession(t *testing.T) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	RegisterFailHandler(Fail)
	RunSpecs(t, "Session Suite")
}

type memoryKV struct {
	data map[string][]byte
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: make(map[string][]byte)}
}

func (m *memoryKV) Get(key string) ([]byte, error) {
	v, ok := m.data[key]
	if !ok {
		return nil, storage.ErrKeyNotFound
	}
	return v, nil
}

func (m *memoryKV) Put(key string, data []byte) error {
	m.data[key] = data
	return nil
}

func (m *memoryKV) Close() error { return nil }

type mockTranscriber struct {
	items       []document.Item
	err         error
	calls       int
	payloads    []ingest.Payload
	docType     document.Type
	instruction string
	// block, when set, holds Transcribe until it is closed
	block   chan struct{}
	started chan struct{}
}

func (m *mockTranscriber) Transcribe(ctx context.Context, payloads []ingest.Payload, docType document.Type, instruction string) ([]document.Item, error) {
	m.calls++
	m.payloads = payloads
	m.docType = docType
	m.instruction = instruction
	if m.started != nil {
		close(m.started)
	}
	if m.block != nil {
		<-m.block
	}
	return document.CloneItems(m.items), m.err
}

type sequenceIDGenerator struct {
	n int
}

func (g *sequenceIDGenerator) Generate() string {
	g.n++
	return fmt.Sprintf("h-%d", g.n)
}

type fixedTimeSource struct{}

func (fixedTimeSource) Now() time.Time {
	return time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
}

func page(name string) ingest.File {
	return ingest.File{Name: name, MediaType: "image/jpeg", Data: []byte("jpeg-bytes")}
}

func boltItem() document.Item {
	return document.Item{ID: "i-1", Fields: map[string]string{
		"partNumber": "100", "description": "Bolt", "quantity": "5", "unit": "ea", "notes": "",
	}}
}

var _ = Describe("Session", func() {
	var (
		transcriber *mockTranscriber
		store       *history.Store
		registry    *document.Registry
		s           *Session
		ctx         context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		transcriber = &mockTranscriber{items: []document.Item{boltItem()}}
		store = history.NewStoreWithDeps(newMemoryKV(), &sequenceIDGenerator{}, fixedTimeSource{})
		registry = document.NewRegistry(newMemoryKV())
		s = New(transcriber, store, registry)
	})

	It("starts idle with the BOM layout", func() {
		snap := s.Snapshot()
		Expect(snap.State.Status).To(Equal(Idle))
		Expect(snap.DocType).To(Equal(document.BOM))
		Expect(snap.Label).To(Equal("Bill of Materials"))
		Expect(snap.Items).To(BeEmpty())
	})

	Describe("SelectFiles", func() {
		var (
			files   []ingest.File
			docType document.Type
			snap    Snapshot
			err     error
		)

		BeforeEach(func() {
			files = []ingest.File{page("bom.jpg")}
			docType = document.BOM
		})

		JustBeforeEach(func() {
			snap, err = s.SelectFiles(ctx, files, docType)
		})

		When("one BOM page is extracted", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("completes with the extracted items", func() {
				Expect(snap.State.Status).To(Equal(Complete))
				Expect(snap.Items).To(Equal([]document.Item{boltItem()}))
				Expect(snap.Pages).To(HaveLen(1))
			})

			It("records a history entry and makes it active", func() {
				entries := store.List()
				Expect(entries).To(HaveLen(1))
				Expect(entries[0].DocType).To(Equal(document.BOM))
				Expect(entries[0].FileName).To(Equal("bom.jpg"))
				Expect(entries[0].Items).To(HaveLen(1))
				Expect(snap.ActiveHistoryID).To(Equal(entries[0].ID))
			})

			It("sends the configured prompt for the type", func() {
				cfg, _ := registry.ConfigFor(document.BOM)
				Expect(transcriber.instruction).To(Equal(cfg.Prompt))
				Expect(transcriber.docType).To(Equal(document.BOM))
				Expect(transcriber.payloads).To(HaveLen(1))
			})

			It("exports the result as CSV", func() {
				var buf bytes.Buffer
				name, contentType, err := s.Export(&buf, CSV, fixedTimeSource{}.Now())
				Expect(err).NotTo(HaveOccurred())
				Expect(buf.String()).To(Equal("Part #,Description,Qty,Unit,Notes\n\"100\",\"Bolt\",\"5\",\"ea\",\"\""))
				Expect(name).To(Equal("BOM_Export_2024-01-15.csv"))
				Expect(contentType).To(Equal("text/csv;charset=utf-8"))
			})
		})

		When("several pages are selected", func() {
			BeforeEach(func() {
				files = []ingest.File{page("a.jpg"), page("b.jpg"), page("c.jpg")}
			})

			It("labels the history entry with the first name and the count", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(store.List()[0].FileName).To(Equal("a.jpg +2"))
			})
		})

		When("more than three files are selected", func() {
			BeforeEach(func() {
				files = []ingest.File{page("a.jpg"), page("b.jpg"), page("c.jpg"), page("d.jpg")}
			})

			It("returns a validation error and stays idle", func() {
				var vErr *ingest.ValidationError
				Expect(errors.As(err, &vErr)).To(BeTrue())
				Expect(s.Snapshot().State.Status).To(Equal(Idle))
				Expect(store.List()).To(BeEmpty())
				Expect(transcriber.calls).To(Equal(0))
			})
		})

		When("a file is not an image or PDF", func() {
			BeforeEach(func() {
				files = []ingest.File{{Name: "notes.txt", MediaType: "text/plain", Data: []byte("hi")}}
			})

			It("returns a validation error and stays idle", func() {
				var vErr *ingest.ValidationError
				Expect(errors.As(err, &vErr)).To(BeTrue())
				Expect(s.Snapshot().State.Status).To(Equal(Idle))
			})
		})

		When("the document type is unknown", func() {
			BeforeEach(func() {
				docType = document.Type("RECEIPT")
			})

			It("returns a validation error", func() {
				var vErr *ingest.ValidationError
				Expect(errors.As(err, &vErr)).To(BeTrue())
				Expect(s.Snapshot().State.Status).To(Equal(Idle))
			})
		})

		When("the extraction fails", func() {
			BeforeEach(func() {
				transcriber.err = &extraction.Error{Message: extraction.FailureMessage, Err: errors.New("boom")}
			})

			It("moves to the error state with the failure message", func() {
				Expect(err).To(HaveOccurred())
				Expect(snap.State.Status).To(Equal(Failed))
				Expect(snap.State.Message).To(Equal(extraction.FailureMessage))
				Expect(snap.Items).To(BeEmpty())
				Expect(store.List()).To(BeEmpty())
			})
		})

		When("the model is not configured", func() {
			BeforeEach(func() {
				transcriber.err = &extraction.ConfigurationError{Message: "not configured"}
			})

			It("surfaces the configuration message", func() {
				Expect(snap.State.Status).To(Equal(Failed))
				Expect(snap.State.Message).To(Equal("not configured"))
			})
		})

		When("the model returns nothing", func() {
			BeforeEach(func() {
				transcriber.items = []document.Item{}
			})

			It("completes with an empty table and records it", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(snap.State.Status).To(Equal(Complete))
				Expect(snap.Items).To(BeEmpty())
				Expect(store.List()).To(HaveLen(1))
			})
		})
	})

	When("a result is complete", func() {
		It("rejects another selection until a new upload starts", func() {
			_, err := s.SelectFiles(ctx, []ingest.File{page("a.jpg")}, document.BOM)
			Expect(err).NotTo(HaveOccurred())

			_, err = s.SelectFiles(ctx, []ingest.File{page("b.jpg")}, document.BOM)
			Expect(err).To(MatchError(ErrNotIdle))

			snap, err := s.NewUpload()
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.State.Status).To(Equal(Idle))
			Expect(snap.Items).To(BeEmpty())
			Expect(snap.ActiveHistoryID).To(BeEmpty())
			Expect(store.List()).To(HaveLen(1))
		})
	})

	When("an extraction is in flight", func() {
		var done chan error

		BeforeEach(func() {
			transcriber.block = make(chan struct{})
			transcriber.started = make(chan struct{})
			done = make(chan error, 1)
			go func() {
				_, err := s.SelectFiles(ctx, []ingest.File{page("a.jpg")}, document.Invoice)
				done <- err
			}()
			Eventually(transcriber.started).Should(BeClosed())
		})

		AfterEach(func() {
			close(transcriber.block)
			Eventually(done).Should(Receive(BeNil()))
		})

		It("reports processing with a progress message", func() {
			snap := s.Snapshot()
			Expect(snap.State.Status).To(Equal(Processing))
			Expect(snap.State.Message).To(Equal("Analyzing 1 INVOICE page(s)..."))
		})

		It("rejects history selection", func() {
			_, err := s.SelectHistory("h-1")
			Expect(err).To(MatchError(ErrBusy))
		})

		It("rejects a new upload and another selection", func() {
			_, err := s.NewUpload()
			Expect(err).To(MatchError(ErrBusy))
			_, err = s.SelectFiles(ctx, []ingest.File{page("b.jpg")}, document.BOM)
			Expect(err).To(MatchError(ErrBusy))
		})

		It("rejects edits", func() {
			_, err := s.DeleteItem("i-1")
			Expect(err).To(MatchError(ErrNotEditable))
		})
	})

	Describe("editing", func() {
		var historyID string

		BeforeEach(func() {
			snap, err := s.SelectFiles(ctx, []ingest.File{page("a.jpg")}, document.BOM)
			Expect(err).NotTo(HaveOccurred())
			historyID = snap.ActiveHistoryID
		})

		It("updates a field and mirrors it into history", func() {
			snap, err := s.UpdateItem("i-1", "quantity", "7")
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Items[0].Get("quantity")).To(Equal("7"))

			entry, err := store.SelectSession(historyID)
			Expect(err).NotTo(HaveOccurred())
			Expect(entry.Items[0].Get("quantity")).To(Equal("7"))
		})

		It("deletes a row and mirrors it into history", func() {
			snap, err := s.DeleteItem("i-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Items).To(BeEmpty())

			entry, _ := store.SelectSession(historyID)
			Expect(entry.Items).To(BeEmpty())
		})

		It("rejects unknown rows", func() {
			_, err := s.UpdateItem("nope", "quantity", "7")
			Expect(errors.Is(err, ErrItemNotFound)).To(BeTrue())
			_, err = s.DeleteItem("nope")
			Expect(errors.Is(err, ErrItemNotFound)).To(BeTrue())
		})

		It("rejects fields the document type does not have", func() {
			_, err := s.UpdateItem("i-1", "vendor", "Acme")
			Expect(errors.Is(err, ErrUnknownField)).To(BeTrue())
		})

		It("does not touch other history entries", func() {
			_, err := s.NewUpload()
			Expect(err).NotTo(HaveOccurred())
			_, err = s.SelectFiles(ctx, []ingest.File{page("b.jpg")}, document.BOM)
			Expect(err).NotTo(HaveOccurred())

			_, err = s.UpdateItem("i-1", "notes", "second")
			Expect(err).NotTo(HaveOccurred())

			first, _ := store.SelectSession(historyID)
			Expect(first.Items[0].Get("notes")).To(Equal(""))
		})
	})

	Describe("history", func() {
		var entry history.Entry

		BeforeEach(func() {
			var err error
			entry, err = store.RecordSession("old.pdf", document.PO, []document.Item{
				{ID: "p-1", Fields: map[string]string{"sku": "S1"}},
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("loads a past session as complete", func() {
			snap, err := s.SelectHistory(entry.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.State.Status).To(Equal(Complete))
			Expect(snap.DocType).To(Equal(document.PO))
			Expect(snap.Label).To(Equal("Purchase Order"))
			Expect(snap.Items).To(HaveLen(1))
			Expect(snap.Pages).To(BeEmpty())
			Expect(snap.ActiveHistoryID).To(Equal(entry.ID))
		})

		It("returns not found for an unknown id", func() {
			_, err := s.SelectHistory("missing")
			Expect(errors.Is(err, history.ErrNotFound)).To(BeTrue())
		})

		It("resets to idle when the active entry is deleted", func() {
			_, err := s.SelectHistory(entry.ID)
			Expect(err).NotTo(HaveOccurred())

			snap, err := s.DeleteHistory(entry.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.State.Status).To(Equal(Idle))
			Expect(snap.Items).To(BeEmpty())
			Expect(store.List()).To(BeEmpty())
		})

		It("keeps the active result when another entry is deleted", func() {
			other, _ := store.RecordSession("other.jpg", document.BOM, nil)
			_, err := s.SelectHistory(entry.ID)
			Expect(err).NotTo(HaveOccurred())

			snap, err := s.DeleteHistory(other.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.State.Status).To(Equal(Complete))
			Expect(snap.ActiveHistoryID).To(Equal(entry.ID))
		})

		It("exports the selected entry as XLSX", func() {
			_, err := s.SelectHistory(entry.ID)
			Expect(err).NotTo(HaveOccurred())

			var buf bytes.Buffer
			name, _, err := s.Export(&buf, XLSX, fixedTimeSource{}.Now())
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("PO_Export_2024-01-15.xlsx"))
			Expect(buf.Len()).To(BeNumerically(">", 0))
		})
	})
})
