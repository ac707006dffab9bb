package server

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/doc-digitizer/internal/document"
	"github.com/zombor/doc-digitizer/internal/extraction"
	"github.com/zombor/doc-digitizer/internal/history"
	"github.com/zombor/doc-digitizer/internal/scanning"
	"github.com/zombor/doc-digitizer/internal/session"
	"github.com/zombor/doc-digitizer/internal/storage"
)

// fakeScanner returns a canned model response
type fakeScanner struct {
	response string
	err      error
	requests []scanning.Request
}

func (f *fakeScanner) Transcribe(ctx context.Context, req scanning.Request) (string, error) {
	f.requests = append(f.requests, req)
	return f.response, f.err
}

func (f *fakeScanner) Close() error {
	return nil
}

var _ = Describe("Integration", func() {
	var (
		tempDir  string
		kv       storage.KV
		scanner  *fakeScanner
		registry *document.Registry
		store    *history.Store
		ghServer *ghttp.Server
		err      error
	)

	// start wires the full stack over kv the way the command does
	start := func() {
		registry = document.NewRegistry(kv)
		registry.Load()
		store = history.NewStore(kv)
		store.Load()
		client := extraction.NewClient(scanner)
		sess := session.New(client, store, registry)
		server := NewServer(sess, registry, store)

		if ghServer != nil {
			ghServer.Close()
		}
		ghServer = ghttp.NewServer()
		routeAll(ghServer, server.ServeHTTP)
	}

	BeforeEach(func() {
		tempDir, err = os.MkdirTemp("", "doc-digitizer-test-*")
		Expect(err).NotTo(HaveOccurred())

		kv, err = storage.NewBoltKV(filepath.Join(tempDir, "test.db"))
		Expect(err).NotTo(HaveOccurred())

		scanner = &fakeScanner{
			response: "```json\n[{\"partNumber\":\"100\",\"description\":\"Bolt\",\"quantity\":\"5\",\"unit\":\"ea\"}]\n```",
		}
		start()
	})

	AfterEach(func() {
		if ghServer != nil {
			ghServer.Close()
			ghServer = nil
		}
		if kv != nil {
			kv.Close()
		}
		if tempDir != "" {
			os.RemoveAll(tempDir)
		}
	})

	It("should extract a document, persist it, and reload it after a restart", func() {
		// --- Step 1: Upload ---
		resp := uploadTo(ghServer.URL(), "BOM", jpeg("bom.jpg"))
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		var snap session.Snapshot
		decode(resp, &snap)
		Expect(snap.State.Status).To(Equal(session.Complete))
		Expect(snap.Items).To(HaveLen(1))
		Expect(snap.Items[0].ID).NotTo(BeEmpty())
		Expect(snap.Items[0].Get("notes")).To(Equal(""))

		Expect(scanner.requests).To(HaveLen(1))
		Expect(scanner.requests[0].Temperature).To(Equal(extraction.Temperature))
		Expect(scanner.requests[0].Pages).To(HaveLen(1))
		Expect(scanner.requests[0].Pages[0].Data).To(Equal([]byte("jpeg-bytes")))

		// --- Step 2: Edit ---
		resp = doAt(ghServer.URL(), "PATCH", "/api/session/items/"+snap.Items[0].ID, `{"field":"quantity","value":"8"}`)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		resp.Body.Close()

		// --- Step 3: Restart over the same database ---
		start()

		resp = doAt(ghServer.URL(), "GET", "/api/history", "")
		var entries []history.Entry
		decode(resp, &entries)
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].FileName).To(Equal("bom.jpg"))
		Expect(entries[0].DocType).To(Equal(document.BOM))
		Expect(entries[0].Items[0].Get("quantity")).To(Equal("8"))
		Expect(entries[0].Items[0].ID).To(Equal(snap.Items[0].ID))
	})

	It("should keep prompt overrides across a restart", func() {
		resp := doAt(ghServer.URL(), "PUT", "/api/doctypes/PO/prompt", `{"prompt":"Only the line items"}`)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		resp.Body.Close()

		start()

		cfg, err := registry.ConfigFor(document.PO)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Prompt).To(Equal("Only the line items"))

		resp = uploadTo(ghServer.URL(), "PO", jpeg("po.jpg"))
		resp.Body.Close()
		Expect(scanner.requests[len(scanner.requests)-1].Instruction).To(HavePrefix("Only the line items\n\n"))
	})

	When("the model output does not match the schema", func() {
		BeforeEach(func() {
			scanner.response = `[{"partNumber": 5}]`
		})

		It("should report the failure and record nothing", func() {
			resp := uploadTo(ghServer.URL(), "BOM", jpeg("bom.jpg"))
			Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))

			var body map[string]any
			decode(resp, &body)
			Expect(body["error"]).To(Equal(extraction.FailureMessage))
			Expect(store.List()).To(BeEmpty())
		})
	})

	When("the model is not configured", func() {
		BeforeEach(func() {
			scanner.err = scanning.ErrMissingAPIKey
		})

		It("should surface a configuration message", func() {
			resp := uploadTo(ghServer.URL(), "BOM", jpeg("bom.jpg"))
			Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))

			var body map[string]any
			decode(resp, &body)
			Expect(body["error"]).To(ContainSubstring("GEMINI_API_KEY"))
		})
	})
})

func uploadTo(baseURL, docType string, uploads ...upload) *http.Response {
	body, contentType := multipartBody(docType, uploads...)
	return do("POST", baseURL+"/api/session/upload", body, contentType)
}

func doAt(baseURL, method, path, jsonBody string) *http.Response {
	if jsonBody == "" {
		return do(method, baseURL+path, nil, "")
	}
	return do(method, baseURL+path, strings.NewReader(jsonBody), "application/json")
}
