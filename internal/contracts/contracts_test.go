package contracts_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/internal/answer"
	"github.com/JaimeStill/covenant/internal/contracts"
	"github.com/JaimeStill/covenant/internal/corpus"
	"github.com/JaimeStill/covenant/internal/extract"
	"github.com/JaimeStill/covenant/internal/index"
	"github.com/JaimeStill/covenant/internal/parse"
	"github.com/JaimeStill/covenant/internal/retrieve"
	"github.com/JaimeStill/covenant/internal/segment"
	"github.com/JaimeStill/covenant/pkg/pagination"
	"github.com/JaimeStill/covenant/pkg/query"
	"github.com/JaimeStill/covenant/pkg/storage"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const (
	terminationDoc = "This Services Agreement is made between Acme Corp and Beta LLC. " +
		"Either party may terminate this Agreement with 90 days written notice to the other party."
	paymentDoc = "This Supply Agreement is made between Gamma Inc and Delta Ltd. " +
		"Invoices are payable net 30 from the date of receipt by the customer."
	plainDoc = "The quick brown fox jumps over the lazy dog near the river bank."

	servicesDoc = "MASTER SERVICES AGREEMENT\n\n" +
		"1. Services. Provider shall perform the consulting services described in each statement of work " +
		"issued by Customer. Provider shall use qualified personnel and shall perform the services in a " +
		"professional and workmanlike manner consistent with generally accepted industry standards.\n\n" +
		"2. Notices. Every notice under this Agreement must be given in writing. The notice period for a " +
		"notice sent by courier is two business days, and the notice period for a notice sent by mail is " +
		"five business days. Any change to a notice address requires notice to the other party.\n\n" +
		"3. Payment. Customer shall pay each invoice within thirty days of receipt. Late payments accrue " +
		"interest at one percent per month until paid in full.\n\n" +
		"4. Term and Termination. This Agreement begins on the Effective Date and continues for three " +
		"years. Either party may terminate this Agreement with 90 days written notice to the other party. " +
		"Either party may terminate this Agreement immediately for cause if the other party materially " +
		"breaches it and fails to cure the breach.\n\n" +
		"5. Confidentiality. Each party shall keep the confidential information of the other party in strict " +
		"confidence and shall not disclose it to any third party without prior written consent.\n"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type options struct {
	classifier extract.Classifier
	backend    corpus.Backend
	storage    storage.System
	generator  answer.Generator
	askTimeout time.Duration
}

type fixture struct {
	sys   contracts.System
	store *corpus.Store
	index *index.Manager
	blobs *storage.Memory
}

func newFixture(t *testing.T, opts ...func(*options)) *fixture {
	t.Helper()

	blobs := storage.NewMemory(discard())
	o := options{
		classifier: extract.NewRuleClassifier(),
		backend:    corpus.NewMemoryBackend(),
		storage:    blobs,
	}
	for _, opt := range opts {
		opt(&o)
	}

	store := corpus.NewStore(o.backend, discard())
	idx := index.NewManager(func() index.Source { return store.Snapshot() }, index.Config{}, discard())
	t.Cleanup(idx.Close)

	parser, err := parse.New(context.Background(), 0, discard())
	if err != nil {
		t.Fatalf("parse.New: %v", err)
	}

	sys := contracts.New(contracts.Deps{
		Store:     store,
		Index:     idx,
		Parser:    parser,
		Segmenter: segment.New(segment.DefaultOptions()),
		Extractor: extract.New(o.classifier, extract.Config{}, discard()),
		Retriever: retrieve.New(idx, store, retrieve.Config{}, discard()),
		Answerer:  answer.New(o.generator, 0, discard()),
		Storage:   o.storage,
		Logger:    discard(),
	}, contracts.Config{
		AskTimeout: o.askTimeout,
		Pagination: pagination.Config{DefaultPageSize: 10, MaxPageSize: 50},
		Now:        func() time.Time { return now },
	})

	return &fixture{sys: sys, store: store, index: idx, blobs: blobs}
}

func text(name, body string) contracts.IngestCommand {
	return contracts.IngestCommand{
		Data:        []byte(body),
		Filename:    name,
		ContentType: parse.MimeText,
	}
}

func (f *fixture) ingest(t *testing.T, name, body string) *corpus.Details {
	t.Helper()
	d, err := f.sys.Ingest(context.Background(), text(name, body))
	if err != nil {
		t.Fatalf("Ingest(%s): %v", name, err)
	}
	return d
}

// assertEmpty fails unless no contract, blob, or index entry exists.
func (f *fixture) assertEmpty(t *testing.T) {
	t.Helper()
	if n := f.store.Snapshot().Len(); n != 0 {
		t.Errorf("corpus holds %d contracts, want 0", n)
	}
	if n := f.blobs.Len(); n != 0 {
		t.Errorf("storage holds %d blobs, want 0", n)
	}
	if n := f.index.Index().Len(); n != 0 {
		t.Errorf("index holds %d chunks, want 0", n)
	}
}

type failingClassifier struct{}

func (failingClassifier) Classify(ctx context.Context, chunk corpus.Chunk) (extract.Classification, bool, error) {
	return extract.Classification{}, false, errors.New("classifier unavailable")
}

type failingBackend struct {
	*corpus.MemoryBackend
}

func (failingBackend) Save(ctx context.Context, rec corpus.Record) error {
	return errors.New("disk full")
}

type stalledGenerator struct{}

func (stalledGenerator) Generate(ctx context.Context, query string, evidence []corpus.Evidence) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestIngestTerminationScenario(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, "supply.txt", paymentDoc)
	d := f.ingest(t, "services.txt", terminationDoc)

	var termination *corpus.Clause
	for i, cl := range d.Clauses {
		if cl.Title == extract.TopicTermination {
			termination = &d.Clauses[i]
		}
	}
	if termination == nil {
		t.Fatalf("no Termination clause in %+v", d.Clauses)
	}
	if termination.Confidence < 50 {
		t.Errorf("Termination confidence = %v, want >= 50", termination.Confidence)
	}

	var cited bool
	for _, in := range d.Insights {
		if in.Type == corpus.InsightRisk && slices.Contains(in.ClauseIDs, termination.ID) {
			cited = true
		}
	}
	if !cited {
		t.Errorf("no Risk insight cites the Termination clause: %+v", d.Insights)
	}
	if d.Risk == corpus.RiskLow {
		t.Errorf("Risk = %s, want above Low", d.Risk)
	}

	res, err := f.sys.Ask(context.Background(), contracts.AskCommand{Query: "What is the termination notice period?"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(res.Chunks) == 0 {
		t.Fatal("Ask returned no evidence")
	}
	top := res.Chunks[0]
	if !slices.Contains(termination.ChunkIDs, top.ChunkID) {
		t.Errorf("top chunk %s is not the termination chunk %v", top.ChunkID, termination.ChunkIDs)
	}
	if top.Relevance != 100 {
		t.Errorf("top relevance = %v, want 100", top.Relevance)
	}
	if top.ContractName != "services.txt" {
		t.Errorf("top contract = %s, want services.txt", top.ContractName)
	}
	if res.Answer == answer.InsufficientEvidence || !strings.Contains(res.Answer, "[1]") {
		t.Errorf("answer = %q, want a cited answer", res.Answer)
	}
}

func TestAskRanksClauseOverTermFrequency(t *testing.T) {
	f := newFixture(t)
	d := f.ingest(t, "msa.txt", servicesDoc)

	var termination *corpus.Clause
	for i, cl := range d.Clauses {
		if cl.Title == extract.TopicTermination {
			termination = &d.Clauses[i]
		}
	}
	if termination == nil {
		t.Fatalf("no Termination clause in %+v", d.Clauses)
	}

	res, err := f.sys.Ask(context.Background(), contracts.AskCommand{Query: "What is the termination notice period?"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(res.Chunks) == 0 {
		t.Fatal("Ask returned no evidence")
	}
	top := res.Chunks[0]
	if !slices.Contains(termination.ChunkIDs, top.ChunkID) {
		t.Errorf("top chunk %q is not a termination chunk", top.Text)
	}
	if !strings.Contains(top.Text, "terminate this Agreement with 90 days written notice") {
		t.Errorf("top chunk %q lacks the notice term", top.Text)
	}
	if top.Relevance != 100 {
		t.Errorf("top relevance = %v, want 100", top.Relevance)
	}
}

func TestIngestDerivesContract(t *testing.T) {
	f := newFixture(t)
	d := f.ingest(t, "services.txt", terminationDoc)

	if d.Name != "services.txt" {
		t.Errorf("Name = %s, want services.txt", d.Name)
	}
	if !d.UploadedAt.Equal(now) {
		t.Errorf("UploadedAt = %v, want %v", d.UploadedAt, now)
	}
	if want := now.AddDate(1, 0, 0); !d.ExpiryDate.Equal(want) {
		t.Errorf("ExpiryDate = %v, want %v", d.ExpiryDate, want)
	}
	if d.Status != corpus.StatusActive {
		t.Errorf("Status = %s, want Active", d.Status)
	}
	if !slices.Contains(d.Warnings, contracts.WarnExpiryInferred) {
		t.Errorf("Warnings = %v, want %q", d.Warnings, contracts.WarnExpiryInferred)
	}
	if d.ContentType != parse.MimeText || d.SizeBytes != int64(len(terminationDoc)) || d.PageCount != 1 {
		t.Errorf("file metadata = %s %d %d", d.ContentType, d.SizeBytes, d.PageCount)
	}
	if len(d.Evidence) == 0 {
		t.Error("Evidence is empty, want the clause chunks")
	}
}

func TestIngestNoExtractableContent(t *testing.T) {
	f := newFixture(t)
	d := f.ingest(t, "notes.txt", plainDoc)

	if len(d.Clauses) != 0 || len(d.Insights) != 0 {
		t.Errorf("clauses = %d, insights = %d; want none", len(d.Clauses), len(d.Insights))
	}
	if !slices.Contains(d.Warnings, contracts.WarnNoClauses) {
		t.Errorf("Warnings = %v, want %q", d.Warnings, contracts.WarnNoClauses)
	}
	if d.Risk != corpus.RiskLow {
		t.Errorf("Risk = %s, want Low", d.Risk)
	}
	if f.store.Snapshot().Len() != 1 {
		t.Error("contract was not stored")
	}
}

func TestIngestErrors(t *testing.T) {
	tests := []struct {
		name string
		cmd  contracts.IngestCommand
		want contracts.ErrorKind
	}{
		{"empty bytes", contracts.IngestCommand{Filename: "empty.txt", ContentType: parse.MimeText}, contracts.KindEmptyDocument},
		{"blank text", text("blank.txt", " \n\t \n"), contracts.KindEmptyDocument},
		{"unsupported type", contracts.IngestCommand{Data: []byte("\x89PNG\r\n\x1a\n"), Filename: "scan.png", ContentType: "image/png"}, contracts.KindUnsupportedFileType},
		{"too large", contracts.IngestCommand{Data: bytes.Repeat([]byte("a"), int(parse.DefaultMaxSize)+1), Filename: "big.txt", ContentType: parse.MimeText}, contracts.KindFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.sys.Ingest(context.Background(), tt.cmd)
			if got := contracts.Kind(err); got != tt.want {
				t.Errorf("Kind = %s (%v), want %s", got, err, tt.want)
			}
			f.assertEmpty(t)
		})
	}
}

func TestIngestAtomicOnClassifierFailure(t *testing.T) {
	f := newFixture(t, func(o *options) { o.classifier = failingClassifier{} })
	before := f.store.Snapshot().Version()

	_, err := f.sys.Ingest(context.Background(), text("services.txt", terminationDoc))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if got := f.store.Snapshot().Version(); got != before {
		t.Errorf("snapshot version = %d, want %d", got, before)
	}
	f.assertEmpty(t)
}

func TestIngestAtomicOnBackendFailure(t *testing.T) {
	f := newFixture(t, func(o *options) { o.backend = failingBackend{corpus.NewMemoryBackend()} })

	_, err := f.sys.Ingest(context.Background(), text("services.txt", terminationDoc))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if contracts.Kind(err) != contracts.KindInternal {
		t.Errorf("Kind = %s, want Internal", contracts.Kind(err))
	}
	f.assertEmpty(t)
}

func TestIngestCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.sys.Ingest(ctx, text("services.txt", terminationDoc))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if contracts.Kind(err) != contracts.KindCanceled {
		t.Errorf("Kind = %s, want Canceled", contracts.Kind(err))
	}
	f.assertEmpty(t)
}

func TestReingestIdempotent(t *testing.T) {
	f := newFixture(t)
	first := f.ingest(t, "services.txt", terminationDoc)

	second, err := f.sys.Reingest(context.Background(), first.ID, text("services.txt", terminationDoc))
	if err != nil {
		t.Fatalf("Reingest: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("reingest changed details:\nfirst  %+v\nsecond %+v", first, second)
	}
	if n := f.blobs.Len(); n != 1 {
		t.Errorf("storage holds %d blobs, want 1", n)
	}
	if err := f.index.Verify(f.store.Snapshot()); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestReingestReplaces(t *testing.T) {
	f := newFixture(t)
	first := f.ingest(t, "services.txt", terminationDoc)

	second, err := f.sys.Reingest(context.Background(), first.ID, text("services-v2.txt", paymentDoc))
	if err != nil {
		t.Fatalf("Reingest: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("ID = %s, want %s", second.ID, first.ID)
	}
	if second.Locator == first.Locator {
		t.Error("locator unchanged after new content")
	}
	if n := f.blobs.Len(); n != 1 {
		t.Errorf("storage holds %d blobs, want 1", n)
	}
	for _, cl := range second.Clauses {
		if cl.Title == extract.TopicTermination {
			t.Error("stale Termination clause survived reingest")
		}
	}
	if err := f.index.Verify(f.store.Snapshot()); err != nil {
		t.Errorf("Verify: %v", err)
	}

	res, err := f.sys.Ask(context.Background(), contracts.AskCommand{Query: "termination notice"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(res.Chunks) != 0 {
		t.Errorf("Ask returned %d stale chunks", len(res.Chunks))
	}
}

func TestReingestNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.sys.Reingest(context.Background(), uuid.New(), text("services.txt", terminationDoc))
	if contracts.Kind(err) != contracts.KindNotFound {
		t.Errorf("Kind = %s, want NotFound", contracts.Kind(err))
	}
	f.assertEmpty(t)
}

func TestReprocess(t *testing.T) {
	f := newFixture(t)
	first := f.ingest(t, "services.txt", terminationDoc)

	second, err := f.sys.Reprocess(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("Reprocess: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("reprocess changed details")
	}
}

func TestConcurrentIngest(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := range 8 {
		wg.Go(func() {
			body := fmt.Sprintf("%s Reference number %d.", terminationDoc, i)
			if _, err := f.sys.Ingest(context.Background(), text(fmt.Sprintf("c%d.txt", i), body)); err != nil {
				errs <- err
			}
		})
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Ingest: %v", err)
	}
	if n := f.store.Snapshot().Len(); n != 8 {
		t.Errorf("corpus holds %d contracts, want 8", n)
	}
	if err := f.index.Verify(f.store.Snapshot()); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestConcurrentReingestSerialized(t *testing.T) {
	f := newFixture(t)
	d := f.ingest(t, "services.txt", terminationDoc)

	var wg sync.WaitGroup
	for i := range 6 {
		wg.Go(func() {
			body := fmt.Sprintf("%s Revision %d.", paymentDoc, i)
			if _, err := f.sys.Reingest(context.Background(), d.ID, text("services.txt", body)); err != nil {
				t.Errorf("Reingest: %v", err)
			}
		})
	}
	wg.Wait()

	if n := f.blobs.Len(); n != 1 {
		t.Errorf("storage holds %d blobs, want 1", n)
	}
	if err := f.index.Verify(f.store.Snapshot()); err != nil {
		t.Errorf("Verify: %v", err)
	}
	current, err := f.sys.Find(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	ok, err := f.blobs.Exists(context.Background(), current.Locator)
	if err != nil || !ok {
		t.Errorf("current locator %s missing from storage", current.Locator)
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	d := f.ingest(t, "services.txt", terminationDoc)

	if err := f.sys.Delete(context.Background(), d.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	f.assertEmpty(t)

	if _, err := f.sys.Find(context.Background(), d.ID); contracts.Kind(err) != contracts.KindNotFound {
		t.Errorf("Find after delete: Kind = %s, want NotFound", contracts.Kind(err))
	}
	if err := f.sys.Delete(context.Background(), d.ID); contracts.Kind(err) != contracts.KindNotFound {
		t.Errorf("second Delete: Kind = %s, want NotFound", contracts.Kind(err))
	}
}

func TestDocument(t *testing.T) {
	f := newFixture(t)
	d := f.ingest(t, "services.txt", terminationDoc)

	doc, err := f.sys.Document(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if string(doc.Data) != terminationDoc {
		t.Error("document bytes differ from upload")
	}
	if doc.Filename != "services.txt" || doc.ContentType != parse.MimeText {
		t.Errorf("document = %s %s", doc.Filename, doc.ContentType)
	}

	if _, err := f.sys.Document(context.Background(), uuid.New()); contracts.Kind(err) != contracts.KindNotFound {
		t.Errorf("Kind = %s, want NotFound", contracts.Kind(err))
	}
}

func TestList(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, "services.txt", terminationDoc)
	f.ingest(t, "supply.txt", paymentDoc)
	f.ingest(t, "notes.txt", plainDoc)

	page := pagination.PageRequest{Page: 1, PageSize: 2}
	res, err := f.sys.List(context.Background(), page, corpus.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if res.Total != 3 || len(res.Data) != 2 || res.TotalPages != 2 {
		t.Errorf("page = total %d, len %d, pages %d; want 3, 2, 2", res.Total, len(res.Data), res.TotalPages)
	}

	search := "SUPPLY"
	res, err = f.sys.List(context.Background(), pagination.PageRequest{}, corpus.Filter{Search: &search})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if res.Total != 1 || res.Data[0].Name != "supply.txt" {
		t.Errorf("search = %+v", res.Data)
	}

	low := corpus.RiskLow
	active := corpus.StatusActive
	res, err = f.sys.List(context.Background(), pagination.PageRequest{}, corpus.Filter{Risk: &low, Status: &active, Search: &search})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, c := range res.Data {
		if c.Risk != low || c.Status != active || !strings.Contains(c.Name, "supply") {
			t.Errorf("filter admitted %s (%s, %s)", c.Name, c.Status, c.Risk)
		}
	}

	page = pagination.PageRequest{Page: 1, PageSize: 10, Sort: []query.SortField{{Field: "name"}}}
	res, err = f.sys.List(context.Background(), page, corpus.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var names []string
	for _, c := range res.Data {
		names = append(names, c.Name)
	}
	if want := []string{"notes.txt", "services.txt", "supply.txt"}; !slices.Equal(names, want) {
		t.Errorf("sorted names = %v, want %v", names, want)
	}
}

func TestAskInsufficientEvidence(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, "supply.txt", paymentDoc)

	res, err := f.sys.Ask(context.Background(), contracts.AskCommand{Query: "termination notice"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.Answer != answer.InsufficientEvidence {
		t.Errorf("Answer = %q, want %q", res.Answer, answer.InsufficientEvidence)
	}
	if res.Chunks == nil || len(res.Chunks) != 0 {
		t.Errorf("Chunks = %v, want empty", res.Chunks)
	}
}

func TestAskErrors(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, "services.txt", terminationDoc)

	tests := []struct {
		name string
		cmd  contracts.AskCommand
		want contracts.ErrorKind
	}{
		{"empty query", contracts.AskCommand{Query: "  "}, contracts.KindEmptyQuery},
		{"punctuation only", contracts.AskCommand{Query: "?!"}, contracts.KindEmptyQuery},
		{"unknown contract", contracts.AskCommand{Query: "termination", ContractIDs: []uuid.UUID{uuid.New()}}, contracts.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.sys.Ask(context.Background(), tt.cmd)
			if got := contracts.Kind(err); got != tt.want {
				t.Errorf("Kind = %s (%v), want %s", got, err, tt.want)
			}
		})
	}
}

func TestAskScoped(t *testing.T) {
	f := newFixture(t)
	services := f.ingest(t, "services.txt", terminationDoc)
	supply := f.ingest(t, "supply.txt", paymentDoc)

	res, err := f.sys.Ask(context.Background(), contracts.AskCommand{
		Query:       "agreement between parties",
		ContractIDs: []uuid.UUID{supply.ID},
	})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	for _, c := range res.Chunks {
		if c.ContractID == services.ID {
			t.Errorf("scoped ask returned chunk from %s", c.ContractName)
		}
	}
}

func TestAskTimeout(t *testing.T) {
	f := newFixture(t, func(o *options) {
		o.generator = stalledGenerator{}
		o.askTimeout = 20 * time.Millisecond
	})
	f.ingest(t, "services.txt", terminationDoc)

	_, err := f.sys.Ask(context.Background(), contracts.AskCommand{Query: "termination notice"})
	if contracts.Kind(err) != contracts.KindTimeout {
		t.Errorf("Kind = %s (%v), want Timeout", contracts.Kind(err), err)
	}
}

func TestReports(t *testing.T) {
	f := newFixture(t)

	empty, err := f.sys.Reports(context.Background())
	if err != nil {
		t.Fatalf("Reports: %v", err)
	}
	if empty.Total != 0 || len(empty.UpcomingExpirations) != 0 {
		t.Errorf("empty report = %+v", empty)
	}
	for _, p := range empty.StatusPercent {
		if p != 0 {
			t.Errorf("empty StatusPercent = %v", empty.StatusPercent)
		}
	}

	f.ingest(t, "services.txt", terminationDoc)
	f.ingest(t, "expiring.txt", "This lease agreement expires on March 15, 2026. Rent is due monthly.")

	r, err := f.sys.Reports(context.Background())
	if err != nil {
		t.Fatalf("Reports: %v", err)
	}
	if r.Total != 2 {
		t.Errorf("Total = %d, want 2", r.Total)
	}
	if r.StatusSummary[corpus.StatusRenewalDue] != 1 || r.StatusSummary[corpus.StatusActive] != 1 {
		t.Errorf("StatusSummary = %v", r.StatusSummary)
	}
	if len(r.UpcomingExpirations) != 1 || r.UpcomingExpirations[0].Name != "expiring.txt" {
		t.Errorf("UpcomingExpirations = %+v", r.UpcomingExpirations)
	}
}

func TestEvents(t *testing.T) {
	f := newFixture(t)
	events, cancel := f.sys.Subscribe()
	defer cancel()

	d := f.ingest(t, "services.txt", terminationDoc)

	want := []contracts.Stage{
		contracts.StageSegmented,
		contracts.StageExtracted,
		contracts.StageIndexed,
		contracts.StageCommitted,
	}
	for _, stage := range want {
		select {
		case e := <-events:
			if e.Stage != stage {
				t.Errorf("stage = %s, want %s", e.Stage, stage)
			}
			if e.ContractID != d.ID {
				t.Errorf("contract = %s, want %s", e.ContractID, d.ID)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", stage)
		}
	}

	if _, err := f.sys.Ingest(context.Background(), text("blank.txt", "   ")); err == nil {
		t.Fatal("expected error for blank document")
	}
	select {
	case e := <-events:
		if e.Stage != contracts.StageFailed || e.Kind != contracts.KindEmptyDocument {
			t.Errorf("event = %s %s, want failed EmptyDocument", e.Stage, e.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for failed event")
	}

	cancel()
	if _, ok := <-events; ok {
		t.Error("channel still open after cancel")
	}
}

func TestRebuildIndex(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, "services.txt", terminationDoc)
	f.ingest(t, "supply.txt", paymentDoc)

	stats, err := f.sys.RebuildIndex(context.Background())
	if err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}
	if stats.Contracts != 2 || stats.Rebuilds != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Chunks != f.index.Index().Len() {
		t.Errorf("Chunks = %d, want %d", stats.Chunks, f.index.Index().Len())
	}
}
