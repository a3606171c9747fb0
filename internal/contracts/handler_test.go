package contracts_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/internal/contracts"
	"github.com/JaimeStill/covenant/internal/corpus"
	"github.com/JaimeStill/covenant/internal/reports"
	"github.com/JaimeStill/covenant/pkg/handlers"
	"github.com/JaimeStill/covenant/pkg/middleware"
	"github.com/JaimeStill/covenant/pkg/pagination"
	"github.com/JaimeStill/covenant/pkg/routes"
)

func newMux(f *fixture) http.Handler {
	mux := http.NewServeMux()
	routes.Register(mux, f.sys.Handler().Routes())
	return middleware.Identity()(mux)
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	io.WriteString(part, content)
	w.Close()
	return &buf, w.FormDataContentType()
}

func upload(t *testing.T, h http.Handler, method, path, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, filename, content)
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set(middleware.IdentityHeader, "analyst@example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestHandlerUploadAndFind(t *testing.T) {
	f := newFixture(t)
	h := newMux(f)

	rec := upload(t, h, "POST", "/contracts", "services.txt", terminationDoc)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body)
	}
	created := decode[corpus.Details](t, rec)
	if created.Name != "services.txt" || len(created.Clauses) == 0 {
		t.Errorf("created = %+v", created)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/contracts/"+created.ID.String(), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("find status = %d", rec.Code)
	}
	found := decode[corpus.Details](t, rec)
	if found.ID != created.ID || len(found.Insights) != len(created.Insights) {
		t.Errorf("found = %+v", found)
	}
}

func TestHandlerList(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, "services.txt", terminationDoc)
	f.ingest(t, "supply.txt", paymentDoc)
	h := newMux(f)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/contracts?search=services&page_size=5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	page := decode[pagination.PageResult[corpus.Contract]](t, rec)
	if page.Total != 1 || page.Data[0].Name != "services.txt" {
		t.Errorf("page = %+v", page)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/contracts?status=expired", nil))
	page = decode[pagination.PageResult[corpus.Contract]](t, rec)
	if page.Total != 0 {
		t.Errorf("expired total = %d, want 0", page.Total)
	}
}

func TestHandlerErrors(t *testing.T) {
	f := newFixture(t)
	h := newMux(f)

	tests := []struct {
		name       string
		req        func() *http.Request
		wantStatus int
		wantKind   contracts.ErrorKind
	}{
		{
			name:       "invalid id",
			req:        func() *http.Request { return httptest.NewRequest("GET", "/contracts/not-a-uuid", nil) },
			wantStatus: http.StatusBadRequest,
			wantKind:   contracts.KindInvalidRequest,
		},
		{
			name:       "unknown id",
			req:        func() *http.Request { return httptest.NewRequest("GET", "/contracts/"+uuid.NewString(), nil) },
			wantStatus: http.StatusNotFound,
			wantKind:   contracts.KindNotFound,
		},
		{
			name: "missing file field",
			req: func() *http.Request {
				var buf bytes.Buffer
				w := multipart.NewWriter(&buf)
				w.WriteField("name", "x")
				w.Close()
				r := httptest.NewRequest("POST", "/contracts", &buf)
				r.Header.Set("Content-Type", w.FormDataContentType())
				return r
			},
			wantStatus: http.StatusBadRequest,
			wantKind:   contracts.KindInvalidRequest,
		},
		{
			name: "unsupported file",
			req: func() *http.Request {
				body, ct := multipartBody(t, "scan.bin", "\x00\x01\x02\x03binary")
				r := httptest.NewRequest("POST", "/contracts", body)
				r.Header.Set("Content-Type", ct)
				return r
			},
			wantStatus: http.StatusUnsupportedMediaType,
			wantKind:   contracts.KindUnsupportedFileType,
		},
		{
			name: "empty document",
			req: func() *http.Request {
				body, ct := multipartBody(t, "blank.txt", "   \n  ")
				r := httptest.NewRequest("POST", "/contracts", body)
				r.Header.Set("Content-Type", ct)
				return r
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   contracts.KindEmptyDocument,
		},
		{
			name:       "bad page number",
			req:        func() *http.Request { return httptest.NewRequest("GET", "/contracts?page=two", nil) },
			wantStatus: http.StatusBadRequest,
			wantKind:   contracts.KindInvalidRequest,
		},
		{
			name:       "malformed ask",
			req:        func() *http.Request { return httptest.NewRequest("POST", "/ask", strings.NewReader("{")) },
			wantStatus: http.StatusBadRequest,
			wantKind:   contracts.KindInvalidRequest,
		},
		{
			name:       "unknown ask field",
			req:        func() *http.Request { return httptest.NewRequest("POST", "/ask", strings.NewReader(`{"question":"notice?"}`)) },
			wantStatus: http.StatusBadRequest,
			wantKind:   contracts.KindInvalidRequest,
		},
		{
			name:       "empty ask body",
			req:        func() *http.Request { return httptest.NewRequest("POST", "/ask", strings.NewReader("")) },
			wantStatus: http.StatusBadRequest,
			wantKind:   contracts.KindInvalidRequest,
		},
		{
			name:       "empty query",
			req:        func() *http.Request { return httptest.NewRequest("POST", "/ask", strings.NewReader(`{"query":"  "}`)) },
			wantStatus: http.StatusBadRequest,
			wantKind:   contracts.KindEmptyQuery,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, tt.req())

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := decode[handlers.ErrorResponse](t, rec)
			if body.Kind != string(tt.wantKind) {
				t.Errorf("kind = %s, want %s", body.Kind, tt.wantKind)
			}
			if body.Error == "" {
				t.Error("error message is empty")
			}
		})
	}
}

func TestHandlerAsk(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, "services.txt", terminationDoc)
	h := newMux(f)

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"query":"What is the termination notice period?"}`)
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/ask", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	res := decode[contracts.QueryResult](t, rec)
	if len(res.Chunks) == 0 || res.Chunks[0].Relevance != 100 {
		t.Errorf("chunks = %+v", res.Chunks)
	}
	if !strings.Contains(res.Answer, "[1]") {
		t.Errorf("answer = %q", res.Answer)
	}
}

func TestHandlerReports(t *testing.T) {
	f := newFixture(t)
	h := newMux(f)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/reports", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	r := decode[reports.Report](t, rec)
	if r.Total != 0 || r.HorizonDays != reports.DefaultHorizon {
		t.Errorf("report = %+v", r)
	}
}

func TestHandlerReuploadDocumentDelete(t *testing.T) {
	f := newFixture(t)
	d := f.ingest(t, "services.txt", terminationDoc)
	h := newMux(f)
	path := "/contracts/" + d.ID.String()

	rec := upload(t, h, "PUT", path, "services-v2.txt", paymentDoc)
	if rec.Code != http.StatusOK {
		t.Fatalf("reupload status = %d: %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", path+"/document", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("document status = %d", rec.Code)
	}
	if rec.Body.String() != paymentDoc {
		t.Error("document body is not the latest upload")
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "services-v2.txt") {
		t.Errorf("content-disposition = %s", cd)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", path+"/reprocess", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("reprocess status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("DELETE", path, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	f.assertEmpty(t)
}

func TestHandlerRebuild(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, "services.txt", terminationDoc)
	h := newMux(f)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/index/rebuild", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats struct {
		Contracts int `json:"contracts"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Contracts != 1 {
		t.Errorf("contracts = %d, want 1", stats.Contracts)
	}
}

func TestHandlerEvents(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(newMux(f))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, "GET", srv.URL+"/contracts/events", nil)
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer res.Body.Close()

	if ct := res.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type = %s", ct)
	}

	go func() {
		f.sys.Ingest(context.Background(), text("services.txt", terminationDoc))
	}()

	var stages []string
	scanner := bufio.NewScanner(res.Body)
	for scanner.Scan() && len(stages) < 4 {
		line := scanner.Text()
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			var e contracts.Event
			if err := json.Unmarshal([]byte(data), &e); err != nil {
				t.Fatalf("decode event: %v", err)
			}
			stages = append(stages, string(e.Stage))
		}
	}

	want := []string{"segmented", "extracted", "indexed", "committed"}
	if strings.Join(stages, ",") != strings.Join(want, ",") {
		t.Errorf("stages = %v, want %v", stages, want)
	}
}
