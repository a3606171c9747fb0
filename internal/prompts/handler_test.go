package prompts_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/internal/prompts"
	"github.com/JaimeStill/covenant/pkg/handlers"
	"github.com/JaimeStill/covenant/pkg/middleware"
	"github.com/JaimeStill/covenant/pkg/pagination"
	"github.com/JaimeStill/covenant/pkg/routes"
)

func newMux(sys prompts.System) http.Handler {
	mux := http.NewServeMux()
	routes.Register(mux, sys.Handler().Routes())
	return middleware.Identity()(mux)
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
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

func TestHandlerLifecycle(t *testing.T) {
	sys, _ := newSystem(t, nil)
	h := newMux(sys)

	rec := serve(h, "POST", "/prompts", `{"name":"terse","stage":"answer","instructions":"Answer in one sentence."}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
	}
	created := decode[prompts.Prompt](t, rec)
	base := "/prompts/" + created.ID.String()

	rec = serve(h, "POST", base+"/activate", "")
	if rec.Code != http.StatusOK || !decode[prompts.Prompt](t, rec).Active {
		t.Fatalf("activate status = %d", rec.Code)
	}

	rec = serve(h, "GET", "/prompts/answer/instructions", "")
	content := decode[prompts.StageContent](t, rec)
	if content.Stage != prompts.StageAnswer || content.Content != "Answer in one sentence." {
		t.Errorf("instructions = %+v", content)
	}

	rec = serve(h, "PUT", base, `{"name":"terse","stage":"answer","instructions":"Answer in two sentences."}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rec.Code, rec.Body)
	}

	rec = serve(h, "GET", base, "")
	if found := decode[prompts.Prompt](t, rec); found.Instructions != "Answer in two sentences." || !found.Active {
		t.Errorf("found = %+v", found)
	}

	rec = serve(h, "POST", base+"/deactivate", "")
	if rec.Code != http.StatusOK || decode[prompts.Prompt](t, rec).Active {
		t.Fatalf("deactivate status = %d", rec.Code)
	}

	rec = serve(h, "GET", "/prompts?active=false", "")
	page := decode[pagination.PageResult[prompts.Prompt]](t, rec)
	if page.Total != 1 || page.Data[0].ID != created.ID {
		t.Errorf("list = %+v", page)
	}

	rec = serve(h, "DELETE", base, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec = serve(h, "GET", base, ""); rec.Code != http.StatusNotFound {
		t.Errorf("find after delete status = %d", rec.Code)
	}
}

func TestHandlerStageContent(t *testing.T) {
	sys, _ := newSystem(t, nil)
	h := newMux(sys)

	rec := serve(h, "GET", "/prompts/stages", "")
	if got := decode[[]prompts.Stage](t, rec); len(got) != len(prompts.Stages()) {
		t.Errorf("stages = %v", got)
	}

	rec = serve(h, "GET", "/prompts/classify/spec", "")
	spec, _ := prompts.Spec(prompts.StageClassify)
	if got := decode[prompts.StageContent](t, rec); got.Content != spec {
		t.Errorf("spec = %q", got.Content)
	}
}

func TestHandlerErrors(t *testing.T) {
	sys, _ := newSystem(t, nil)
	h := newMux(sys)
	create(t, sys, "taken", prompts.StageAnswer, "Answer briefly.")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		kind   string
	}{
		{"duplicate name", "POST", "/prompts", `{"name":"taken","stage":"answer","instructions":"x"}`, http.StatusConflict, "Duplicate"},
		{"unknown stage", "POST", "/prompts", `{"name":"a","stage":"enhance","instructions":"x"}`, http.StatusBadRequest, "InvalidRequest"},
		{"unknown field", "POST", "/prompts", `{"name":"a","stage":"answer","instructions":"x","extra":1}`, http.StatusBadRequest, "InvalidRequest"},
		{"empty body", "POST", "/prompts", "", http.StatusBadRequest, "InvalidRequest"},
		{"bad id", "GET", "/prompts/not-a-uuid", "", http.StatusBadRequest, "InvalidRequest"},
		{"missing prompt", "POST", "/prompts/" + uuid.NewString() + "/activate", "", http.StatusNotFound, "NotFound"},
		{"missing delete", "DELETE", "/prompts/" + uuid.NewString(), "", http.StatusNotFound, "NotFound"},
		{"bad stage path", "GET", "/prompts/enhance/instructions", "", http.StatusBadRequest, "InvalidRequest"},
		{"bad page", "GET", "/prompts?page=two", "", http.StatusBadRequest, "InvalidRequest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, tt.method, tt.path, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body)
			}
			if got := decode[handlers.ErrorResponse](t, rec); got.Kind != tt.kind {
				t.Errorf("kind = %q, want %q", got.Kind, tt.kind)
			}
		})
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{prompts.ErrNotFound, http.StatusNotFound},
		{prompts.ErrDuplicate, http.StatusConflict},
		{prompts.ErrInvalidStage, http.StatusBadRequest},
		{prompts.ErrInvalidPrompt, http.StatusBadRequest},
		{http.ErrHandlerTimeout, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := prompts.MapHTTPStatus(tt.err); got != tt.want {
			t.Errorf("MapHTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
