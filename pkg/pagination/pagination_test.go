package pagination_test

import (
	"net/url"
	"slices"
	"strings"
	"testing"

	"github.com/JaimeStill/covenant/pkg/pagination"
	"github.com/JaimeStill/covenant/pkg/query"
)

var listConfig = pagination.Config{DefaultPageSize: 10, MaxPageSize: 50}

func TestConfigFinalizeDefaults(t *testing.T) {
	cfg := pagination.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.DefaultPageSize != pagination.DefaultSize {
		t.Errorf("DefaultPageSize = %d, want %d", cfg.DefaultPageSize, pagination.DefaultSize)
	}
	if cfg.MaxPageSize != pagination.MaxSize {
		t.Errorf("MaxPageSize = %d, want %d", cfg.MaxPageSize, pagination.MaxSize)
	}
}

func TestConfigFinalizeEnv(t *testing.T) {
	env := &pagination.ConfigEnv{
		DefaultPageSize: "TEST_PAGE_SIZE",
		MaxPageSize:     "TEST_MAX_PAGE",
	}

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("TEST_PAGE_SIZE", "25")
		t.Setenv("TEST_MAX_PAGE", "200")

		cfg := pagination.Config{}
		if err := cfg.Finalize(env); err != nil {
			t.Fatalf("finalize failed: %v", err)
		}
		if cfg.DefaultPageSize != 25 || cfg.MaxPageSize != 200 {
			t.Errorf("got %+v, want {25 200}", cfg)
		}
	})

	t.Run("non-integer", func(t *testing.T) {
		t.Setenv("TEST_PAGE_SIZE", "ten")

		cfg := pagination.Config{}
		err := cfg.Finalize(env)
		if err == nil || !strings.Contains(err.Error(), "TEST_PAGE_SIZE") {
			t.Errorf("error = %v, want one naming TEST_PAGE_SIZE", err)
		}
	})
}

func TestConfigValidation(t *testing.T) {
	for _, cfg := range []pagination.Config{
		{DefaultPageSize: 200, MaxPageSize: 100},
		{DefaultPageSize: 50, MaxPageSize: 20},
	} {
		err := cfg.Finalize(nil)
		if err == nil || !strings.Contains(err.Error(), "cannot exceed") {
			t.Errorf("Finalize(%+v) = %v, want size error", cfg, err)
		}
	}
}

func TestConfigMerge(t *testing.T) {
	base := pagination.Config{DefaultPageSize: 10, MaxPageSize: 100}
	base.Merge(&pagination.Config{MaxPageSize: 40})

	if base != (pagination.Config{DefaultPageSize: 10, MaxPageSize: 40}) {
		t.Errorf("merged = %+v", base)
	}
}

func TestPageRequestFromQuery(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantPage int
		wantSize int
		wantErr  string
	}{
		{name: "defaults", query: "", wantPage: 1, wantSize: 10},
		{name: "explicit", query: "page=3&page_size=25", wantPage: 3, wantSize: 25},
		{name: "zero page", query: "page=0", wantPage: 1, wantSize: 10},
		{name: "negative size", query: "page_size=-4", wantPage: 1, wantSize: 10},
		{name: "size clamped", query: "page_size=500", wantPage: 1, wantSize: 50},
		{name: "padded numbers", query: "page=%202%20", wantPage: 2, wantSize: 10},
		{name: "bad page", query: "page=two", wantErr: "page must be an integer"},
		{name: "bad size", query: "page_size=1.5", wantErr: "page_size must be an integer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, _ := url.ParseQuery(tt.query)
			req, err := pagination.PageRequestFromQuery(values, listConfig)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if req.Page != tt.wantPage || req.PageSize != tt.wantSize {
				t.Errorf("page %d size %d, want page %d size %d", req.Page, req.PageSize, tt.wantPage, tt.wantSize)
			}
		})
	}
}

func TestPageRequestFromQuerySearchAndSort(t *testing.T) {
	values := url.Values{
		"search": {"  acme  "},
		"sort":   {"-expiry_date,name"},
	}

	req, err := pagination.PageRequestFromQuery(values, listConfig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Search == nil || *req.Search != "acme" {
		t.Errorf("Search = %v, want acme", req.Search)
	}

	want := []query.SortField{{Field: "expiry_date", Descending: true}, {Field: "name"}}
	if !slices.Equal(req.Sort, want) {
		t.Errorf("Sort = %v, want %v", req.Sort, want)
	}

	req, _ = pagination.PageRequestFromQuery(url.Values{"search": {"   "}}, listConfig)
	if req.Search != nil {
		t.Errorf("blank search = %q, want nil", *req.Search)
	}
}

func TestSlice(t *testing.T) {
	names := []string{"Alpha MSA", "Beta NDA", "Gamma SOW", "Delta Lease", "Epsilon DPA"}

	tests := []struct {
		name      string
		req       pagination.PageRequest
		wantData  []string
		wantPages int
		wantOff   int
	}{
		{"first page", pagination.PageRequest{Page: 1, PageSize: 2}, names[:2], 3, 0},
		{"middle page", pagination.PageRequest{Page: 2, PageSize: 2}, names[2:4], 3, 2},
		{"last partial page", pagination.PageRequest{Page: 3, PageSize: 2}, names[4:], 3, 4},
		{"past the end", pagination.PageRequest{Page: 9, PageSize: 2}, []string{}, 3, 16},
		{"one page holds all", pagination.PageRequest{Page: 1, PageSize: 10}, names, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if off := tt.req.Offset(); off != tt.wantOff {
				t.Errorf("Offset() = %d, want %d", off, tt.wantOff)
			}

			got := pagination.Slice(names, tt.req)
			if !slices.Equal(got.Data, tt.wantData) {
				t.Errorf("Data = %v, want %v", got.Data, tt.wantData)
			}
			if got.Total != len(names) || got.TotalPages != tt.wantPages {
				t.Errorf("Total %d TotalPages %d, want %d %d", got.Total, got.TotalPages, len(names), tt.wantPages)
			}
		})
	}
}

func TestNewPageResultEmpty(t *testing.T) {
	got := pagination.NewPageResult[string](nil, 0, 1, 10)

	if got.Data == nil || len(got.Data) != 0 {
		t.Errorf("Data = %#v, want empty non-nil slice", got.Data)
	}
	if got.TotalPages != 1 {
		t.Errorf("TotalPages = %d, want 1", got.TotalPages)
	}
}
