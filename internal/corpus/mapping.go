package corpus

import (
	"net/url"
	"strings"

	"github.com/JaimeStill/covenant/pkg/query"
)

var contractProjection = query.
	NewProjectionMap("public", "contracts", "c").
	Project("id", "ID").
	Project("name", "Name").
	Project("parties", "Parties").
	Project("expiry_date", "ExpiryDate").
	Project("uploaded_at", "UploadedAt").
	Project("status", "Status").
	Project("risk", "Risk").
	Project("filename", "Filename").
	Project("content_type", "ContentType").
	Project("size_bytes", "SizeBytes").
	Project("page_count", "PageCount").
	Project("locator", "Locator").
	Project("digest", "Digest").
	Project("warnings", "Warnings")

var chunkProjection = query.
	NewProjectionMap("public", "chunks", "ch").
	Project("id", "ID").
	Project("contract_id", "ContractID").
	Project("page", "Page").
	Project("position", "Position").
	Project("text", "Text")

var clauseProjection = query.
	NewProjectionMap("public", "clauses", "cl").
	Project("id", "ID").
	Project("contract_id", "ContractID").
	Project("title", "Title").
	Project("text", "Text").
	Project("confidence", "Confidence").
	Project("chunk_ids", "ChunkIDs").
	Project("ordinal", "Ordinal")

var insightProjection = query.
	NewProjectionMap("public", "insights", "i").
	Project("id", "ID").
	Project("contract_id", "ContractID").
	Project("type", "Type").
	Project("text", "Text").
	Project("severity", "Severity").
	Project("clause_ids", "ClauseIDs").
	Project("chunk_ids", "ChunkIDs").
	Project("ordinal", "Ordinal")

var (
	contractSort = []query.SortField{
		{Field: "UploadedAt", Descending: true},
		{Field: "Name"},
		{Field: "ID"},
	}
	chunkSort   = []query.SortField{{Field: "ContractID"}, {Field: "Position"}}
	ordinalSort = []query.SortField{{Field: "ContractID"}, {Field: "Ordinal"}}
)

// Filter narrows a contract listing. Nil fields are ignored and the
// remaining criteria are combined with AND. Search is a case-insensitive
// substring match over the contract name, parties, and filename.
type Filter struct {
	Search *string `json:"search,omitempty"`
	Status *Status `json:"status,omitempty"`
	Risk   *Risk   `json:"risk,omitempty"`
}

// Match reports whether c satisfies every set criterion.
func (f Filter) Match(c Contract) bool {
	if f.Status != nil && c.Status != *f.Status {
		return false
	}
	if f.Risk != nil && c.Risk != *f.Risk {
		return false
	}
	if f.Search != nil {
		if s := strings.TrimSpace(*f.Search); s != "" && !matchSearch(c, strings.ToLower(s)) {
			return false
		}
	}
	return true
}

func matchSearch(c Contract, needle string) bool {
	if strings.Contains(strings.ToLower(c.Name), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(c.Filename), needle) {
		return true
	}
	for _, p := range c.Parties {
		if strings.Contains(strings.ToLower(p), needle) {
			return true
		}
	}
	return false
}

// FiltersFromQuery extracts filter values from URL query parameters.
// Unrecognized status or risk values are kept verbatim and match nothing.
func FiltersFromQuery(values url.Values) Filter {
	var f Filter

	if s := values.Get("search"); s != "" {
		f.Search = &s
	}

	if st := values.Get("status"); st != "" {
		status, ok := ParseStatus(st)
		if !ok {
			status = Status(st)
		}
		f.Status = &status
	}

	if r := values.Get("risk"); r != "" {
		risk, ok := ParseRisk(r)
		if !ok {
			risk = Risk(r)
		}
		f.Risk = &risk
	}

	return f
}

// ParseStatus accepts a status in display form ("Renewal Due") or in
// identifier form ("renewal_due"), ignoring case.
func ParseStatus(s string) (Status, bool) {
	key := fold(s)
	for _, st := range Statuses() {
		if fold(string(st)) == key {
			return st, true
		}
	}
	return "", false
}

// ParseRisk accepts a risk level ignoring case.
func ParseRisk(s string) (Risk, bool) {
	key := fold(s)
	for _, r := range Risks() {
		if fold(string(r)) == key {
			return r, true
		}
	}
	return "", false
}

func fold(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
}
