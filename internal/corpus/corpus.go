// Package corpus owns the canonical contract records: contracts and the
// chunks, clauses, and insights derived from them. Records are committed as
// one unit and published through immutable snapshots, so readers never see
// a partially ingested contract.
package corpus

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state assigned to a contract at ingestion.
type Status string

// Contract statuses.
const (
	StatusActive     Status = "Active"
	StatusRenewalDue Status = "Renewal Due"
	StatusExpired    Status = "Expired"
)

// Statuses returns every status in display order.
func Statuses() []Status {
	return []Status{StatusActive, StatusRenewalDue, StatusExpired}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusRenewalDue, StatusExpired:
		return true
	}
	return false
}

// Risk is a contract risk score or an insight severity.
type Risk string

// Risk levels.
const (
	RiskLow    Risk = "Low"
	RiskMedium Risk = "Medium"
	RiskHigh   Risk = "High"
)

// Risks returns every risk level in ascending order.
func Risks() []Risk {
	return []Risk{RiskLow, RiskMedium, RiskHigh}
}

// Valid reports whether r is a known risk level.
func (r Risk) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// InsightType distinguishes risks from recommendations.
type InsightType string

// Insight types.
const (
	InsightRisk           InsightType = "Risk"
	InsightRecommendation InsightType = "Recommendation"
)

// Contract is the summary record of an ingested document.
// Status and Risk are fixed at ingestion and change only through re-ingestion.
type Contract struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Parties     []string  `json:"parties"`
	ExpiryDate  time.Time `json:"expiry_date"`
	UploadedAt  time.Time `json:"uploaded_on"`
	Status      Status    `json:"status"`
	Risk        Risk      `json:"risk_score"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	PageCount   int       `json:"page_count"`
	Locator     string    `json:"locator"`
	Digest      string    `json:"digest"`
	Warnings    []string  `json:"warnings,omitempty"`
}

// Chunk is a page-anchored span of contract text, the unit of retrieval.
type Chunk struct {
	ID         uuid.UUID `json:"id"`
	ContractID uuid.UUID `json:"contract_id"`
	Page       int       `json:"page"`
	Position   int       `json:"position"`
	Text       string    `json:"text"`
}

// Clause is a titled extraction citing the chunks it was derived from.
type Clause struct {
	ID         uuid.UUID   `json:"id"`
	ContractID uuid.UUID   `json:"contract_id"`
	Title      string      `json:"title"`
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"`
	ChunkIDs   []uuid.UUID `json:"chunk_ids"`
}

// Insight is a risk or recommendation citing the clauses and chunks that
// triggered it.
type Insight struct {
	ID         uuid.UUID   `json:"id"`
	ContractID uuid.UUID   `json:"contract_id"`
	Type       InsightType `json:"type"`
	Text       string      `json:"text"`
	Severity   Risk        `json:"severity"`
	ClauseIDs  []uuid.UUID `json:"clause_ids"`
	ChunkIDs   []uuid.UUID `json:"chunk_ids"`
}

// Evidence is a chunk presented as support for a clause or an answer.
// Relevance is on a 0-100 scale. Evidence is computed, never stored.
type Evidence struct {
	ChunkID      uuid.UUID `json:"id"`
	ContractID   uuid.UUID `json:"contract_id"`
	ContractName string    `json:"contract_name,omitempty"`
	Text         string    `json:"text"`
	Page         int       `json:"page"`
	Position     int       `json:"position"`
	Relevance    float64   `json:"relevance"`
}

// Details is a contract with its derived records.
type Details struct {
	Contract
	Clauses  []Clause   `json:"clauses"`
	Insights []Insight  `json:"insights"`
	Evidence []Evidence `json:"evidence"`
}

// Record is the transactional unit committed for one contract.
type Record struct {
	Contract Contract
	Chunks   []Chunk
	Clauses  []Clause
	Insights []Insight
}

// Validate checks the structural invariants of a record: owned records point
// at the contract, chunk text is present, pages and positions are in range,
// identifiers are unique, and back references resolve.
func (r *Record) Validate() error {
	id := r.Contract.ID
	if id == uuid.Nil {
		return fmt.Errorf("%w: missing contract id", ErrInvalidRecord)
	}
	if !r.Contract.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidRecord, r.Contract.Status)
	}
	if !r.Contract.Risk.Valid() {
		return fmt.Errorf("%w: unknown risk %q", ErrInvalidRecord, r.Contract.Risk)
	}

	chunks := make(map[uuid.UUID]struct{}, len(r.Chunks))
	for i, c := range r.Chunks {
		switch {
		case c.ContractID != id:
			return fmt.Errorf("%w: chunk %s belongs to %s", ErrInvalidRecord, c.ID, c.ContractID)
		case c.Text == "":
			return fmt.Errorf("%w: chunk %s has no text", ErrInvalidRecord, c.ID)
		case c.Page < 1:
			return fmt.Errorf("%w: chunk %s has page %d", ErrInvalidRecord, c.ID, c.Page)
		case c.Position != i:
			return fmt.Errorf("%w: chunk %s out of order", ErrInvalidRecord, c.ID)
		}
		if _, dup := chunks[c.ID]; dup {
			return fmt.Errorf("%w: duplicate chunk %s", ErrInvalidRecord, c.ID)
		}
		chunks[c.ID] = struct{}{}
	}

	clauses := make(map[uuid.UUID]struct{}, len(r.Clauses))
	for _, c := range r.Clauses {
		if c.ContractID != id {
			return fmt.Errorf("%w: clause %s belongs to %s", ErrInvalidRecord, c.ID, c.ContractID)
		}
		if c.Confidence < 0 || c.Confidence > 100 {
			return fmt.Errorf("%w: clause %s confidence %v", ErrInvalidRecord, c.ID, c.Confidence)
		}
		if err := resolve(chunks, c.ChunkIDs); err != nil {
			return fmt.Errorf("%w: clause %s: %w", ErrInvalidRecord, c.ID, err)
		}
		clauses[c.ID] = struct{}{}
	}

	for _, in := range r.Insights {
		if in.ContractID != id {
			return fmt.Errorf("%w: insight %s belongs to %s", ErrInvalidRecord, in.ID, in.ContractID)
		}
		if err := resolve(clauses, in.ClauseIDs); err != nil {
			return fmt.Errorf("%w: insight %s: %w", ErrInvalidRecord, in.ID, err)
		}
		if err := resolve(chunks, in.ChunkIDs); err != nil {
			return fmt.Errorf("%w: insight %s: %w", ErrInvalidRecord, in.ID, err)
		}
	}

	return nil
}

// Details assembles the contract view of a record. Evidence lists the chunks
// cited by clauses with the clause confidence as relevance, in document order.
func (r *Record) Details() *Details {
	relevance := make(map[uuid.UUID]float64)
	for _, cl := range r.Clauses {
		for _, id := range cl.ChunkIDs {
			relevance[id] = max(relevance[id], cl.Confidence)
		}
	}

	evidence := make([]Evidence, 0, len(relevance))
	for _, c := range r.Chunks {
		rel, ok := relevance[c.ID]
		if !ok {
			continue
		}
		evidence = append(evidence, Evidence{
			ChunkID:      c.ID,
			ContractID:   c.ContractID,
			ContractName: r.Contract.Name,
			Text:         c.Text,
			Page:         c.Page,
			Position:     c.Position,
			Relevance:    rel,
		})
	}

	clone := r.clone()
	return &Details{
		Contract: clone.Contract,
		Clauses:  clone.Clauses,
		Insights: clone.Insights,
		Evidence: evidence,
	}
}

func (r *Record) clone() *Record {
	c := &Record{
		Contract: r.Contract,
		Chunks:   append(make([]Chunk, 0, len(r.Chunks)), r.Chunks...),
		Clauses:  make([]Clause, len(r.Clauses)),
		Insights: make([]Insight, len(r.Insights)),
	}
	c.Contract.Parties = append([]string{}, r.Contract.Parties...)
	c.Contract.Warnings = append([]string(nil), r.Contract.Warnings...)

	for i, cl := range r.Clauses {
		cl.ChunkIDs = append([]uuid.UUID{}, cl.ChunkIDs...)
		c.Clauses[i] = cl
	}
	for i, in := range r.Insights {
		in.ClauseIDs = append([]uuid.UUID{}, in.ClauseIDs...)
		in.ChunkIDs = append([]uuid.UUID{}, in.ChunkIDs...)
		c.Insights[i] = in
	}
	return c
}

// ChunkID derives a stable chunk id from its contract, position, and text,
// so re-ingesting identical content reproduces identical ids.
func ChunkID(contract uuid.UUID, position int, text string) uuid.UUID {
	return uuid.NewSHA1(contract, fmt.Appendf(nil, "chunk:%d:%s", position, text))
}

// DerivedID derives a stable id for a clause or insight owned by contract.
func DerivedID(contract uuid.UUID, kind string, parts ...string) uuid.UUID {
	return uuid.NewSHA1(contract, []byte(kind+":"+strings.Join(parts, "\x1f")))
}

func resolve(known map[uuid.UUID]struct{}, refs []uuid.UUID) error {
	for _, ref := range refs {
		if _, ok := known[ref]; !ok {
			return fmt.Errorf("unresolved reference %s", ref)
		}
	}
	return nil
}
