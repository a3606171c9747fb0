package extract_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/internal/corpus"
	"github.com/JaimeStill/covenant/internal/extract"
	"github.com/JaimeStill/covenant/internal/prompts"
)

const terminationText = "Either party may terminate this Agreement with 90 days written notice to the other party."

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func chunks(contract uuid.UUID, texts ...string) []corpus.Chunk {
	out := make([]corpus.Chunk, len(texts))
	for i, t := range texts {
		out[i] = corpus.Chunk{
			ID:         corpus.ChunkID(contract, i, t),
			ContractID: contract,
			Page:       1,
			Position:   i,
			Text:       t,
		}
	}
	return out
}

type failingClassifier struct {
	calls atomic.Int32
}

func (f *failingClassifier) Classify(ctx context.Context, c corpus.Chunk) (extract.Classification, bool, error) {
	f.calls.Add(1)
	return extract.Classification{}, false, errors.New("classifier unavailable")
}

func TestExtractTermination(t *testing.T) {
	id := uuid.New()
	e := extract.New(extract.NewRuleClassifier(), extract.Config{}, discard())

	res, err := e.Extract(context.Background(), id, chunks(id, terminationText))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if len(res.Clauses) != 1 {
		t.Fatalf("clauses = %d, want 1", len(res.Clauses))
	}
	cl := res.Clauses[0]
	if cl.Title != extract.TopicTermination {
		t.Errorf("Title = %q", cl.Title)
	}
	if cl.Confidence < 50 || cl.Confidence > 100 {
		t.Errorf("Confidence = %v", cl.Confidence)
	}

	var risk *corpus.Insight
	for i := range res.Insights {
		in := &res.Insights[i]
		if in.Type == corpus.InsightRisk {
			risk = in
		}
		if len(in.ClauseIDs) != 1 || in.ClauseIDs[0] != cl.ID {
			t.Errorf("insight %q does not cite the clause", in.Text)
		}
		if len(in.ChunkIDs) != 1 || in.ChunkIDs[0] != cl.ChunkIDs[0] {
			t.Errorf("insight %q does not cite the chunk", in.Text)
		}
	}
	if risk == nil {
		t.Fatal("no risk insight produced")
	}
	if !strings.Contains(risk.Text, "30-60 days") {
		t.Errorf("risk text = %q", risk.Text)
	}
	if got := extract.RiskScore(res.Insights); got != corpus.RiskMedium {
		t.Errorf("RiskScore = %s, want Medium", got)
	}
}

func TestExtractThreshold(t *testing.T) {
	id := uuid.New()
	e := extract.New(extract.NewRuleClassifier(), extract.Config{}, discard())

	res, err := e.Extract(context.Background(), id, chunks(id,
		"The parties may terminate.",
		"Signed by the undersigned on the date below.",
	))
	if !errors.Is(err, extract.ErrNoExtractableContent) {
		t.Fatalf("error = %v, want ErrNoExtractableContent", err)
	}
	if len(res.Clauses) != 0 || len(res.Insights) != 0 {
		t.Errorf("result = %+v, want empty", res)
	}
}

func TestExtractOrderAndDeterminism(t *testing.T) {
	id := uuid.New()
	cs := chunks(id,
		"This Agreement shall be governed by the laws of the State of California.",
		"Signature page.",
		terminationText,
		"Both parties agree to maintain the confidentiality of all proprietary information disclosed.",
		"The total liability of either party shall not exceed the total fees paid in the preceding 12 months.",
	)
	e := extract.New(extract.NewRuleClassifier(), extract.Config{Workers: 2}, discard())

	first, err := e.Extract(context.Background(), id, cs)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	var titles []string
	for _, cl := range first.Clauses {
		titles = append(titles, cl.Title)
	}
	want := []string{
		extract.TopicGoverningLaw,
		extract.TopicTermination,
		extract.TopicConfidentiality,
		extract.TopicLiability,
	}
	if !reflect.DeepEqual(titles, want) {
		t.Errorf("titles = %v, want %v", titles, want)
	}

	second, err := e.Extract(context.Background(), id, cs)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("extraction is not deterministic")
	}
}

func TestExtractClassifierFailure(t *testing.T) {
	id := uuid.New()
	e := extract.New(&failingClassifier{}, extract.Config{Workers: 1}, discard())

	_, err := e.Extract(context.Background(), id, chunks(id, terminationText, "More text."))
	if err == nil || !strings.Contains(err.Error(), "classifier unavailable") {
		t.Fatalf("error = %v", err)
	}
}

func TestExtractCancelled(t *testing.T) {
	id := uuid.New()
	e := extract.New(extract.NewRuleClassifier(), extract.Config{}, discard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Extract(ctx, id, chunks(id, terminationText))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestInsightRules(t *testing.T) {
	tests := []struct {
		name  string
		title string
		text  string
		want  []corpus.InsightType
	}{
		{"short notice", extract.TopicTermination, "Either party may terminate on 30 days written notice.", nil},
		{"long notice", extract.TopicTermination, terminationText, []corpus.InsightType{corpus.InsightRisk, corpus.InsightRecommendation}},
		{"auto renewal", extract.TopicRenewal, "This Agreement shall automatically renew for successive one-year terms.", []corpus.InsightType{corpus.InsightRisk, corpus.InsightRecommendation}},
		{"manual renewal", extract.TopicRenewal, "The parties may renew by mutual agreement.", nil},
		{"unlimited liability", extract.TopicLiability, "Liability under this Agreement is unlimited.", []corpus.InsightType{corpus.InsightRisk, corpus.InsightRecommendation}},
		{"capped liability", extract.TopicLiability, "Total liability shall not exceed the fees paid.", nil},
		{"no cap stated", extract.TopicLiability, "Each party is liable for its own acts.", []corpus.InsightType{corpus.InsightRisk}},
		{"broad indemnity", extract.TopicIndemnification, "Vendor shall indemnify Client against any and all claims.", []corpus.InsightType{corpus.InsightRisk, corpus.InsightRecommendation}},
		{"net 90", extract.TopicPayment, "Invoices are payable net 90.", []corpus.InsightType{corpus.InsightRisk}},
		{"net 30", extract.TopicPayment, "Invoices are payable within 30 days.", nil},
		{"perpetual confidentiality", extract.TopicConfidentiality, "These obligations survive in perpetuity.", []corpus.InsightType{corpus.InsightRecommendation}},
		{"no rule", extract.TopicWarranty, "Vendor warrants the services.", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := uuid.New()
			cl := corpus.Clause{
				ID:         uuid.New(),
				ContractID: id,
				Title:      tt.title,
				Text:       tt.text,
				Confidence: 90,
				ChunkIDs:   []uuid.UUID{uuid.New()},
			}

			var got []corpus.InsightType
			for _, in := range extract.Insights(id, []corpus.Clause{cl}) {
				got = append(got, in.Type)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("insight types = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNoticeDays(t *testing.T) {
	tests := []struct {
		text string
		want int
		ok   bool
	}{
		{terminationText, 90, true},
		{"upon ninety (90) days' prior written notice", 90, true},
		{"with sixty days written notice", 60, true},
		{"by giving a notice of at least 120 days", 120, true},
		{"with 30 business days notice or 45 days notice", 45, true},
		{"immediately upon written notice", 0, false},
	}

	for _, tt := range tests {
		got, ok := extract.NoticeDays(tt.text)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NoticeDays(%q) = %d, %v; want %d, %v", tt.text, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRiskScore(t *testing.T) {
	risk := func(sev corpus.Risk) corpus.Insight {
		return corpus.Insight{Type: corpus.InsightRisk, Severity: sev}
	}
	rec := corpus.Insight{Type: corpus.InsightRecommendation, Severity: corpus.RiskHigh}

	tests := []struct {
		name     string
		insights []corpus.Insight
		want     corpus.Risk
	}{
		{"none", nil, corpus.RiskLow},
		{"recommendation only", []corpus.Insight{rec}, corpus.RiskLow},
		{"one low", []corpus.Insight{risk(corpus.RiskLow)}, corpus.RiskLow},
		{"one medium", []corpus.Insight{risk(corpus.RiskMedium)}, corpus.RiskMedium},
		{"two lows", []corpus.Insight{risk(corpus.RiskLow), risk(corpus.RiskLow)}, corpus.RiskMedium},
		{"three mediums", []corpus.Insight{risk(corpus.RiskMedium), risk(corpus.RiskMedium), risk(corpus.RiskMedium)}, corpus.RiskHigh},
		{"one high", []corpus.Insight{risk(corpus.RiskHigh)}, corpus.RiskHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extract.RiskScore(tt.insights); got != tt.want {
				t.Errorf("RiskScore = %s, want %s", got, tt.want)
			}
		})
	}
}

type fakeChat struct {
	reply string
	err   error
}

func (f *fakeChat) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChat) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func TestModelClassifier(t *testing.T) {
	chunk := chunks(uuid.New(), terminationText)[0]

	tests := []struct {
		name      string
		reply     string
		wantOK    bool
		wantTitle string
		wantText  string
	}{
		{
			name:      "plain json",
			reply:     `{"title": "termination", "confidence": 92, "text": "Either party may terminate this Agreement with 90 days written notice to the other party."}`,
			wantOK:    true,
			wantTitle: extract.TopicTermination,
			wantText:  terminationText,
		},
		{
			name:      "fenced json with invented text",
			reply:     "```json\n{\"title\": \"Termination\", \"confidence\": 80, \"text\": \"paraphrased\"}\n```",
			wantOK:    true,
			wantTitle: extract.TopicTermination,
			wantText:  "",
		},
		{
			name:   "unknown topic",
			reply:  `{"title": "Catering", "confidence": 90, "text": ""}`,
			wantOK: false,
		},
		{
			name:   "no topic",
			reply:  `{"title": "", "confidence": 0, "text": ""}`,
			wantOK: false,
		},
		{
			name:   "not json",
			reply:  "This passage is about termination.",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := extract.NewModelClassifier(&fakeChat{reply: tt.reply}, prompts.Static(nil), discard())
			if err != nil {
				t.Fatalf("NewModelClassifier: %v", err)
			}

			got, ok, err := c.Classify(context.Background(), chunk)
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got.Title != tt.wantTitle || got.Text != tt.wantText {
				t.Errorf("classification = %+v", got)
			}
		})
	}

	t.Run("model error", func(t *testing.T) {
		c, _ := extract.NewModelClassifier(&fakeChat{err: errors.New("connection refused")}, prompts.Static(nil), discard())
		if _, _, err := c.Classify(context.Background(), chunk); err == nil {
			t.Error("expected error")
		}
	})
}

type unresolvable struct{}

func (unresolvable) SystemPrompt(ctx context.Context, stage prompts.Stage) (string, error) {
	return "", prompts.ErrInvalidStage
}

func TestModelClassifierPromptSource(t *testing.T) {
	if _, err := extract.NewModelClassifier(&fakeChat{}, unresolvable{}, discard()); !errors.Is(err, prompts.ErrInvalidStage) {
		t.Errorf("NewModelClassifier err = %v, want ErrInvalidStage", err)
	}
}

func TestDeriveMetadata(t *testing.T) {
	uploaded := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("explicit expiry", func(t *testing.T) {
		text := "This Master Services Agreement is made between Innovate Inc. and Solutions Corp. " +
			"This Agreement expires on December 31, 2027."
		m := extract.DeriveMetadata(text, "msa.pdf", uploaded, extract.MetadataOptions{})

		if !reflect.DeepEqual(m.Parties, []string{"Innovate Inc.", "Solutions Corp"}) {
			t.Errorf("Parties = %q", m.Parties)
		}
		if want := time.Date(2027, 12, 31, 0, 0, 0, 0, time.UTC); !m.ExpiryDate.Equal(want) {
			t.Errorf("ExpiryDate = %v, want %v", m.ExpiryDate, want)
		}
		if m.Name != "msa.pdf" || m.ExpiryInferred {
			t.Errorf("metadata = %+v", m)
		}
	})

	t.Run("effective date plus term", func(t *testing.T) {
		text := "This Agreement is entered into as of 1st January 2026 for a term of two (2) years."
		m := extract.DeriveMetadata(text, "lease.docx", uploaded, extract.MetadataOptions{})

		if m.EffectiveDate == nil || !m.EffectiveDate.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("EffectiveDate = %v", m.EffectiveDate)
		}
		if want := time.Date(2028, 1, 1, 0, 0, 0, 0, time.UTC); !m.ExpiryDate.Equal(want) {
			t.Errorf("ExpiryDate = %v, want %v", m.ExpiryDate, want)
		}
	})

	t.Run("default term", func(t *testing.T) {
		m := extract.DeriveMetadata("No dates here.", "", uploaded, extract.MetadataOptions{})

		if !m.ExpiryInferred {
			t.Error("ExpiryInferred = false")
		}
		if want := uploaded.Add(365 * 24 * time.Hour); !m.ExpiryDate.Equal(want) {
			t.Errorf("ExpiryDate = %v, want %v", m.ExpiryDate, want)
		}
		if m.Parties != nil {
			t.Errorf("Parties = %q", m.Parties)
		}
		if m.Name == "" {
			t.Error("empty name")
		}
	})
}

func TestParseDate(t *testing.T) {
	want := time.Date(2027, 9, 5, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{
		"September 5, 2027",
		"Sept. 5, 2027",
		"Sep 5th, 2027",
		"5 September 2027",
		"5th day of September, 2027",
		"2027-09-05",
		"9/5/2027",
	} {
		got, ok := extract.ParseDate(s)
		if !ok || !got.Equal(want) {
			t.Errorf("ParseDate(%q) = %v, %v", s, got, ok)
		}
	}

	if _, ok := extract.ParseDate("sometime next year"); ok {
		t.Error("ParseDate accepted free text")
	}
}

func TestStatus(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		expiry time.Time
		want   corpus.Status
	}{
		{"past", now.AddDate(0, 0, -1), corpus.StatusExpired},
		{"now", now, corpus.StatusExpired},
		{"89 days", now.AddDate(0, 0, 89), corpus.StatusRenewalDue},
		{"90 days", now.AddDate(0, 0, 90), corpus.StatusActive},
		{"one year", now.AddDate(1, 0, 0), corpus.StatusActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extract.Status(tt.expiry, now, 0); got != tt.want {
				t.Errorf("Status = %s, want %s", got, tt.want)
			}
		})
	}
}
