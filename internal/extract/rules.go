package extract

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/JaimeStill/covenant/internal/corpus"
	"github.com/JaimeStill/covenant/pkg/tokenize"
)

// Clause topics.
const (
	TopicTermination     = "Termination"
	TopicConfidentiality = "Confidentiality"
	TopicLiability       = "Liability"
	TopicPayment         = "Payment"
	TopicGoverningLaw    = "Governing Law"
	TopicRenewal         = "Renewal"
	TopicIndemnification = "Indemnification"
	TopicIP              = "Intellectual Property"
	TopicWarranty        = "Warranty"
	TopicForceMajeure    = "Force Majeure"
	TopicDispute         = "Dispute Resolution"
)

// Signal is a weighted pattern that counts toward a topic once per chunk.
type Signal struct {
	Pattern *regexp.Regexp
	Weight  float64
}

// Topic is a clause title with the signals that indicate it.
// Anchor signals select the sentences quoted as the clause text.
type Topic struct {
	Title   string
	Anchor  *regexp.Regexp
	Signals []Signal
}

func signal(pattern string, weight float64) Signal {
	return Signal{Pattern: regexp.MustCompile(`(?i)` + pattern), Weight: weight}
}

// DefaultTopics returns the built-in topic table. Earlier topics win ties.
func DefaultTopics() []Topic {
	return []Topic{
		{
			Title:  TopicTermination,
			Anchor: regexp.MustCompile(`(?i)\bterminat`),
			Signals: []Signal{
				signal(`\bterminat\w*`, 45),
				signal(`\bterminat\w*\s+(?:this|the)\s+(?:agreement|contract)`, 20),
				signal(`\d+\)?\s*(?:\(\w+\)\s*)?(?:calendar\s+|business\s+)?days?['’]?\s+(?:prior\s+)?(?:written\s+)?notice`, 25),
				signal(`\bnotice\b`, 15),
				signal(`\bfor\s+(?:cause|convenience)\b`, 15),
			},
		},
		{
			Title:  TopicConfidentiality,
			Anchor: regexp.MustCompile(`(?i)confidential|proprietary|disclos`),
			Signals: []Signal{
				signal(`\bconfidential\w*`, 45),
				signal(`\bproprietary\s+information\b`, 20),
				signal(`\b(?:non-?disclosure|disclos\w*)`, 15),
				signal(`\b(?:maintain|keep|hold)\b.{0,40}\bconfiden`, 15),
			},
		},
		{
			Title:  TopicLiability,
			Anchor: regexp.MustCompile(`(?i)liab|damages`),
			Signals: []Signal{
				signal(`\bliabilit\w*|\bliable\b`, 45),
				signal(`\bshall\s+not\s+exceed\b|\blimited\s+to\b|\bcap(?:ped)?\b`, 20),
				signal(`\blimitation\s+of\s+liability\b`, 20),
				signal(`\b(?:consequential|indirect|incidental|punitive)\s+damages\b`, 15),
			},
		},
		{
			Title:  TopicPayment,
			Anchor: regexp.MustCompile(`(?i)pay|invoice|fee`),
			Signals: []Signal{
				signal(`\bpay(?:ment|able|s)?\b`, 35),
				signal(`\binvoic\w*`, 20),
				signal(`\bfees?\b`, 15),
				signal(`\bnet\s+\d+\b|\bwithin\s+\d+\s*(?:\(\w+\)\s*)?days?\b`, 20),
				signal(`\blate\s+(?:payment|fee|charge)|\binterest\b`, 10),
			},
		},
		{
			Title:  TopicGoverningLaw,
			Anchor: regexp.MustCompile(`(?i)govern|laws? of|jurisdiction`),
			Signals: []Signal{
				signal(`\bgoverned\s+by\b|\bgoverning\s+law\b`, 45),
				signal(`\blaws?\s+of\s+(?:the\s+)?(?:state|commonwealth|province)?`, 20),
				signal(`\bjurisdiction\b|\bvenue\b`, 15),
			},
		},
		{
			Title:  TopicRenewal,
			Anchor: regexp.MustCompile(`(?i)renew`),
			Signals: []Signal{
				signal(`\brenew\w*`, 45),
				signal(`\bautomatic(?:ally)?\b`, 20),
				signal(`\bsuccessive\b|\badditional\s+(?:term|period)s?\b`, 15),
				signal(`\bnon-?renewal\b|\bunless\b.{0,60}\bnotice\b`, 10),
			},
		},
		{
			Title:  TopicIndemnification,
			Anchor: regexp.MustCompile(`(?i)indemn|hold harmless`),
			Signals: []Signal{
				signal(`\bindemnif\w*|\bindemnit\w*`, 45),
				signal(`\bhold\s+harmless\b`, 20),
				signal(`\bdefend\b`, 10),
				signal(`\bclaims?\b|\blosses\b`, 10),
			},
		},
		{
			Title:  TopicIP,
			Anchor: regexp.MustCompile(`(?i)intellectual property|copyright|patent|licen[cs]e|ownership`),
			Signals: []Signal{
				signal(`\bintellectual\s+property\b`, 45),
				signal(`\bcopyrights?\b|\bpatents?\b|\btrademarks?\b`, 20),
				signal(`\blicen[cs]e\w*`, 15),
				signal(`\bown(?:s|ership)?\b|\btitle\b.{0,20}\binterest\b`, 10),
			},
		},
		{
			Title:  TopicWarranty,
			Anchor: regexp.MustCompile(`(?i)warrant|as is`),
			Signals: []Signal{
				signal(`\bwarrant\w*`, 45),
				signal(`\bas\s+is\b`, 15),
				signal(`\bmerchantability\b|\bfitness\s+for\s+a\s+particular\s+purpose\b`, 20),
				signal(`\brepresent\w*`, 10),
			},
		},
		{
			Title:  TopicForceMajeure,
			Anchor: regexp.MustCompile(`(?i)force majeure|acts? of god|beyond .{0,10}reasonable control`),
			Signals: []Signal{
				signal(`\bforce\s+majeure\b`, 50),
				signal(`\bacts?\s+of\s+god\b`, 20),
				signal(`\bbeyond\s+(?:its|their|the\s+party's)?\s*reasonable\s+control\b`, 20),
			},
		},
		{
			Title:  TopicDispute,
			Anchor: regexp.MustCompile(`(?i)arbitrat|mediat|dispute`),
			Signals: []Signal{
				signal(`\barbitrat\w*`, 40),
				signal(`\bdisputes?\b`, 20),
				signal(`\bmediat\w*`, 20),
				signal(`\bbinding\b`, 10),
			},
		},
	}
}

// RuleClassifier scores each topic by the summed weight of the signals
// present in a chunk and reports the best topic.
type RuleClassifier struct {
	topics []Topic
}

// NewRuleClassifier creates a RuleClassifier. With no topics the built-in
// table is used.
func NewRuleClassifier(topics ...Topic) *RuleClassifier {
	if len(topics) == 0 {
		topics = DefaultTopics()
	}
	return &RuleClassifier{topics: topics}
}

func (r *RuleClassifier) Classify(ctx context.Context, chunk corpus.Chunk) (Classification, bool, error) {
	if err := ctx.Err(); err != nil {
		return Classification{}, false, err
	}

	var (
		best  *Topic
		score float64
	)
	for i := range r.topics {
		t := &r.topics[i]
		s := 0.0
		for _, sig := range t.Signals {
			if sig.Pattern.MatchString(chunk.Text) {
				s += sig.Weight
			}
		}
		if s > score {
			best, score = t, s
		}
	}

	if best == nil {
		return Classification{}, false, nil
	}

	return Classification{
		Title:      best.Title,
		Confidence: math.Min(score, 99),
		Text:       quote(chunk.Text, best.Anchor),
	}, true, nil
}

// quote returns the sentences of text matching anchor, or text itself when
// none match.
func quote(text string, anchor *regexp.Regexp) string {
	if anchor == nil {
		return text
	}
	var picked []string
	for _, s := range tokenize.Sentences(text) {
		if anchor.MatchString(s) {
			picked = append(picked, s)
		}
	}
	if len(picked) == 0 {
		return text
	}
	return strings.Join(picked, " ")
}
