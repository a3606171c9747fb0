package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/internal/corpus"
)

// Notice and payment periods longer than these limits are flagged.
const (
	MaxNoticeDays  = 60
	MaxPaymentDays = 45
)

var (
	noticeDaysPattern = regexp.MustCompile(
		`(?i)\(?\b(\d+)\)?\s*(?:\(\w+\)\s*)?(?:calendar\s+|business\s+)?days?['’]?\s+(?:prior\s+|advance\s+)?(?:written\s+)?notice` +
			`|\bnotice\s+(?:period\s+)?of\s+(?:at\s+least\s+|not\s+less\s+than\s+)?(\d+)\s*(?:\(\w+\)\s*)?days?`)
	wordNoticeDaysPattern = regexp.MustCompile(
		`(?i)\b(\w+)\s+days?['’]?\s+(?:prior\s+|advance\s+)?(?:written\s+)?notice`)
	paymentDaysPattern = regexp.MustCompile(
		`(?i)\bnet\s+(\d+)\b|\bwithin\s+(?:\w+\s+)?\(?(\d+)\)?\s*(?:\(\w+\)\s*)?(?:calendar\s+)?days?\b`)

	autoRenewPattern      = regexp.MustCompile(`(?i)\bautomatic(?:ally)?\s+renew|\brenew\w*\s+automatic(?:ally)?|\bevergreen\b`)
	unlimitedPattern      = regexp.MustCompile(`(?i)\bunlimited\b|\buncapped\b|\bwithout\s+limit(?:ation)?\b`)
	capPattern            = regexp.MustCompile(`(?i)\bshall\s+not\s+exceed\b|\blimited\s+to\b|\bcap(?:ped)?\s+at\b|\bmaximum\s+(?:aggregate\s+)?liability\b|\bin\s+no\s+event\b`)
	broadIndemnityPattern = regexp.MustCompile(`(?i)\bany\s+and\s+all\b|\ball\s+claims\b|\bwhatsoever\b|\bregardless\s+of\b`)
	perpetualPattern      = regexp.MustCompile(`(?i)\bperpetu\w*|\bindefinite(?:ly)?\b|\bsurvive\w*\b.{0,40}\bwithout\s+limit`)
)

var numberWords = map[string]int{
	"seven": 7, "ten": 10, "fourteen": 14, "fifteen": 15, "twenty": 20,
	"thirty": 30, "forty": 40, "fifty": 50, "sixty": 60, "ninety": 90,
}

// rule inspects one clause and returns the insights it triggers.
type rule func(cl corpus.Clause) []finding

type finding struct {
	kind     corpus.InsightType
	severity corpus.Risk
	text     string
}

var rules = map[string][]rule{
	TopicTermination:     {terminationNotice},
	TopicRenewal:         {autoRenewal},
	TopicLiability:       {uncappedLiability},
	TopicIndemnification: {broadIndemnity},
	TopicPayment:         {longPaymentTerms},
	TopicConfidentiality: {perpetualConfidentiality},
}

// Insights applies the insight rules to clauses in order. Every insight
// cites the clause that triggered it and that clause's chunks.
func Insights(contractID uuid.UUID, clauses []corpus.Clause) []corpus.Insight {
	var out []corpus.Insight
	for _, cl := range clauses {
		for _, r := range rules[cl.Title] {
			for _, f := range r(cl) {
				out = append(out, corpus.Insight{
					ID:         corpus.DerivedID(contractID, "insight", cl.ID.String(), string(f.kind), f.text),
					ContractID: contractID,
					Type:       f.kind,
					Text:       f.text,
					Severity:   f.severity,
					ClauseIDs:  []uuid.UUID{cl.ID},
					ChunkIDs:   append([]uuid.UUID{}, cl.ChunkIDs...),
				})
			}
		}
	}
	return out
}

// NoticeDays returns the longest notice period in days stated in text.
func NoticeDays(text string) (int, bool) {
	best, found := 0, false
	for _, m := range noticeDaysPattern.FindAllStringSubmatch(text, -1) {
		for _, g := range m[1:] {
			if n, err := strconv.Atoi(g); err == nil && n > best {
				best, found = n, true
			}
		}
	}
	if found {
		return best, true
	}
	for _, m := range wordNoticeDaysPattern.FindAllStringSubmatch(text, -1) {
		if n, ok := numberWords[strings.ToLower(m[1])]; ok && n > best {
			best, found = n, true
		}
	}
	return best, found
}

func terminationNotice(cl corpus.Clause) []finding {
	days, ok := NoticeDays(cl.Text)
	if !ok || days <= MaxNoticeDays {
		return nil
	}

	severity := corpus.RiskMedium
	if days > 2*MaxNoticeDays {
		severity = corpus.RiskHigh
	}

	return []finding{
		{
			kind:     corpus.InsightRisk,
			severity: severity,
			text: fmt.Sprintf(
				"The %d-day termination notice period is longer than the industry standard of 30-60 days, potentially locking you in.",
				days,
			),
		},
		{
			kind:     corpus.InsightRecommendation,
			severity: corpus.RiskLow,
			text:     fmt.Sprintf("Consider renegotiating the termination notice period to %d days for greater flexibility.", MaxNoticeDays),
		},
	}
}

func autoRenewal(cl corpus.Clause) []finding {
	if !autoRenewPattern.MatchString(cl.Text) {
		return nil
	}
	return []finding{
		{
			kind:     corpus.InsightRisk,
			severity: corpus.RiskMedium,
			text:     "The contract renews automatically unless notice is given, so a missed deadline extends the commitment.",
		},
		{
			kind:     corpus.InsightRecommendation,
			severity: corpus.RiskLow,
			text:     "Track the non-renewal notice deadline or negotiate renewal by mutual written agreement.",
		},
	}
}

func uncappedLiability(cl corpus.Clause) []finding {
	switch {
	case unlimitedPattern.MatchString(cl.Text):
		return []finding{
			{
				kind:     corpus.InsightRisk,
				severity: corpus.RiskHigh,
				text:     "Liability is expressly unlimited, exposing the parties to uncapped damages.",
			},
			{
				kind:     corpus.InsightRecommendation,
				severity: corpus.RiskLow,
				text:     "Negotiate a liability cap tied to the fees paid under the agreement.",
			},
		}
	case !capPattern.MatchString(cl.Text):
		return []finding{{
			kind:     corpus.InsightRisk,
			severity: corpus.RiskMedium,
			text:     "The liability clause does not state a cap on damages.",
		}}
	}
	return nil
}

func broadIndemnity(cl corpus.Clause) []finding {
	if !broadIndemnityPattern.MatchString(cl.Text) {
		return nil
	}
	return []finding{
		{
			kind:     corpus.InsightRisk,
			severity: corpus.RiskMedium,
			text:     "The indemnity covers any and all claims without limitation by fault or cause.",
		},
		{
			kind:     corpus.InsightRecommendation,
			severity: corpus.RiskLow,
			text:     "Limit the indemnity to third-party claims arising from the indemnifying party's breach or negligence.",
		},
	}
}

func longPaymentTerms(cl corpus.Clause) []finding {
	days := 0
	for _, m := range paymentDaysPattern.FindAllStringSubmatch(cl.Text, -1) {
		for _, g := range m[1:] {
			if n, err := strconv.Atoi(g); err == nil && n > days {
				days = n
			}
		}
	}
	if days <= MaxPaymentDays {
		return nil
	}
	return []finding{{
		kind:     corpus.InsightRisk,
		severity: corpus.RiskLow,
		text:     fmt.Sprintf("Payment terms of %d days exceed the common 30-day standard and delay cash flow.", days),
	}}
}

func perpetualConfidentiality(cl corpus.Clause) []finding {
	if !perpetualPattern.MatchString(cl.Text) {
		return nil
	}
	return []finding{{
		kind:     corpus.InsightRecommendation,
		severity: corpus.RiskLow,
		text:     "Confidentiality obligations continue indefinitely; consider a fixed survival period for non-trade-secret information.",
	}}
}

// RiskScore derives the contract risk level from the severities of its
// risk insights. Any high severity risk, or medium and low risks worth five
// points or more, rates High; two points or more rates Medium.
func RiskScore(insights []corpus.Insight) corpus.Risk {
	points := 0
	for _, in := range insights {
		if in.Type != corpus.InsightRisk {
			continue
		}
		switch in.Severity {
		case corpus.RiskHigh:
			return corpus.RiskHigh
		case corpus.RiskMedium:
			points += 2
		case corpus.RiskLow:
			points++
		}
	}
	switch {
	case points >= 5:
		return corpus.RiskHigh
	case points >= 2:
		return corpus.RiskMedium
	}
	return corpus.RiskLow
}
