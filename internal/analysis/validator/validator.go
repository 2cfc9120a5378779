// Package validator scores policy text against keyword rules without any
// AI call. Its confidence drives the pipeline's stage-skip decisions.
package validator

import (
	"fmt"
	"strings"

	"github.com/mhmod01110/priv-band-ai/internal/core/domain"
)

// minPolicyLength is the shortest text worth scoring. Anything shorter is
// rejected outright as not a policy.
const minPolicyLength = 50

// Verdict is the rule-based assessment of one policy text.
// Confidence is in [0,1].
type Verdict struct {
	Matched         bool    `json:"matched"`
	Confidence      float64 `json:"confidence"`
	Reason          string  `json:"reason"`
	SuggestedAction string  `json:"suggested_action,omitempty"`
}

// ruleSet holds the keyword evidence for one policy type. required terms
// anchor the type; strong and moderate indicators add confidence;
// offTopic terms belonging to the other types subtract it.
type ruleSet struct {
	label    string
	required []string
	strong   []string
	moderate []string
}

var rules = map[domain.PolicyType]ruleSet{
	domain.PolicyReturnExchange: {
		label:    "return and exchange",
		required: []string{"return", "refund", "exchange"},
		strong: []string{
			"return policy", "money back", "refund policy", "days to return",
			"restocking fee", "store credit", "original packaging",
			"proof of purchase", "return shipping",
		},
		moderate: []string{
			"receipt", "defective", "damaged", "warranty", "within 30 days",
			"unused", "original condition", "full refund",
		},
	},
	domain.PolicyPrivacyAccount: {
		label:    "privacy and account",
		required: []string{"privacy", "personal data", "personal information"},
		strong: []string{
			"data protection", "gdpr", "third parties", "cookies",
			"data retention", "account deletion", "consent", "data controller",
			"privacy policy",
		},
		moderate: []string{
			"email address", "password", "opt out", "marketing",
			"security", "account information", "data breach",
		},
	},
	domain.PolicyShippingDelivery: {
		label:    "shipping and delivery",
		required: []string{"shipping", "delivery", "ship"},
		strong: []string{
			"shipping policy", "delivery time", "business days",
			"shipping cost", "free shipping", "tracking number", "carrier",
			"international shipping",
		},
		moderate: []string{
			"order processing", "estimated delivery", "courier", "postage",
			"dispatch", "handling time",
		},
	},
}

func countHits(text string, terms []string) int {
	n := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			n++
		}
	}
	return n
}

// Evaluate scores text as a candidate for the declared policy type.
func Evaluate(policyType domain.PolicyType, text string) Verdict {
	rs, ok := rules[policyType]
	if !ok {
		return Verdict{
			Reason:          fmt.Sprintf("unsupported policy type %q", policyType),
			SuggestedAction: "use one of the supported policy types",
		}
	}

	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minPolicyLength {
		return Verdict{
			Reason:          "policy text is too short to be a real policy",
			SuggestedAction: "submit the full policy text",
		}
	}

	lower := strings.ToLower(trimmed)

	score := 0.0
	requiredHits := countHits(lower, rs.required)
	if requiredHits > 0 {
		extra := requiredHits - 1
		if extra > 2 {
			extra = 2
		}
		score += 0.30 + 0.05*float64(extra)
	}

	strongHits := countHits(lower, rs.strong)
	s := 0.12 * float64(strongHits)
	if s > 0.36 {
		s = 0.36
	}
	score += s

	moderateHits := countHits(lower, rs.moderate)
	m := 0.04 * float64(moderateHits)
	if m > 0.16 {
		m = 0.16
	}
	score += m

	// Strong evidence for a different policy type counts against this one.
	offTopicHits := 0
	for other, ors := range rules {
		if other == policyType {
			continue
		}
		offTopicHits += countHits(lower, ors.strong)
	}
	score -= 0.10 * float64(offTopicHits)

	// Longer texts carry more signal.
	if len(trimmed) >= 400 {
		score += 0.08
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	v := Verdict{Confidence: score, Matched: score >= 0.5}
	switch {
	case requiredHits == 0:
		v.Reason = fmt.Sprintf("no %s terms found in the text", rs.label)
		v.SuggestedAction = fmt.Sprintf("submit a %s policy or correct the declared policy type", rs.label)
	case offTopicHits > strongHits:
		v.Reason = fmt.Sprintf("text reads like a different policy type, not %s", rs.label)
		v.SuggestedAction = "correct the declared policy type"
	case v.Matched:
		v.Reason = fmt.Sprintf("text matches the %s policy type (%d strong, %d supporting indicators)",
			rs.label, strongHits, moderateHits)
	default:
		v.Reason = fmt.Sprintf("weak %s evidence (%d strong, %d supporting indicators)",
			rs.label, strongHits, moderateHits)
		v.SuggestedAction = "review whether the text is a complete policy of the declared type"
	}
	return v
}
