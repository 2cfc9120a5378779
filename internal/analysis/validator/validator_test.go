package validator

import (
	"strings"
	"testing"

	"github.com/mhmod01110/priv-band-ai/internal/core/domain"
)

const goodReturnPolicy = `Our return policy: items may be returned within 30 days of delivery
for a full refund or exchange. Products must be unused, in their original packaging, and
accompanied by proof of purchase. Refunds go back to the original payment method. Defective
or damaged items qualify for free return shipping and store credit is available on request.
A restocking fee applies to opened electronics. Money back guaranteed on unworn apparel.`

const goodPrivacyPolicy = `This privacy policy explains how we handle your personal data.
We follow GDPR data protection requirements, obtain consent before sharing anything with
third parties, use cookies only for sessions, and honor account deletion requests. Our
data retention period is twelve months and you may opt out of marketing at any time by
updating your account information or contacting the data controller.`

func TestEvaluate_StrongMatch(t *testing.T) {
	v := Evaluate(domain.PolicyReturnExchange, goodReturnPolicy)
	if !v.Matched {
		t.Errorf("Expected match, got %+v", v)
	}
	if v.Confidence <= 0.70 {
		t.Errorf("Expected unambiguous confidence, got %v", v.Confidence)
	}
	if v.SuggestedAction != "" {
		t.Errorf("Expected no corrective action on a match, got %q", v.SuggestedAction)
	}
}

func TestEvaluate_WrongType(t *testing.T) {
	// A privacy policy declared as a return policy.
	v := Evaluate(domain.PolicyReturnExchange, goodPrivacyPolicy)
	if v.Matched {
		t.Errorf("Expected mismatch, got %+v", v)
	}
	if v.Confidence >= 0.30 {
		t.Errorf("Expected low confidence for off-topic text, got %v", v.Confidence)
	}
	if v.SuggestedAction == "" {
		t.Error("Expected a corrective action on mismatch")
	}
}

func TestEvaluate_TooShort(t *testing.T) {
	v := Evaluate(domain.PolicyReturnExchange, "returns ok")
	if v.Matched || v.Confidence != 0 {
		t.Errorf("Expected outright rejection of short text, got %+v", v)
	}
	if v.SuggestedAction == "" {
		t.Error("Expected a corrective action for short text")
	}
}

func TestEvaluate_AmbiguousText(t *testing.T) {
	// Mentions returns but carries almost no supporting evidence.
	text := "You can send items back to us and we may issue a refund depending " +
		"on circumstances. Contact support for details about the process."
	v := Evaluate(domain.PolicyReturnExchange, text)
	if v.Confidence < 0.20 || v.Confidence > 0.70 {
		t.Errorf("Expected mid-band confidence for thin evidence, got %v", v.Confidence)
	}
}

func TestEvaluate_UnsupportedType(t *testing.T) {
	v := Evaluate(domain.PolicyType("warranty"), strings.Repeat("warranty terms ", 20))
	if v.Matched || v.Confidence != 0 {
		t.Errorf("Expected rejection of unknown type, got %+v", v)
	}
}

func TestEvaluate_AllTypes(t *testing.T) {
	texts := map[domain.PolicyType]string{
		domain.PolicyReturnExchange: goodReturnPolicy,
		domain.PolicyPrivacyAccount: goodPrivacyPolicy,
		domain.PolicyShippingDelivery: `Our shipping policy: orders dispatch within 2 business days.
Delivery time is 3-5 business days domestically; international shipping takes longer. Shipping
cost is calculated at checkout and free shipping applies over $50. A tracking number is emailed
once the carrier collects your parcel. Order processing pauses on holidays; estimated delivery
dates appear at checkout along with courier and handling time details.`,
	}
	for pt, text := range texts {
		v := Evaluate(pt, text)
		if !v.Matched {
			t.Errorf("%s: expected match, got confidence %v (%s)", pt, v.Confidence, v.Reason)
		}
	}
}
