package domain

import "strings"

// PolicyType identifies which class of shop policy a request concerns.
type PolicyType string

const (
	PolicyReturnExchange   PolicyType = "return_exchange"
	PolicyPrivacyAccount   PolicyType = "privacy_account"
	PolicyShippingDelivery PolicyType = "shipping_delivery"
)

// KnownPolicyTypes lists every supported policy type.
var KnownPolicyTypes = []PolicyType{
	PolicyReturnExchange,
	PolicyPrivacyAccount,
	PolicyShippingDelivery,
}

// Valid reports whether the policy type is one of the supported kinds.
func (p PolicyType) Valid() bool {
	for _, known := range KnownPolicyTypes {
		if p == known {
			return true
		}
	}
	return false
}

// AnalysisRequest is the immutable input to one pipeline run.
type AnalysisRequest struct {
	ShopName           string     `json:"shop_name"            yaml:"shop_name"`
	ShopSpecialization string     `json:"shop_specialization"  yaml:"shop_specialization"`
	PolicyType         PolicyType `json:"policy_type"          yaml:"policy_type"`
	PolicyText         string     `json:"policy_text"          yaml:"policy_text"`
}

// Normalize collapses repeated whitespace in the identity fields so that
// trivially different submissions hash to the same idempotency key.
func (r AnalysisRequest) Normalize() AnalysisRequest {
	r.ShopName = strings.Join(strings.Fields(r.ShopName), " ")
	r.ShopSpecialization = strings.Join(strings.Fields(r.ShopSpecialization), " ")
	return r
}
