// Package analysis implements the legal document analysis and grounded Q&A
// pipeline: text normalization, prompt composition, completion invocation,
// and coercion of the untrusted model output into stable schemas.
package analysis

import "time"

// DocumentType classifies the legal document being analyzed.
type DocumentType string

// Canonical document types. Unknown values are tolerated and interpolated
// into prompts as-is so new types can be introduced without a code change.
const (
	DocTypeContract           DocumentType = "contract"
	DocTypeRentalAgreement    DocumentType = "rental_agreement"
	DocTypeLoanAgreement      DocumentType = "loan_agreement"
	DocTypeTermsOfService     DocumentType = "terms_of_service"
	DocTypePrivacyPolicy      DocumentType = "privacy_policy"
	DocTypeEmploymentContract DocumentType = "employment_contract"
	DocTypeOther              DocumentType = "other"
)

// UserRole describes who the analysis is for, which shapes its tone.
type UserRole string

const (
	RoleIndividual UserRole = "individual"
	RoleBusiness   UserRole = "business"
	RoleTenant     UserRole = "tenant"
	RoleBorrower   UserRole = "borrower"
	RoleEmployee   UserRole = "employee"
)

// ComplexityLevel controls how much legal terminology the analysis uses.
type ComplexityLevel string

const (
	ComplexitySimple   ComplexityLevel = "simple"
	ComplexityDetailed ComplexityLevel = "detailed"
	ComplexityExpert   ComplexityLevel = "expert"
)

// Options configures an analysis request.
type Options struct {
	DocumentType    DocumentType    `json:"document_type"`
	UserRole        UserRole        `json:"user_role"`
	ComplexityLevel ComplexityLevel `json:"complexity_level"`
}

// DefaultOptions returns the options used when a caller leaves fields empty.
func DefaultOptions() Options {
	return Options{
		DocumentType:    DocTypeContract,
		UserRole:        RoleIndividual,
		ComplexityLevel: ComplexitySimple,
	}
}

// withDefaults fills empty fields from DefaultOptions.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.DocumentType == "" {
		o.DocumentType = def.DocumentType
	}
	if o.UserRole == "" {
		o.UserRole = def.UserRole
	}
	if o.ComplexityLevel == "" {
		o.ComplexityLevel = def.ComplexityLevel
	}
	return o
}

// Analysis is the structured result of analyzing a document. All five fields
// are always present and typed after coercion, even when the completion
// service misbehaves.
type Analysis struct {
	Summary               string   `json:"summary"`
	KeyPoints             []string `json:"key_points"`
	RisksAndConcerns      []string `json:"risks_and_concerns"`
	Recommendations       []string `json:"recommendations"`
	SimplifiedExplanation string   `json:"simplified_explanation"`
}

// Answer is the structured result of a grounded follow-up question.
type Answer struct {
	Answer           string   `json:"answer"`
	RelevantSections []string `json:"relevant_sections"`
	ConfidenceLevel  string   `json:"confidence_level"`
}

// Canonical confidence levels. Free-form strings are tolerated.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// ChatRecord is one question/answer exchange. Immutable once appended.
type ChatRecord struct {
	Question         string    `json:"question"`
	Answer           string    `json:"answer"`
	RelevantSections []string  `json:"relevant_sections"`
	ConfidenceLevel  string    `json:"confidence_level"`
	Timestamp        time.Time `json:"timestamp"`
}

// Result pairs an analysis with the registry identifier under which the
// document was stored.
type Result struct {
	DocumentID string    `json:"document_id"`
	Analysis   *Analysis `json:"analysis"`
}
