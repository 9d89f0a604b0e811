package fhir

import (
	"errors"

	"github.com/ehr/ehrcore/internal/platform/apperr"
)

const (
	IssueSeverityError       = "error"
	IssueSeverityInformation = "information"

	IssueTypeRequired  = "required"
	IssueTypeNotFound  = "not-found"
	IssueTypeForbidden = "forbidden"
	IssueTypeTransient = "transient"
	IssueTypeInvalid   = "invalid"
	IssueTypeException = "exception"
	IssueTypeTimeout   = "timeout"
)

// OperationOutcome represents a FHIR OperationOutcome for errors.
type OperationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []OperationOutcomeIssue `json:"issue"`
}

type OperationOutcomeIssue struct {
	Severity    string   `json:"severity"`
	Code        string   `json:"code"`
	Diagnostics string   `json:"diagnostics,omitempty"`
	Expression  []string `json:"expression,omitempty"`
}

func NewOperationOutcome(severity, code, diagnostics string) *OperationOutcome {
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue: []OperationOutcomeIssue{
			{Severity: severity, Code: code, Diagnostics: diagnostics},
		},
	}
}

func NotFoundOutcome(resourceType, id string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeNotFound, resourceType+"/"+id+" not found")
}

// InvalidOutcome reports a malformed request (bad id, unparsable body).
func InvalidOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeInvalid, diagnostics)
}

// OutcomeFor maps a service error onto an OperationOutcome. Validation
// issues carry the message key as diagnostics and the field as expression.
func OutcomeFor(err error) *OperationOutcome {
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		oo := NewOperationOutcome(IssueSeverityError, IssueTypeRequired, ve.Key)
		oo.Issue[0].Expression = []string{ve.Field}
		return oo
	case errors.Is(err, apperr.ErrNotFound):
		return NewOperationOutcome(IssueSeverityError, IssueTypeNotFound, err.Error())
	case apperr.IsAuthorization(err):
		return NewOperationOutcome(IssueSeverityError, IssueTypeForbidden, err.Error())
	case apperr.IsStorage(err):
		return NewOperationOutcome(IssueSeverityError, IssueTypeTransient, "storage unavailable")
	default:
		return NewOperationOutcome(IssueSeverityError, IssueTypeException, err.Error())
	}
}
