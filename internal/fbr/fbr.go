// Package fbr is the client for the authority's digital invoicing API:
// invoice submission plus the PDI reference-data endpoints.
package fbr

import (
	"encoding/json"
	"fmt"
)

// Response is the submission response envelope.
type Response struct {
	InvoiceNumber      string             `json:"invoiceNumber"`
	Dated              string             `json:"dated"`
	ValidationResponse ValidationResponse `json:"validationResponse"`
}

// ValidationResponse carries the authority's verdict. StatusCode "00" with
// Status "Valid" means the invoice was accepted.
type ValidationResponse struct {
	StatusCode      string       `json:"statusCode"`
	Status          string       `json:"status"`
	Error           string       `json:"error"`
	InvoiceStatuses []ItemStatus `json:"invoiceStatuses"`
}

// ItemStatus is the per-line verdict inside a validation response.
type ItemStatus struct {
	ItemSNo    string `json:"itemSNo"`
	StatusCode string `json:"statusCode"`
	Status     string `json:"status"`
	InvoiceNo  string `json:"invoiceNo"`
	ErrorCode  string `json:"errorCode"`
	Error      string `json:"error"`
}

const (
	statusCodeValid = "00"
	statusValid     = "Valid"
)

// Accepted reports whether the authority accepted the invoice.
func (r *Response) Accepted() bool {
	return r.ValidationResponse.StatusCode == statusCodeValid ||
		r.ValidationResponse.Status == statusValid
}

// SubmissionResult is the interpreted outcome of an accepted submission.
type SubmissionResult struct {
	FBRInvoiceNumber string
	Status           string
	StatusCode       string

	// Raw is the verbatim response body, kept for the submission log.
	Raw json.RawMessage
}

// TransportError wraps a network-level or server-side failure. These are
// retryable.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fbr: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RejectionError is a terminal verdict from the authority: the invoice was
// received and refused. Retrying without changing the invoice is pointless.
type RejectionError struct {
	HTTPStatus int
	StatusCode string
	Message    string
}

func (e *RejectionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("fbr: rejected: %s", e.Message)
	}

	return fmt.Sprintf("fbr: rejected with HTTP status %d", e.HTTPStatus)
}
