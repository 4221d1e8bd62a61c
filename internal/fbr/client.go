package fbr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ahmedwadee/fbrflow/internal/payload"
)

type ClientConfig struct {
	// Endpoint is the full invoice submission URL.
	Endpoint string
	// BaseURL hosts the PDI reference-data endpoints.
	BaseURL string
	Token   string
	Timeout time.Duration
}

type Client struct {
	endpoint string
	baseURL  string
	token    string
	client   *http.Client
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		endpoint: cfg.Endpoint,
		baseURL:  cfg.BaseURL,
		token:    cfg.Token,
		client:   &http.Client{Timeout: timeout},
	}
}

// PostInvoice submits the payload and interprets the verdict.
//
// Failures split into two kinds: *TransportError (timeouts, connection
// faults, 5xx — the caller may retry) and *RejectionError (the authority
// received and refused the invoice — terminal).
func (c *Client) PostInvoice(ctx context.Context, p *payload.Payload) (*SubmissionResult, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "posting invoice", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "reading response", Err: err}
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, &TransportError{
			Op:  "posting invoice",
			Err: fmt.Errorf("server returned status %d", resp.StatusCode),
		}
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, &RejectionError{
			HTTPStatus: resp.StatusCode,
			Message:    rejectionMessage(raw),
		}
	}

	var parsed Response
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &TransportError{Op: "decoding response", Err: err}
	}

	if !parsed.Accepted() {
		return nil, &RejectionError{
			HTTPStatus: resp.StatusCode,
			StatusCode: parsed.ValidationResponse.StatusCode,
			Message:    rejectionMessageFrom(&parsed),
		}
	}

	return &SubmissionResult{
		FBRInvoiceNumber: parsed.InvoiceNumber,
		Status:           parsed.ValidationResponse.Status,
		StatusCode:       parsed.ValidationResponse.StatusCode,
		Raw:              raw,
	}, nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

// rejectionMessage extracts the authority's error text from a non-2xx body,
// falling back to the raw body when it isn't the usual envelope.
func rejectionMessage(raw []byte) string {
	var parsed Response
	if err := json.Unmarshal(raw, &parsed); err == nil {
		if msg := rejectionMessageFrom(&parsed); msg != "" {
			return msg
		}
	}

	if len(raw) > 512 {
		raw = raw[:512]
	}

	return string(raw)
}

func rejectionMessageFrom(r *Response) string {
	if r.ValidationResponse.Error != "" {
		return r.ValidationResponse.Error
	}

	for _, is := range r.ValidationResponse.InvoiceStatuses {
		if is.Error != "" {
			return fmt.Sprintf("item %s: %s", is.ItemSNo, is.Error)
		}
	}

	return r.ValidationResponse.Status
}
