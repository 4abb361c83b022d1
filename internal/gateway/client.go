// Package gateway is the HTTP adapter for the external payment provider.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Dmytriyev/plateforme-porsche-sub000/internal/domain/checkout"
)

var _ checkout.Gateway = (*Client)(nil)

// Client creates checkout sessions against the payment provider's REST API.
// Every call is bounded by the configured timeout; a timed-out checkout is
// surfaced as a retryable gateway error and mutates nothing.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a gateway Client. baseURL is the provider's API root,
// e.g. https://api.pay.example.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type sessionLineJSON struct {
	Description string `json:"description"`
	UnitAmount  int64  `json:"unit_amount"`
	Quantity    int    `json:"quantity"`
}

type createSessionJSON struct {
	Lines      []sessionLineJSON `json:"lines"`
	SuccessURL string            `json:"success_url"`
	CancelURL  string            `json:"cancel_url"`
	Metadata   map[string]string `json:"metadata"`
}

type sessionJSON struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateSession opens a payment session. The cart id rides along in the
// session metadata and comes back with the completion webhook.
func (c *Client) CreateSession(ctx context.Context, req checkout.SessionRequest) (*checkout.Session, error) {
	lines := make([]sessionLineJSON, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = sessionLineJSON{
			Description: l.Description,
			UnitAmount:  l.UnitAmount,
			Quantity:    l.Quantity,
		}
	}

	body, err := json.Marshal(createSessionJSON{
		Lines:      lines,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
		Metadata:   map[string]string{"cart_id": req.CartID},
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal session request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build session request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		// Transport failures and timeouts are worth a retry.
		return nil, &checkout.GatewayError{Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, &checkout.GatewayError{
			Err:       errors.Errorf("create session: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))),
			Retryable: resp.StatusCode >= http.StatusInternalServerError,
		}
	}

	var sess sessionJSON
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		return nil, &checkout.GatewayError{Err: errors.Wrap(err, "decode session response")}
	}
	if sess.ID == "" {
		return nil, &checkout.GatewayError{Err: errors.New("gateway returned session without id")}
	}

	return &checkout.Session{ID: sess.ID, RedirectURL: sess.URL}, nil
}
