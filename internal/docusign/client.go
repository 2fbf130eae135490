// Package docusign wraps the DocuSign eSignature REST API: envelope
// creation and voiding, embedded recipient views, signed-document retrieval,
// and Connect callback parsing.
package docusign

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/clahub/clahub/internal/clerrors"
)

// Provider is the e-signature capability the engine depends on.
type Provider interface {
	CreateEnvelope(ctx context.Context, req EnvelopeRequest) (string, error)
	GetEmbeddedSignURL(ctx context.Context, envelopeID string, signer Signer, returnURL string) (string, error)
	VoidEnvelope(ctx context.Context, envelopeID, reason string) error
	GetSignedDocument(ctx context.Context, envelopeID string) ([]byte, error)
}

// Signer identifies the acting signer on an envelope.
type Signer struct {
	Name  string
	Email string
	// ClientUserID correlates the recipient back to the internal
	// signature ID on callbacks; required for embedded signing.
	ClientUserID string
}

// EnvelopeRequest describes one envelope to create from a document template.
type EnvelopeRequest struct {
	TemplateID string
	Signer     Signer
	// SendAsEmail routes the envelope through DocuSign email delivery
	// instead of an embedded recipient view.
	SendAsEmail bool
	CallbackURL string
	// Fields binds template tab labels to values.
	Fields map[string]string
}

// Client implements Provider over the eSignature v2.1 REST API.
type Client struct {
	baseURL   string
	accountID string
	authToken string
	http      *http.Client
}

// NewClient creates a DocuSign client with a bounded request timeout.
func NewClient(baseURL, accountID, authToken string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   baseURL,
		accountID: accountID,
		authToken: authToken,
		http:      &http.Client{Timeout: timeout},
	}
}

type textTab struct {
	TabLabel string `json:"tabLabel"`
	Value    string `json:"value"`
}

type templateRole struct {
	RoleName     string `json:"roleName"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	ClientUserID string `json:"clientUserId,omitempty"`
	Tabs         *struct {
		TextTabs []textTab `json:"textTabs"`
	} `json:"tabs,omitempty"`
}

type eventNotification struct {
	URL            string          `json:"url"`
	LoggingEnabled string          `json:"loggingEnabled"`
	EnvelopeEvents []envelopeEvent `json:"envelopeEvents"`
}

type envelopeEvent struct {
	EnvelopeEventStatusCode string `json:"envelopeEventStatusCode"`
}

type createEnvelopeRequest struct {
	TemplateID        string             `json:"templateId"`
	Status            string             `json:"status"`
	TemplateRoles     []templateRole     `json:"templateRoles"`
	EventNotification *eventNotification `json:"eventNotification,omitempty"`
}

// CreateEnvelope creates and sends an envelope from a template, returning
// the provider envelope ID.
func (c *Client) CreateEnvelope(ctx context.Context, req EnvelopeRequest) (string, error) {
	role := templateRole{
		RoleName: "signer",
		Name:     req.Signer.Name,
		Email:    req.Signer.Email,
	}
	if !req.SendAsEmail {
		role.ClientUserID = req.Signer.ClientUserID
	}
	if len(req.Fields) > 0 {
		role.Tabs = &struct {
			TextTabs []textTab `json:"textTabs"`
		}{}
		for label, value := range req.Fields {
			role.Tabs.TextTabs = append(role.Tabs.TextTabs, textTab{TabLabel: label, Value: value})
		}
	}

	body := createEnvelopeRequest{
		TemplateID:    req.TemplateID,
		Status:        "sent",
		TemplateRoles: []templateRole{role},
	}
	if req.CallbackURL != "" {
		body.EventNotification = &eventNotification{
			URL:            req.CallbackURL,
			LoggingEnabled: "true",
			EnvelopeEvents: []envelopeEvent{{EnvelopeEventStatusCode: "completed"}, {EnvelopeEventStatusCode: "declined"}, {EnvelopeEventStatusCode: "voided"}},
		}
	}

	var resp struct {
		EnvelopeID string `json:"envelopeId"`
	}
	if err := c.do(ctx, http.MethodPost, c.envelopesURL(""), body, &resp); err != nil {
		return "", &clerrors.ProviderError{Provider: "docusign", Op: "create envelope", Err: err}
	}
	return resp.EnvelopeID, nil
}

// GetEmbeddedSignURL generates a recipient-view URL for embedded signing.
func (c *Client) GetEmbeddedSignURL(ctx context.Context, envelopeID string, signer Signer, returnURL string) (string, error) {
	body := map[string]string{
		"returnUrl":            returnURL,
		"authenticationMethod": "none",
		"email":                signer.Email,
		"userName":             signer.Name,
		"clientUserId":         signer.ClientUserID,
	}

	var resp struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodPost, c.envelopesURL(envelopeID+"/views/recipient"), body, &resp); err != nil {
		return "", &clerrors.ProviderError{Provider: "docusign", Op: "recipient view for envelope " + envelopeID, Err: err}
	}
	return resp.URL, nil
}

// VoidEnvelope voids an in-flight envelope with a human-readable reason.
func (c *Client) VoidEnvelope(ctx context.Context, envelopeID, reason string) error {
	body := map[string]string{
		"status":       "voided",
		"voidedReason": reason,
	}
	if err := c.do(ctx, http.MethodPut, c.envelopesURL(envelopeID), body, nil); err != nil {
		return &clerrors.ProviderError{Provider: "docusign", Op: "void envelope " + envelopeID, Err: err}
	}
	return nil
}

// GetSignedDocument downloads the combined signed PDF for an envelope.
func (c *Client) GetSignedDocument(ctx context.Context, envelopeID string) ([]byte, error) {
	url := c.envelopesURL(envelopeID + "/documents/combined")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &clerrors.ProviderError{Provider: "docusign", Op: "fetch signed document", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.authToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &clerrors.ProviderError{Provider: "docusign", Op: "fetch signed document", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &clerrors.ProviderError{
			Provider: "docusign",
			Op:       "fetch signed document",
			Err:      fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) envelopesURL(suffix string) string {
	url := fmt.Sprintf("%s/v2.1/accounts/%s/envelopes", c.baseURL, c.accountID)
	if suffix != "" {
		url += "/" + suffix
	}
	return url
}

func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.authToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, url, resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
