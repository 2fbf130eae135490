package docusign

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CallbackEvent is the parsed form of a Connect callback payload.
type CallbackEvent struct {
	EnvelopeID string
	// SignatureID is the internal signature the recipient's ClientUserId
	// correlates to.
	SignatureID uuid.UUID
	// Completed is true only for a terminal signed envelope; "sent",
	// "delivered" and similar interim statuses leave it false.
	Completed     bool
	SignatoryName string
	SignedOn      *time.Time
	// Fields holds the named form-field values extracted from the
	// recipient's tabs.
	Fields map[string]string
	Raw    []byte
}

type connectEnvelope struct {
	XMLName        xml.Name `xml:"DocuSignEnvelopeInformation"`
	EnvelopeStatus struct {
		EnvelopeID        string `xml:"EnvelopeID"`
		Status            string `xml:"Status"`
		RecipientStatuses struct {
			RecipientStatus []struct {
				ClientUserID string `xml:"ClientUserId"`
				Status       string `xml:"Status"`
				UserName     string `xml:"UserName"`
				Signed       string `xml:"Signed"`
				TabStatuses  struct {
					TabStatus []struct {
						TabLabel string `xml:"TabLabel"`
						TabValue string `xml:"TabValue"`
					} `xml:"TabStatus"`
				} `xml:"TabStatuses"`
			} `xml:"RecipientStatus"`
		} `xml:"RecipientStatuses"`
	} `xml:"EnvelopeStatus"`
}

// signedTimeLayouts covers the timestamp formats Connect has been observed
// to emit.
var signedTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
}

// ParseCallback parses a Connect XML payload into a CallbackEvent. The first
// recipient carrying a ClientUserId provides the signature correlation.
func ParseCallback(raw []byte) (*CallbackEvent, error) {
	var payload connectEnvelope
	if err := xml.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("parsing callback payload: %w", err)
	}

	env := payload.EnvelopeStatus
	if env.EnvelopeID == "" {
		return nil, fmt.Errorf("callback payload has no envelope ID")
	}

	event := &CallbackEvent{
		EnvelopeID: env.EnvelopeID,
		Completed:  strings.EqualFold(env.Status, "Completed"),
		Fields:     map[string]string{},
		Raw:        raw,
	}

	for _, rec := range env.RecipientStatuses.RecipientStatus {
		if rec.ClientUserID == "" {
			continue
		}
		sigID, err := uuid.Parse(rec.ClientUserID)
		if err != nil {
			return nil, fmt.Errorf("callback ClientUserId %q is not a signature ID: %w", rec.ClientUserID, err)
		}
		event.SignatureID = sigID
		event.SignatoryName = rec.UserName
		if rec.Signed != "" {
			for _, layout := range signedTimeLayouts {
				if t, err := time.Parse(layout, rec.Signed); err == nil {
					event.SignedOn = &t
					break
				}
			}
		}
		for _, tab := range rec.TabStatuses.TabStatus {
			if tab.TabLabel != "" {
				event.Fields[tab.TabLabel] = tab.TabValue
			}
		}
		break
	}

	if event.SignatureID == uuid.Nil {
		return nil, fmt.Errorf("callback payload has no recipient with a ClientUserId")
	}

	return event, nil
}
