package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Classifier errors distinguish upstream failure modes for the retry
// policy. Both are transient infrastructure conditions.
var (
	ErrUpstreamUnavailable = errors.New("classifier upstream unavailable")
	ErrUpstreamTimeout     = errors.New("classifier upstream timeout")
)

// ModelClient is the single request/response contract with the
// text-generation model. The returned text is untrusted.
type ModelClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Classifier produces structured triage results from ticket text.
type Classifier struct {
	client ModelClient
	logger *zap.Logger
}

// New constructs a Classifier.
func New(client ModelClient, logger *zap.Logger) *Classifier {
	return &Classifier{client: client, logger: logger}
}

const systemInstruction = `You are a support ticket triage assistant.
Respond with exactly one JSON object and nothing else. The object must have
exactly these fields and no others:
  "ticket_id": the ticket id as a string
  "category": one of "Billing", "Technical", "Feature Request"
  "sentiment_score": an integer from 1 (very negative) to 10 (very positive)
  "urgency": one of "High", "Medium", "Low"
  "response_draft": a polite draft reply to the customer
No arrays, no null values, no extra fields, no Markdown.`

// Classify sends the ticket to the model and normalizes the response.
// A returned error means the upstream call itself failed; a malformed or
// empty-draft response comes back as an invalid Outcome instead.
func (c *Classifier) Classify(ctx context.Context, ticketID int64, title, content, extraContext string) (Outcome, error) {
	raw, err := c.client.Complete(ctx, systemInstruction, buildUserMessage(ticketID, title, content, extraContext))
	if err != nil {
		return Outcome{}, err
	}

	outcome := parseResponse(ticketID, raw)
	if !outcome.Valid {
		c.logger.Warn("model returned unusable triage response",
			zap.Int64("ticket_id", ticketID),
			zap.Int("raw_len", len(raw)))
	}
	return outcome, nil
}

func buildUserMessage(ticketID int64, title, content, extraContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticket ID: %d\n", ticketID)
	fmt.Fprintf(&b, "Title: %s\n", strings.TrimSpace(title))
	fmt.Fprintf(&b, "Content:\n%s\n", strings.TrimSpace(content))
	if strings.TrimSpace(extraContext) != "" {
		fmt.Fprintf(&b, "Additional context:\n%s\n", strings.TrimSpace(extraContext))
	}
	return b.String()
}
