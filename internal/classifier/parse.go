package classifier

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/spec-kit/triage-service/internal/domain"
)

// Defaults applied when the model misvalues a field. A wrong category or
// sentiment is still usable signal; only a blank draft voids the result.
const (
	defaultCategory  = domain.CategoryTechnical
	defaultSentiment = 5
	defaultUrgency   = domain.UrgencyMedium
)

// Outcome carries the normalized result of one classification attempt.
// Valid is false when the raw text failed to parse as JSON or the
// normalized draft is blank; Raw always preserves the untouched model
// output for the audit trail.
type Outcome struct {
	Result domain.TriageResult
	Valid  bool
	Raw    string
}

// parseResponse turns untrusted model output into an Outcome. It never
// returns an error: malformed content yields an invalid Outcome and the
// caller decides disposition.
func parseResponse(ticketID int64, raw string) Outcome {
	outcome := Outcome{Raw: raw}

	text := stripCodeFence(strings.TrimSpace(raw))

	var fields map[string]any
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return outcome
	}

	outcome.Result = normalizeFields(ticketID, fields)
	outcome.Valid = strings.TrimSpace(outcome.Result.ResponseDraft) != ""
	return outcome
}

// stripCodeFence removes one surrounding Markdown code fence, optionally
// tagged with a language such as "json".
func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	body := text[3:]
	if newline := strings.IndexByte(body, '\n'); newline >= 0 {
		firstLine := strings.TrimSpace(body[:newline])
		if firstLine == "" || isFenceTag(firstLine) {
			body = body[newline+1:]
		}
	}
	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(body, "```")
	return strings.TrimSpace(body)
}

func isFenceTag(line string) bool {
	for _, r := range line {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

// normalizeFields applies tolerant field-by-field defaulting rather than
// rejecting the whole payload.
func normalizeFields(ticketID int64, fields map[string]any) domain.TriageResult {
	result := domain.TriageResult{
		TicketID:       ticketID,
		Category:       defaultCategory,
		SentimentScore: defaultSentiment,
		Urgency:        defaultUrgency,
	}

	if id, ok := coerceTicketID(fields["ticket_id"]); ok {
		result.TicketID = id
	}
	if category, ok := fields["category"].(string); ok && domain.ValidCategory(category) {
		result.Category = domain.TicketCategory(category)
	}
	if score, ok := coerceInt(fields["sentiment_score"]); ok && score >= 1 && score <= 10 {
		result.SentimentScore = score
	}
	if urgency, ok := fields["urgency"].(string); ok && domain.ValidUrgency(urgency) {
		result.Urgency = domain.TicketUrgency(urgency)
	}
	if draft, ok := fields["response_draft"].(string); ok {
		result.ResponseDraft = draft
	}
	return result
}

func coerceTicketID(value any) (int64, bool) {
	switch v := value.(type) {
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return id, true
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	}
	return 0, false
}

func coerceInt(value any) (int, bool) {
	switch v := value.(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}
