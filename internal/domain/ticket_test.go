package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasUsableDraft(t *testing.T) {
	blank := "   "
	draft := "We will look into it."

	assert.False(t, (&Ticket{}).HasUsableDraft())
	assert.False(t, (&Ticket{ResponseDraft: &blank}).HasUsableDraft())
	assert.True(t, (&Ticket{ResponseDraft: &draft}).HasUsableDraft())
}

func TestIsEditable(t *testing.T) {
	assert.True(t, (&Ticket{Status: TicketStatusOpen}).IsEditable())
	assert.True(t, (&Ticket{Status: TicketStatusInProgress}).IsEditable())
	assert.False(t, (&Ticket{Status: TicketStatusResolved}).IsEditable())
	assert.False(t, (&Ticket{Status: TicketStatusClosed}).IsEditable())
}

func TestAppendTag(t *testing.T) {
	assert.Equal(t, TagTriageDone, (&Ticket{}).AppendTag(TagTriageDone))
	assert.Equal(t, "triage-done,triage-done", (&Ticket{Tag: TagTriageDone}).AppendTag(TagTriageDone))
}

func TestValidEnums(t *testing.T) {
	assert.True(t, ValidCategory("Billing"))
	assert.True(t, ValidCategory("Feature Request"))
	assert.False(t, ValidCategory("billing"))
	assert.False(t, ValidCategory(""))

	assert.True(t, ValidUrgency("Medium"))
	assert.False(t, ValidUrgency("urgent"))
}
