package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/repository"
	apperrors "github.com/spec-kit/triage-service/pkg/util"
)

func newTicket(t *testing.T, repo *repository.MemoryTicketRepository, creatorID *int64) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{
		CreatorID: creatorID,
		Title:     "Printer on fire",
		Content:   "The office printer is literally on fire.",
		Status:    domain.TicketStatusOpen,
	}
	require.NoError(t, repo.Create(context.Background(), ticket))
	return ticket
}

func sampleResult(id int64) domain.TriageResult {
	return domain.TriageResult{
		TicketID:       id,
		Category:       domain.CategoryTechnical,
		SentimentScore: 2,
		Urgency:        domain.UrgencyHigh,
		ResponseDraft:  "Please evacuate and call facilities.",
	}
}

func assertPrecondition(t *testing.T, err error) {
	t.Helper()
	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "PRECONDITION_FAILED", domainErr.Code)
}

func TestEditDraft(t *testing.T) {
	ctx := context.Background()

	t.Run("human edit sets HUMAN_AI provenance", func(t *testing.T) {
		repo := repository.NewMemoryTicketRepository()
		svc := NewLifecycleService(repo, nil)
		ticket := newTicket(t, repo, nil)

		updated, err := svc.EditDraft(ctx, ticket.ID, "Thanks, we are on it.", DraftActorHuman)
		require.NoError(t, err)
		require.NotNil(t, updated.ResponseDraft)
		assert.Equal(t, "Thanks, we are on it.", *updated.ResponseDraft)
		require.NotNil(t, updated.ReplyMadeBy)
		assert.Equal(t, domain.ReplyMadeByHumanAI, *updated.ReplyMadeBy)
	})

	t.Run("rejected on resolved ticket", func(t *testing.T) {
		repo := repository.NewMemoryTicketRepository()
		svc := NewLifecycleService(repo, nil)
		ticket := newTicket(t, repo, nil)

		_, err := svc.EditDraft(ctx, ticket.ID, "draft", DraftActorHuman)
		require.NoError(t, err)
		_, err = svc.Resolve(ctx, ticket.ID)
		require.NoError(t, err)

		_, err = svc.EditDraft(ctx, ticket.ID, "too late", DraftActorHuman)
		assertPrecondition(t, err)
	})

	t.Run("missing ticket", func(t *testing.T) {
		repo := repository.NewMemoryTicketRepository()
		svc := NewLifecycleService(repo, nil)

		_, err := svc.EditDraft(ctx, 99, "text", DraftActorHuman)
		var domainErr *apperrors.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, "NOT_FOUND", domainErr.Code)
	})
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("copies draft verbatim into response", func(t *testing.T) {
		repo := repository.NewMemoryTicketRepository()
		svc := NewLifecycleService(repo, nil)
		ticket := newTicket(t, repo, nil)

		_, err := svc.ApplyTriage(ctx, ticket.ID, sampleResult(ticket.ID), "worker-1")
		require.NoError(t, err)

		updated, err := svc.Resolve(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusResolved, updated.Status)
		require.NotNil(t, updated.Response)
		assert.Equal(t, "Please evacuate and call facilities.", *updated.Response)
	})

	t.Run("whitespace-only draft rejected, status unchanged", func(t *testing.T) {
		repo := repository.NewMemoryTicketRepository()
		svc := NewLifecycleService(repo, nil)
		ticket := newTicket(t, repo, nil)

		_, err := svc.EditDraft(ctx, ticket.ID, "   ", DraftActorHuman)
		require.NoError(t, err)

		_, err = svc.Resolve(ctx, ticket.ID)
		assertPrecondition(t, err)

		current, err := repo.GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusOpen, current.Status)
		assert.Nil(t, current.Response)
	})

	t.Run("no draft at all rejected", func(t *testing.T) {
		repo := repository.NewMemoryTicketRepository()
		svc := NewLifecycleService(repo, nil)
		ticket := newTicket(t, repo, nil)

		_, err := svc.Resolve(ctx, ticket.ID)
		assertPrecondition(t, err)
	})

	t.Run("rejected on closed ticket", func(t *testing.T) {
		repo := repository.NewMemoryTicketRepository()
		svc := NewLifecycleService(repo, nil)
		creator := int64(1)
		ticket := newTicket(t, repo, &creator)

		_, err := svc.Close(ctx, ticket.ID, creator)
		require.NoError(t, err)

		_, err = svc.Resolve(ctx, ticket.ID)
		assertPrecondition(t, err)
	})
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	creator := int64(7)

	t.Run("owner closes from any non-closed state", func(t *testing.T) {
		for _, status := range []domain.TicketStatus{
			domain.TicketStatusOpen,
			domain.TicketStatusInProgress,
			domain.TicketStatusResolved,
		} {
			repo := repository.NewMemoryTicketRepository()
			svc := NewLifecycleService(repo, nil)
			ticket := newTicket(t, repo, &creator)
			_, err := repo.UpdateFields(ctx, ticket.ID, repository.TicketUpdate{Status: &status})
			require.NoError(t, err)

			updated, err := svc.Close(ctx, ticket.ID, creator)
			require.NoError(t, err, "close from %s", status)
			assert.Equal(t, domain.TicketStatusClosed, updated.Status)
		}
	})

	t.Run("second close rejected, ticket not further mutated", func(t *testing.T) {
		repo := repository.NewMemoryTicketRepository()
		svc := NewLifecycleService(repo, nil)
		ticket := newTicket(t, repo, &creator)

		closed, err := svc.Close(ctx, ticket.ID, creator)
		require.NoError(t, err)

		_, err = svc.Close(ctx, ticket.ID, creator)
		assertPrecondition(t, err)

		current, err := repo.GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, closed.UpdatedAt, current.UpdatedAt)
	})

	t.Run("non-owner rejected", func(t *testing.T) {
		repo := repository.NewMemoryTicketRepository()
		svc := NewLifecycleService(repo, nil)
		ticket := newTicket(t, repo, &creator)

		_, err := svc.Close(ctx, ticket.ID, creator+1)
		var domainErr *apperrors.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, "FORBIDDEN", domainErr.Code)
	})

	t.Run("ownerless ticket cannot be closed", func(t *testing.T) {
		repo := repository.NewMemoryTicketRepository()
		svc := NewLifecycleService(repo, nil)
		ticket := newTicket(t, repo, nil)

		_, err := svc.Close(ctx, ticket.ID, creator)
		var domainErr *apperrors.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, "FORBIDDEN", domainErr.Code)
	})
}

func TestApplyTriage(t *testing.T) {
	ctx := context.Background()

	t.Run("populates classification and moves to in-progress", func(t *testing.T) {
		repo := repository.NewMemoryTicketRepository()
		svc := NewLifecycleService(repo, nil)
		ticket := newTicket(t, repo, nil)

		updated, err := svc.ApplyTriage(ctx, ticket.ID, sampleResult(ticket.ID), "worker-1")
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusInProgress, updated.Status)
		require.NotNil(t, updated.Category)
		assert.Equal(t, domain.CategoryTechnical, *updated.Category)
		require.NotNil(t, updated.SentimentScore)
		assert.Equal(t, 2, *updated.SentimentScore)
		require.NotNil(t, updated.ReplyMadeBy)
		assert.Equal(t, domain.ReplyMadeByAI, *updated.ReplyMadeBy)
		assert.Equal(t, domain.TagTriageDone, updated.Tag)
	})

	t.Run("re-applying overwrites fields and appends tag", func(t *testing.T) {
		repo := repository.NewMemoryTicketRepository()
		svc := NewLifecycleService(repo, nil)
		ticket := newTicket(t, repo, nil)

		_, err := svc.ApplyTriage(ctx, ticket.ID, sampleResult(ticket.ID), "worker-1")
		require.NoError(t, err)

		second := sampleResult(ticket.ID)
		second.Category = domain.CategoryBilling
		updated, err := svc.ApplyTriage(ctx, ticket.ID, second, "worker-2")
		require.NoError(t, err)
		assert.Equal(t, domain.CategoryBilling, *updated.Category)
		assert.Equal(t, "triage-done,triage-done", updated.Tag)
		assert.Equal(t, domain.TicketStatusInProgress, updated.Status)
	})

	t.Run("stale result discarded entirely after resolve", func(t *testing.T) {
		repo := repository.NewMemoryTicketRepository()
		svc := NewLifecycleService(repo, nil)
		ticket := newTicket(t, repo, nil)

		_, err := svc.EditDraft(ctx, ticket.ID, "human draft", DraftActorHuman)
		require.NoError(t, err)
		_, err = svc.Resolve(ctx, ticket.ID)
		require.NoError(t, err)

		_, err = svc.ApplyTriage(ctx, ticket.ID, sampleResult(ticket.ID), "worker-1")
		require.True(t, errors.Is(err, ErrStaleTriage))

		current, err := repo.GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusResolved, current.Status)
		assert.Nil(t, current.Category, "stale triage must not touch classification fields")
		assert.Equal(t, "human draft", *current.ResponseDraft)
	})
}
