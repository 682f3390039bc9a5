package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/smart-support/internal/domain"
	"github.com/spec-kit/smart-support/internal/events"
	"github.com/spec-kit/smart-support/internal/observability"
	apperrors "github.com/spec-kit/smart-support/pkg/util/errorutil"
)

func newChatFixture(t *testing.T, completer ChatCompleter) (*ChatService, *memStore, *recordingDispatcher) {
	t.Helper()
	s := newMemStore()
	d := &recordingDispatcher{}
	svc := NewChatService(ChatDependencies{
		Tickets:       s,
		Conversations: s,
		Completer:     completer,
		Dispatcher:    d,
		Logger:        zap.NewNop(),
		Metrics:       observability.NewMetrics(),
	})

	_, err := s.CreateTicket(context.Background(), storeNewTicket("Alice", "a@x.com", "payment failed"))
	require.NoError(t, err)
	return svc, s, d
}

func TestSendMessageAppendsUserAndAgentTurns(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{"1. Check your card.\n2. Retry.\n\nWas this helpful? (Yes/No)"}}
	svc, s, d := newChatFixture(t, completer)

	turns, err := svc.SendMessage(context.Background(), "TICKET-1", "payment failed")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, domain.SenderUser, turns[0].Sender)
	assert.Equal(t, domain.SenderAgent, turns[1].Sender)
	assert.True(t, strings.HasSuffix(turns[1].Message, "Was this helpful? (Yes/No)"))

	stored, err := s.ListConversation(context.Background(), "TICKET-1")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	assert.Len(t, d.byType(events.EventTurnAppended), 2)
}

func TestSendMessageFallsBackToCannedReply(t *testing.T) {
	svc, _, _ := newChatFixture(t, &scriptedCompleter{err: errors.New("model down")})

	turns, err := svc.SendMessage(context.Background(), "TICKET-1", "it broke again")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Contains(t, turns[1].Message, "Restart the app")
	assert.True(t, strings.HasSuffix(turns[1].Message, "Was this helpful? (Yes/No)"))
}

func TestSendMessageAppendsFeedbackPromptWhenModelOmitsIt(t *testing.T) {
	svc, _, _ := newChatFixture(t, &scriptedCompleter{replies: []string{"1. Reinstall the app."}})

	turns, err := svc.SendMessage(context.Background(), "TICKET-1", "crashing")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(turns[1].Message, "Was this helpful? (Yes/No)"))
}

func TestSendMessageUnknownTicket(t *testing.T) {
	svc, _, _ := newChatFixture(t, &scriptedCompleter{})

	_, err := svc.SendMessage(context.Background(), "TICKET-999", "hello")
	require.Error(t, err)
	var de *apperrors.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 404, de.HTTPStatus)
}

func TestRecordFeedback(t *testing.T) {
	svc, s, d := newChatFixture(t, &scriptedCompleter{replies: []string{"1. Retry."}})

	_, err := svc.SendMessage(context.Background(), "TICKET-1", "payment failed")
	require.NoError(t, err)

	require.NoError(t, svc.RecordFeedback(context.Background(), "TICKET-1", domain.FeedbackYes))

	turns, err := s.ListConversation(context.Background(), "TICKET-1")
	require.NoError(t, err)
	assert.Equal(t, domain.FeedbackYes, turns[1].Feedback)
	assert.Len(t, d.byType(events.EventFeedbackRecorded), 1)
}

func TestRecordFeedbackRejectsInvalidValue(t *testing.T) {
	svc, _, _ := newChatFixture(t, &scriptedCompleter{})

	err := svc.RecordFeedback(context.Background(), "TICKET-1", "Maybe")
	require.Error(t, err)
	var de *apperrors.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 400, de.HTTPStatus)
}

func TestRecordFeedbackWithoutAgentTurn(t *testing.T) {
	svc, _, _ := newChatFixture(t, &scriptedCompleter{})

	err := svc.RecordFeedback(context.Background(), "TICKET-1", domain.FeedbackNo)
	require.Error(t, err)
	var de *apperrors.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 404, de.HTTPStatus)
}
