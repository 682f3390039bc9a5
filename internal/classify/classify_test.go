package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/smart-support/internal/domain"
	"github.com/spec-kit/smart-support/internal/observability"
)

func TestKeywordClassifier(t *testing.T) {
	cases := []struct {
		problem string
		want    domain.TicketCategory
	}{
		{"I cannot LOGIN to my account", domain.CategoryLogin},
		{"forgot my password again", domain.CategoryLogin},
		{"payment failed at checkout", domain.CategoryPayment},
		{"my card was declined", domain.CategoryPayment},
		{"please refund my order", domain.CategoryRefund},
		{"app shows an error on startup", domain.CategoryAppBug},
		{"it keeps crashing", domain.CategoryAppBug},
		{"battery drains fast and the app is slow", domain.CategoryPerformance},
		{"how do I change my avatar?", domain.CategoryOther},
		{"", domain.CategoryOther},
	}

	c := NewKeywordClassifier()
	for _, tc := range cases {
		got, err := c.Classify(context.Background(), tc.problem)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "problem: %q", tc.problem)
	}
}

type fakeCompleter struct {
	reply string
	err   error
	calls int
}

func (f *fakeCompleter) Complete(_ context.Context, _, _ string) (string, error) {
	f.calls++
	return f.reply, f.err
}

func TestLLMClassifierNormalizesReply(t *testing.T) {
	completer := &fakeCompleter{reply: "The category is: payment issue."}
	c := NewLLMClassifier(completer, nil, 0, zap.NewNop(), observability.NewMetrics())

	got, err := c.Classify(context.Background(), "card declined")
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryPayment, got)
}

func TestLLMClassifierFallsBackOnTransportError(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("connection refused")}
	metrics := observability.NewMetrics()
	c := NewLLMClassifier(completer, nil, 0, zap.NewNop(), metrics)

	got, err := c.Classify(context.Background(), "please refund my purchase")
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryRefund, got)
	assert.Equal(t, int64(1), metrics.FallbackCount("classifier"))
}

func TestLLMClassifierFallsBackOnUnknownLabel(t *testing.T) {
	completer := &fakeCompleter{reply: "I am not sure about this one"}
	c := NewLLMClassifier(completer, nil, 0, zap.NewNop(), observability.NewMetrics())

	got, err := c.Classify(context.Background(), "the app hangs constantly")
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryPerformance, got)
}
