package callback

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []Notification
	err  error
}

func (f *fakeSender) SendProgress(n Notification) error {
	f.sent = append(f.sent, n)
	return f.err
}

func TestRoute_SuppressesWithoutBoundToken(t *testing.T) {
	sender := &fakeSender{}
	r := NewRouter(sender, ClientTypeDefault)

	err := r.Route(Update{OperationID: "op1", Kind: UpdateStarted})
	require.NoError(t, err)
	assert.Empty(t, sender.sent)
}

func TestRoute_SendsBoundUpdate(t *testing.T) {
	sender := &fakeSender{}
	r := NewRouter(sender, ClientTypeDefault)
	r.BindToken("op1", "tok-1")

	err := r.Route(Update{OperationID: "op1", Kind: UpdateStarted, Message: "starting"})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "tok-1", sender.sent[0].ProgressToken)
	assert.Equal(t, "starting", sender.sent[0].Message)
}

func TestRoute_SuppressesUnboundTokenlessOperation(t *testing.T) {
	sender := &fakeSender{}
	r := NewRouter(sender, ClientTypeDefault)
	r.BindToken("op1", nil) // nil token never binds

	err := r.Route(Update{OperationID: "op1", Kind: UpdateStarted})
	require.NoError(t, err)
	assert.Empty(t, sender.sent)
}

func TestRoute_DedupesIdenticalUpdates(t *testing.T) {
	sender := &fakeSender{}
	r := NewRouter(sender, ClientTypeDefault)
	r.BindToken("op1", "tok-1")

	pct := 50.0
	u := Update{OperationID: "op1", Kind: UpdateProgress, Percentage: &pct}
	require.NoError(t, r.Route(u))
	require.NoError(t, r.Route(u))
	assert.Len(t, sender.sent, 1)
}

func TestRoute_SuppressesAfterTerminal(t *testing.T) {
	sender := &fakeSender{}
	r := NewRouter(sender, ClientTypeDefault)
	r.BindToken("op1", "tok-1")

	require.NoError(t, r.Route(Update{OperationID: "op1", Kind: UpdateCompleted}))
	require.NoError(t, r.Route(Update{OperationID: "op1", Kind: UpdateOutput, Message: "late"}))
	assert.Len(t, sender.sent, 1)
}

func TestRoute_NoProgressClientTypeSuppressesEverything(t *testing.T) {
	sender := &fakeSender{}
	r := NewRouter(sender, ClientTypeNoProgress)
	r.BindToken("op1", "tok-1")

	require.NoError(t, r.Route(Update{OperationID: "op1", Kind: UpdateStarted}))
	assert.Empty(t, sender.sent)
}

func TestForget_ClearsStateSoUpdatesCanResend(t *testing.T) {
	sender := &fakeSender{}
	r := NewRouter(sender, ClientTypeDefault)
	r.BindToken("op1", "tok-1")
	require.NoError(t, r.Route(Update{OperationID: "op1", Kind: UpdateCompleted}))

	r.Forget("op1")
	r.BindToken("op1", "tok-1")
	require.NoError(t, r.Route(Update{OperationID: "op1", Kind: UpdateCompleted}))
	assert.Len(t, sender.sent, 2)
}

func TestSetSender_RebindsDeliveryTarget(t *testing.T) {
	first := &fakeSender{}
	r := NewRouter(first, ClientTypeDefault)
	r.BindToken("op1", "tok-1")

	second := &fakeSender{}
	r.SetSender(second)
	require.NoError(t, r.Route(Update{OperationID: "op1", Kind: UpdateStarted}))
	assert.Empty(t, first.sent)
	assert.Len(t, second.sent, 1)
}

func TestRoute_PropagatesSenderError(t *testing.T) {
	sender := &fakeSender{err: errors.New("boom")}
	r := NewRouter(sender, ClientTypeDefault)
	r.BindToken("op1", "tok-1")

	err := r.Route(Update{OperationID: "op1", Kind: UpdateStarted})
	assert.EqualError(t, err, "boom")
}
