package notifications_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.senan.xyz/flacr/notifications"
)

func TestAddURI(t *testing.T) {
	t.Parallel()

	var n notifications.Notifications
	require.NoError(t, n.AddURI(notifications.Complete, "generic://example.com/hook"))
	require.NoError(t, n.AddURI(notifications.Errors, "generic://example.com/hook"))
	require.NoError(t, n.AddURI(notifications.Errors, "ntfy://ntfy.sh/flacr"))

	assert.ErrorIs(t, n.AddURI("needs-input", "generic://example.com"), notifications.ErrUnknownEvent)
	assert.ErrorIs(t, n.AddURI(notifications.Complete, "no scheme"), notifications.ErrInvalidURI)

	got := map[notifications.Event]int{}
	n.IterMappings(func(e notifications.Event, _ string) { got[e]++ })
	assert.Equal(t, map[notifications.Event]int{notifications.Complete: 1, notifications.Errors: 2}, got)
}

func TestSendWithoutMappings(t *testing.T) {
	t.Parallel()

	var n notifications.Notifications
	assert.NotPanics(t, func() { n.Send(context.Background(), notifications.Complete, "done") })

	var nilN *notifications.Notifications
	assert.NotPanics(t, func() { nilN.Send(context.Background(), notifications.Complete, "done") })
}
