package flacrflag

import (
	"runtime"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.senan.xyz/flacr/notifications"
)

func TestThreadsParser(t *testing.T) {
	t.Parallel()

	var n int
	p := &threadsParser{&n}
	require.NoError(t, p.Set("1"))
	assert.Equal(t, 1, n)
	assert.Equal(t, "1", p.String())

	require.NoError(t, p.Set(strconv.Itoa(runtime.NumCPU())))
	assert.Equal(t, runtime.NumCPU(), n)

	assert.ErrorContains(t, p.Set("0"), "invalid thread count")
	assert.ErrorContains(t, p.Set(strconv.Itoa(runtime.NumCPU()+1)), "invalid thread count")
	assert.ErrorContains(t, p.Set("many"), "parse thread count")
	assert.Equal(t, runtime.NumCPU(), n)
}

func TestArgsParser(t *testing.T) {
	t.Parallel()

	var args []string
	p := &argsParser{&args}
	require.NoError(t, p.Set(`-8 --verify --tag="COMMENT=two words"`))
	assert.Equal(t, []string{"-8", "--verify", "--tag=COMMENT=two words"}, args)
	assert.Equal(t, `-8 --verify "--tag=COMMENT=two words"`, p.String())

	assert.Error(t, p.Set("   "))
	assert.Error(t, p.Set(`"unterminated`))
}

func TestNotificationsParser(t *testing.T) {
	t.Parallel()

	var n notifications.Notifications
	p := &notificationsParser{&n}
	require.NoError(t, p.Set("complete,errors generic://example.com/hook"))
	assert.Contains(t, p.String(), "complete: generic://example.com/...")
	assert.Contains(t, p.String(), "errors: generic://example.com/...")

	assert.Error(t, p.Set("generic://example.com/hook"))
	assert.ErrorIs(t, p.Set("nope generic://example.com/hook"), notifications.ErrUnknownEvent)
}

func TestZeroValueParsers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", (&threadsParser{}).String())
	assert.Equal(t, "", (&argsParser{}).String())
	assert.Equal(t, "", (&notificationsParser{}).String())
}
