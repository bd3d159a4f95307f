package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestBreaker_PassesThroughResults(t *testing.T) {
	b := New[int](Settings{Name: "test", MaxFailures: 2, OpenTimeout: time.Minute})

	v, err := b.Execute(func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = b.Execute(func() (int, error) { return 0, errBoom })
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, "closed", b.State())
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := New[int](Settings{Name: "test", MaxFailures: 2, OpenTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		_, err := b.Execute(func() (int, error) { return 0, errBoom })
		assert.ErrorIs(t, err, errBoom)
	}
	assert.Equal(t, "open", b.State())

	called := false
	_, err := b.Execute(func() (int, error) {
		called = true
		return 1, nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called, "open breaker must not call through")
}

func TestBreaker_IsSuccessfulKeepsBreakerClosed(t *testing.T) {
	errClient := errors.New("client error")
	b := New[int](Settings{
		Name:         "test",
		MaxFailures:  1,
		OpenTimeout:  time.Minute,
		IsSuccessful: func(err error) bool { return err == nil || errors.Is(err, errClient) },
	})

	for i := 0; i < 3; i++ {
		_, err := b.Execute(func() (int, error) { return 0, errClient })
		assert.ErrorIs(t, err, errClient)
	}
	assert.Equal(t, "closed", b.State())
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	b := New[int](Settings{Name: "test", MaxFailures: 1, OpenTimeout: 20 * time.Millisecond})

	_, _ = b.Execute(func() (int, error) { return 0, errBoom })
	require.Equal(t, "open", b.State())

	require.Eventually(t, func() bool {
		return b.State() == "half-open"
	}, time.Second, 5*time.Millisecond)

	v, err := b.Execute(func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, "closed", b.State())
}
