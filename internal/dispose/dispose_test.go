package dispose

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuncIsIdempotent(t *testing.T) {
	calls := 0
	d := Func(func() error {
		calls++
		return errors.New("boom")
	})

	assert.EqualError(t, d.Dispose(), "boom")
	assert.NoError(t, d.Dispose())
	assert.Equal(t, 1, calls)
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop().Dispose())
	assert.NoError(t, Nop().Dispose())
}

func TestStoreDisposesInOrderOnce(t *testing.T) {
	var order []int
	s := NewStore()
	for i := 0; i < 3; i++ {
		i := i
		require.NoError(t, s.Add(Func(func() error {
			order = append(order, i)
			return nil
		})))
	}
	require.Equal(t, 3, s.Len())

	require.NoError(t, s.Dispose())
	assert.Equal(t, []int{0, 1, 2}, order)
	assert.True(t, s.IsDisposed())
	assert.Equal(t, 0, s.Len())

	require.NoError(t, s.Dispose())
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestStoreContinuesPastFailures(t *testing.T) {
	ran := 0
	s := NewStore()
	require.NoError(t, s.Add(
		Func(func() error { ran++; return errors.New("first") }),
		Func(func() error { ran++; panic("second") }),
		Func(func() error { ran++; return nil }),
	))

	err := s.Dispose()
	require.Error(t, err)
	assert.Equal(t, 3, ran)

	parts := Errors(err)
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0].Error(), "first")
	assert.Contains(t, parts[1].Error(), "dispose panic: second")
}

func TestStoreAddAfterDispose(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Dispose())

	released := false
	err := s.Add(Func(func() error {
		released = true
		return nil
	}))
	assert.ErrorIs(t, err, ErrDisposed)
	assert.True(t, released)
	assert.Equal(t, 0, s.Len())
}

func TestStoreIgnoresNil(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(nil, Nop()))
	assert.Equal(t, 1, s.Len())
}

func TestErrors(t *testing.T) {
	assert.Nil(t, Errors(nil))
	single := errors.New("x")
	assert.Equal(t, []error{single}, Errors(single))
	a, b := errors.New("a"), errors.New("b")
	assert.Equal(t, []error{a, b}, Errors(errors.Join(a, b)))
}
