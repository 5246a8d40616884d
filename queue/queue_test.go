package queue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPushPopOrder(t *testing.T) {
	q := New[int](3)
	require.NoError(t, q.Push(1))
	require.NoError(t, q.Push(2))
	require.Equal(t, 2, q.Len())

	v, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, 1, v)

	v, ok = q.Pop()
	require.True(t, ok)
	require.Equal(t, 2, v)

	_, ok = q.Pop()
	require.False(t, ok)
}

func TestPushFullDropsNewest(t *testing.T) {
	q := New[int](2)
	require.NoError(t, q.Push(1))
	require.NoError(t, q.Push(2))
	err := q.Push(3)
	require.Error(t, err)
	require.Equal(t, 2, q.Len())

	v, _ := q.Pop()
	require.Equal(t, 1, v)
	v, _ = q.Pop()
	require.Equal(t, 2, v)
}

func TestCap(t *testing.T) {
	q := New[string](5)
	require.Equal(t, 5, q.Cap())
}
