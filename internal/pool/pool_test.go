package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTasksUnbounded(t *testing.T) {
	tasks := NewTasks(0)
	for i := 0; i < 10; i++ {
		require.NotNil(t, tasks.New())
	}
	assert.Equal(t, 10, tasks.Live())
}

func TestNewTasksCountsPastLimitWithoutRecycling(t *testing.T) {
	tasks := NewTasks(2)

	first := tasks.New()
	second := tasks.New()
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, 2, tasks.Live())

	// Past the limit, New still hands back a usable task (Allocator.New has
	// no error return) but Live must keep counting it, or Free would
	// under-count every task allocated before it.
	third := tasks.New()
	require.NotNil(t, third)
	assert.Equal(t, 3, tasks.Live())

	tasks.Free(first)
	tasks.Free(second)
	tasks.Free(third)
	assert.Equal(t, 0, tasks.Live())
}

func TestFreeIgnoresNilAndNeverGoesNegative(t *testing.T) {
	tasks := NewTasks(0)
	tasks.Free(nil)
	assert.Equal(t, 0, tasks.Live())

	task := tasks.New()
	tasks.Free(task)
	tasks.Free(task)
	assert.Equal(t, 0, tasks.Live())
}
