package systems

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilworld/engine/engine/resources"
)

func TestJobSystemRejectsBadSizes(t *testing.T) {
	_, err := NewJobSystem(0, 10)
	assert.ErrorIs(t, err, ErrNoWorkers)

	_, err = NewJobSystem(4, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)
}

func TestJobSystemExecutesAllTasks(t *testing.T) {
	js, err := NewJobSystem(4, 16)
	require.NoError(t, err)

	const n = 64
	var mu sync.Mutex
	done := make(map[int]bool, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		i := i
		js.Submit(Task{
			Execute: func() (*resources.MeshResource, error) {
				return nil, nil
			},
			OnComplete: func(*resources.MeshResource, error) {
				mu.Lock()
				done[i] = true
				mu.Unlock()
				wg.Done()
			},
		})
	}
	wg.Wait()
	require.NoError(t, js.Shutdown())

	assert.Len(t, done, n)
}

func TestJobSystemShutdownDrainsQueue(t *testing.T) {
	js, err := NewJobSystem(1, 32)
	require.NoError(t, err)

	var mu sync.Mutex
	ran := 0
	for i := 0; i < 16; i++ {
		js.Submit(Task{
			Execute: func() (*resources.MeshResource, error) { return nil, nil },
			OnComplete: func(*resources.MeshResource, error) {
				mu.Lock()
				ran++
				mu.Unlock()
			},
		})
	}
	require.NoError(t, js.Shutdown())
	assert.Equal(t, 16, ran)
}
