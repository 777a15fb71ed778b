package task

import (
	"github.com/stretchr/testify/assert"
	"sync/atomic"
	"testing"
	"time"
)

func TestRepeatingTask(t *testing.T) {
	var calls atomic.Int32
	task := NewRepeating(func() {
		calls.Add(1)
	}, 5*time.Millisecond)

	task.Start()
	task.Start()
	assert.Eventually(t, func() bool {
		return calls.Load() >= 2
	}, time.Second, time.Millisecond)

	task.Stop(false)
	stopped := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, calls.Load())

	task.Stop(true)
	assert.Equal(t, stopped, calls.Load(), "stopping a stopped task must not execute it")
}

func TestRepeatingTaskForceExec(t *testing.T) {
	var calls atomic.Int32
	task := NewRepeating(func() {
		calls.Add(1)
	}, time.Hour)

	task.Start()
	task.Stop(true)
	assert.Equal(t, int32(1), calls.Load())
}
