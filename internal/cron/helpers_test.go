package cron

import (
	"context"
	"sync"
	"time"

	"github.com/aatumaykin/habitflow/internal/logger"
)

// testLogger creates a logger that discards output.
func testLogger() *logger.Logger {
	log, err := logger.New(logger.Config{
		Level:  "debug",
		Format: "text",
		Output: "discard",
	})
	if err != nil {
		panic(err)
	}
	return log
}

// testLocation is a fixed zone so tests do not depend on tzdata.
var testLocation = time.FixedZone("UTC+0630", 6*3600+30*60)

func newTestEngine() *Engine {
	return NewEngine(testLocation, testLogger())
}

func noopAction(context.Context) error { return nil }

type recordingObserver struct {
	mu    sync.Mutex
	armed []int
	fired []Key
}

func (o *recordingObserver) ArmedJobs(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.armed = append(o.armed, n)
}

func (o *recordingObserver) JobFired(key Key) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fired = append(o.fired, key)
}

func (o *recordingObserver) lastArmed() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.armed) == 0 {
		return -1
	}
	return o.armed[len(o.armed)-1]
}
