package manager

import (
	"testing"
	"time"

	"github.com/juju/clock/testclock"

	"mrcluster/internal/protocol"
)

func TestHandleHeartbeatResetsMisses(t *testing.T) {
	m := newDispatchTestManager(t)
	addr := protocol.Address{Host: "127.0.0.1", Port: 9001}
	m.registerWorker(addr)
	m.workers[0].misses = 3

	m.handleHeartbeat(protocol.Heartbeat{WorkerHost: addr.Host, WorkerPort: addr.Port})

	if m.workers[0].misses != 0 {
		t.Fatalf("want misses reset to 0, got %d", m.workers[0].misses)
	}
}

func TestAgeWorkersReassignsTaskAfterMissLimit(t *testing.T) {
	m := newDispatchTestManager(t)
	clk := testclock.NewClock(time.Now())
	m.clock = clk

	addr := protocol.Address{Host: "127.0.0.1", Port: 9001}
	m.registerWorker(addr)
	m.markBusy(addr)
	task := &Task{ID: 11, Phase: MapPhase}
	m.assigned[addr] = task

	go m.ageWorkers()

	for i := 0; i < heartbeatMissLimit; i++ {
		if err := clk.WaitAdvance(ageingInterval, 2*time.Second, 1); err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
	}

	deadline := time.After(2 * time.Second)
	for {
		m.mu.Lock()
		state := m.workers[0].state
		n := len(m.tasks)
		m.mu.Unlock()
		if state == Dead && n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for reassignment, state=%v tasks=%d", state, n)
		case <-time.After(10 * time.Millisecond):
		}
	}

	m.Stop()
	_ = clk.WaitAdvance(ageingInterval, 2*time.Second, 1)
}
