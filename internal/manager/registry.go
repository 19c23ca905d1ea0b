package manager

import "mrcluster/internal/protocol"

// WorkerState is one of the three states a registered worker can be in
// (spec.md §3).
type WorkerState int

const (
	Ready WorkerState = iota
	Busy
	Dead
)

func (s WorkerState) String() string {
	switch s {
	case Ready:
		return "ready"
	case Busy:
		return "busy"
	case Dead:
		return "dead"
	default:
		return "unknown"
	}
}

// workerRecord is the Manager's view of one registered worker.
type workerRecord struct {
	addr   protocol.Address
	state  WorkerState
	misses int
}

// registerWorker implements spec.md §4.2's register handling: a
// previously-known address is revived to Ready with its miss counter
// zeroed; an unknown address is appended in registration order, which is
// the tie-break the assignment loop (spec.md §4.5) scans in. Callers
// must hold m.mu.
func (m *Manager) registerWorker(addr protocol.Address) {
	if i, ok := m.workerIndex[addr]; ok {
		w := m.workers[i]
		w.state = Ready
		w.misses = 0
		return
	}
	m.workerIndex[addr] = len(m.workers)
	m.workers = append(m.workers, &workerRecord{addr: addr, state: Ready})
}

// findReadyWorker returns the first Ready worker in registration order,
// as spec.md §4.5's tie-breaking rule requires. Callers must hold m.mu.
func (m *Manager) findReadyWorker() (*workerRecord, bool) {
	for _, w := range m.workers {
		if w.state == Ready {
			return w, true
		}
	}
	return nil, false
}

// markDead transitions a worker to Dead. If it was Busy, its assigned
// task is popped and returned so the caller can re-enqueue it (spec.md
// §4.3). Callers must hold m.mu.
func (m *Manager) markDead(addr protocol.Address) *Task {
	i, ok := m.workerIndex[addr]
	if !ok {
		return nil
	}
	w := m.workers[i]
	var reassigned *Task
	if w.state == Busy {
		reassigned = m.assigned[addr]
		delete(m.assigned, addr)
	}
	w.state = Dead
	return reassigned
}

// markBusy transitions a Ready worker to Busy. Callers must hold m.mu.
func (m *Manager) markBusy(addr protocol.Address) {
	if i, ok := m.workerIndex[addr]; ok {
		m.workers[i].state = Busy
	}
}

// markReady transitions a worker back to Ready on finished; heartbeat
// revival goes through resetMisses instead. Callers must hold m.mu.
func (m *Manager) markReady(addr protocol.Address) {
	if i, ok := m.workerIndex[addr]; ok {
		m.workers[i].state = Ready
	}
}

// resetMisses zeroes a worker's missed-heartbeat counter and revives it
// from Dead to Ready if it was heartbeating again (spec.md §4.3).
// Callers must hold m.mu.
func (m *Manager) resetMisses(addr protocol.Address) {
	i, ok := m.workerIndex[addr]
	if !ok {
		return
	}
	w := m.workers[i]
	w.misses = 0
	if w.state == Dead {
		w.state = Ready
	}
}

// ageAllWorkers increments every non-dead worker's miss counter by one
// and declares any that reach heartbeatMissLimit dead, returning the
// tasks reassigned as a result. Callers must hold m.mu.
func (m *Manager) ageAllWorkers() []*Task {
	var reassigned []*Task
	for _, w := range m.workers {
		if w.state == Dead {
			continue
		}
		w.misses++
		if w.misses >= heartbeatMissLimit {
			if w.state == Busy {
				if t, ok := m.assigned[w.addr]; ok {
					reassigned = append(reassigned, t)
					delete(m.assigned, w.addr)
				}
			}
			w.state = Dead
		}
	}
	return reassigned
}

// liveWorkers returns the addresses of every worker not in the Dead
// state, in registration order. Callers must hold m.mu.
func (m *Manager) liveWorkers() []protocol.Address {
	var out []protocol.Address
	for _, w := range m.workers {
		if w.state != Dead {
			out = append(out, w.addr)
		}
	}
	return out
}
