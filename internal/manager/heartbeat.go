package manager

import (
	"github.com/sirupsen/logrus"

	"mrcluster/internal/protocol"
)

// serveHeartbeats runs the UDP heartbeat listener (spec.md §4.3): every
// received heartbeat zeroes the sender's miss counter and revives it
// from Dead to Ready.
func (m *Manager) serveHeartbeats() {
	protocol.ServeUDP(m.udpConn, m.isShutdown, m.handleHeartbeat, m.logError)
}

func (m *Manager) handleHeartbeat(hb protocol.Heartbeat) {
	addr := protocol.Address{Host: hb.WorkerHost, Port: hb.WorkerPort}
	m.mu.Lock()
	m.resetMisses(addr)
	m.mu.Unlock()
}

// ageWorkers is the periodic ageing ticker (spec.md §4.3): every
// ageingInterval it increments every non-dead worker's miss counter and declares
// dead any that reach heartbeatMissLimit, re-enqueueing their in-flight
// task.
func (m *Manager) ageWorkers() {
	for !m.isShutdown() {
		<-m.clock.After(ageingInterval)

		m.mu.Lock()
		reassigned := m.ageAllWorkers()
		for _, t := range reassigned {
			m.log.WithFields(logrus.Fields{"phase": t.Phase.String(), "task_id": t.ID}).Info("worker died, reassigning task")
			m.tasks = append(m.tasks, t)
		}
		m.mu.Unlock()
	}
}
