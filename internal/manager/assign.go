package manager

import (
	"github.com/sirupsen/logrus"

	"mrcluster/internal/protocol"
)

// assignPhase dispatches every pending task for phase to a ready worker
// and blocks until the phase completes: every task dispatched and every
// finished received (spec.md §4.5). It returns early if shutdown fires.
func (m *Manager) assignPhase(job *Job, phase Phase, outputDir, executable string, numPartitions int) {
	for !m.isShutdown() {
		dispatched := m.tryDispatchOne(phase, outputDir, executable, numPartitions)

		m.mu.Lock()
		done := len(m.tasks) == 0 && len(m.assigned) == 0
		m.mu.Unlock()
		if done {
			return
		}
		if !dispatched {
			<-m.clock.After(assignPollInterval)
		}
	}
}

// tryDispatchOne attempts to dispatch the head task of the current
// phase queue to the first ready worker, scanning workers in
// registration order and retrying against the next ready worker on a
// connection refusal (spec.md §4.5). It reports whether a task was
// successfully dispatched this call.
func (m *Manager) tryDispatchOne(phase Phase, outputDir, executable string, numPartitions int) bool {
	m.mu.Lock()
	if len(m.tasks) == 0 {
		m.mu.Unlock()
		return false
	}
	task := m.tasks[0]
	m.mu.Unlock()

	for {
		m.mu.Lock()
		w, ok := m.findReadyWorker()
		if !ok {
			m.mu.Unlock()
			return false
		}
		addr := w.addr
		m.mu.Unlock()

		msg := buildTaskMessage(task, phase, addr, outputDir, executable, numPartitions)
		if err := protocol.Send(addr, msg); err != nil {
			m.log.WithField("worker", addr).WithError(err).Warn("task dispatch refused, marking worker dead")
			m.mu.Lock()
			m.markDead(addr)
			m.mu.Unlock()
			continue
		}

		m.mu.Lock()
		m.markBusy(addr)
		m.assigned[addr] = task
		m.tasks = m.tasks[1:]
		m.mu.Unlock()

		m.log.WithFields(logrus.Fields{
			"worker": addr.String(), "phase": phase.String(), "task_id": task.ID,
		}).Info("assigned task")
		return true
	}
}

func buildTaskMessage(task *Task, phase Phase, addr protocol.Address, outputDir, executable string, numPartitions int) protocol.Message {
	if phase == MapPhase {
		return protocol.NewMapTask{
			TaskID:          task.ID,
			InputPaths:      task.InputPaths,
			Executable:      executable,
			OutputDirectory: outputDir,
			NumPartitions:   numPartitions,
			WorkerHost:      addr.Host,
			WorkerPort:      addr.Port,
		}
	}
	return protocol.NewReduceTask{
		TaskID:          task.ID,
		InputPaths:      task.InputPaths,
		Executable:      executable,
		OutputDirectory: outputDir,
		WorkerHost:      addr.Host,
		WorkerPort:      addr.Port,
	}
}
