package manager

import (
	"os"

	"github.com/sirupsen/logrus"

	"mrcluster/internal/protocol"
)

// serveTCP runs the Manager's single TCP listener and routes every
// decoded message by its concrete type, matching spec.md §4.2.
func (m *Manager) serveTCP() {
	protocol.ServeTCP(m.tcpListener, m.isShutdown, m.handleMessage, m.logError)
}

func (m *Manager) handleMessage(msg protocol.Message) {
	switch v := msg.(type) {
	case protocol.Register:
		m.handleRegister(v)
	case protocol.NewManagerJob:
		m.handleNewManagerJob(v)
	case protocol.Finished:
		m.handleFinished(v)
	case protocol.Shutdown:
		m.handleShutdown()
	default:
		m.log.WithField("type", msg.Type()).Warn("unexpected message on manager TCP listener")
	}
}

// handleRegister implements spec.md §4.2's register handling: revive or
// append the worker, then ack it on a fresh connection. A refused ack
// connection marks the worker dead immediately.
func (m *Manager) handleRegister(msg protocol.Register) {
	addr := protocol.Address{Host: msg.WorkerHost, Port: msg.WorkerPort}

	m.mu.Lock()
	m.registerWorker(addr)
	m.mu.Unlock()

	ack := protocol.RegisterAck{WorkerHost: msg.WorkerHost, WorkerPort: msg.WorkerPort}
	if err := protocol.Send(addr, ack); err != nil {
		m.log.WithFields(logrus.Fields{"worker": addr}).WithError(err).Warn("register_ack delivery failed, marking worker dead")
		m.mu.Lock()
		m.markDead(addr)
		m.mu.Unlock()
		return
	}
	m.log.WithField("worker", addr).Info("worker registered")
}

// handleNewManagerJob implements spec.md §4.2: reset the output
// directory, assign the next job id, and enqueue.
func (m *Manager) handleNewManagerJob(msg protocol.NewManagerJob) {
	if err := resetDir(msg.OutputDirectory); err != nil {
		m.log.WithError(err).Error("failed to prepare output directory")
		return
	}

	job := &Job{
		InputDirectory:    msg.InputDirectory,
		OutputDirectory:   msg.OutputDirectory,
		MapperExecutable:  msg.MapperExecutable,
		ReducerExecutable: msg.ReducerExecutable,
		NumMappers:        msg.NumMappers,
		NumReducers:       msg.NumReducers,
	}

	m.mu.Lock()
	m.enqueueJob(job)
	id := job.ID
	m.mu.Unlock()

	m.log.WithField("job_id", id).Info("enqueued job")
	select {
	case m.jobEnqueued <- struct{}{}:
	default:
	}
}

// handleFinished implements spec.md §4.2: clear the assignment and
// ready the worker. An unknown or already-cleared worker is silently
// ignored (it may have been declared dead mid-task).
func (m *Manager) handleFinished(msg protocol.Finished) {
	addr := protocol.Address{Host: msg.WorkerHost, Port: msg.WorkerPort}

	m.mu.Lock()
	_, wasAssigned := m.assigned[addr]
	delete(m.assigned, addr)
	if wasAssigned {
		m.markReady(addr)
	}
	m.mu.Unlock()

	if wasAssigned {
		m.log.WithFields(logrus.Fields{"worker": addr, "task_id": msg.TaskID}).Info("task finished")
	}
}

// handleShutdown implements spec.md §4.2: set the shutdown flag and
// forward shutdown to every non-dead worker, swallowing connection
// refusals per worker.
func (m *Manager) handleShutdown() {
	m.mu.Lock()
	m.shutdown = true
	live := m.liveWorkers()
	m.mu.Unlock()

	m.log.Info("shutdown received, forwarding to live workers")
	for _, addr := range live {
		if err := protocol.Send(addr, protocol.Shutdown{}); err != nil {
			m.log.WithField("worker", addr).WithError(err).Debug("shutdown delivery failed, ignoring")
		}
	}
}

func resetDir(path string) error {
	if _, err := os.Stat(path); err == nil {
		if err := os.RemoveAll(path); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(path, 0o777)
}
