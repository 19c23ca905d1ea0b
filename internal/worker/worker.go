// Package worker implements the MapReduce cluster's execution plane: a
// node that registers with the Manager, emits heartbeats, and executes
// at most one map or reduce task at a time.
package worker

import (
	"net"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"mrcluster/internal/protocol"
)

// heartbeatInterval is how often the Worker emits a heartbeat once
// registration is acknowledged (spec.md §4.6).
const heartbeatInterval = 2 * time.Second

// Config configures a Worker.
type Config struct {
	Host        string
	Port        int
	ManagerHost string
	ManagerPort int
	Logger      *logrus.Entry
	Clock       clock.Clock
}

func (c *Config) setDefaults() {
	if c.Logger == nil {
		c.Logger = logrus.NewEntry(logrus.New())
	}
	if c.Clock == nil {
		c.Clock = clock.WallClock
	}
}

// Worker is one execution-plane node. It processes at most one task at
// a time: task messages are handled under taskMu, so a second task waits
// until the first returns; it never pipelines tasks (spec.md §4.6).
type Worker struct {
	mu     sync.Mutex
	taskMu sync.Mutex

	self    protocol.Address
	manager protocol.Address
	clock   clock.Clock
	log     *logrus.Entry

	shutdown bool

	listener *net.TCPListener
	udpConn  *net.UDPConn
}

// New constructs a Worker from cfg. It does not connect or listen yet;
// call Run for that.
func New(cfg Config) *Worker {
	cfg.setDefaults()
	return &Worker{
		self:    protocol.Address{Host: cfg.Host, Port: cfg.Port},
		manager: protocol.Address{Host: cfg.ManagerHost, Port: cfg.ManagerPort},
		clock:   cfg.Clock,
		log:     cfg.Logger,
	}
}

// Run binds the Worker's TCP listener and UDP heartbeat socket, sends
// its register message, then serves incoming task messages until told
// to shut down.
func (w *Worker) Run() error {
	tcpAddr := &net.TCPAddr{IP: net.ParseIP(w.self.Host), Port: w.self.Port}
	if tcpAddr.IP == nil {
		resolved, err := net.ResolveIPAddr("ip", w.self.Host)
		if err != nil {
			return xerrors.Errorf("worker: resolve host %s: %w", w.self.Host, err)
		}
		tcpAddr.IP = resolved.IP
	}
	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return xerrors.Errorf("worker: listen tcp %s: %w", w.self, err)
	}
	w.listener = ln
	defer ln.Close()

	udpConn, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.ParseIP(w.manager.Host), Port: w.manager.Port})
	if err != nil {
		return xerrors.Errorf("worker: dial manager udp %s: %w", w.manager, err)
	}
	w.udpConn = udpConn
	defer udpConn.Close()

	w.log.WithFields(logrus.Fields{"host": w.self.Host, "port": w.self.Port, "manager": w.manager}).Info("starting worker")

	if err := w.register(); err != nil {
		w.log.WithError(err).Warn("register delivery failed")
	}

	protocol.ServeTCP(w.listener, w.isShutdown, w.handleMessage, w.logError)
	w.log.Info("worker shutting down")
	return nil
}

// Stop sets the shutdown flag directly.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.shutdown = true
}

func (w *Worker) isShutdown() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.shutdown
}

func (w *Worker) logError(err error) {
	w.log.WithError(err).Debug("discarding malformed control message")
}

func (w *Worker) register() error {
	return protocol.Send(w.manager, protocol.Register{WorkerHost: w.self.Host, WorkerPort: w.self.Port})
}

func (w *Worker) handleMessage(msg protocol.Message) {
	switch v := msg.(type) {
	case protocol.RegisterAck:
		go w.emitHeartbeats()
	case protocol.NewMapTask:
		w.taskMu.Lock()
		defer w.taskMu.Unlock()
		w.runMapTask(v)
	case protocol.NewReduceTask:
		w.taskMu.Lock()
		defer w.taskMu.Unlock()
		w.runReduceTask(v)
	case protocol.Shutdown:
		w.Stop()
	default:
		w.log.WithField("type", msg.Type()).Warn("unexpected message on worker TCP listener")
	}
}

func (w *Worker) sendFinished(taskID int) {
	msg := protocol.Finished{TaskID: taskID, WorkerHost: w.self.Host, WorkerPort: w.self.Port}
	if err := protocol.Send(w.manager, msg); err != nil {
		w.log.WithField("task_id", taskID).WithError(err).Debug("finished delivery failed, ignoring")
	}
}
