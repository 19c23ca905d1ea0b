// Package manager implements the MapReduce cluster's control plane: a
// singleton that accepts job submissions, tracks worker liveness, and
// dispatches map/reduce tasks to ready workers.
package manager

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"mrcluster/internal/protocol"
)

// heartbeatMissLimit is the number of consecutive missed ageing ticks
// before a worker is declared dead (spec.md §3: "reaches 5").
const heartbeatMissLimit = 5

// ageingInterval is how often the miss counters advance (spec.md §4.3).
const ageingInterval = 2 * time.Second

// executorPollInterval is the job executor's idle-queue retry interval
// (spec.md §4.4 step 1, §5).
const executorPollInterval = 100 * time.Millisecond

// assignPollInterval is the assignment loop's retry interval when no
// ready worker is available (spec.md §4.5).
const assignPollInterval = 100 * time.Millisecond

// emptyWorkerPoolBackoffCap bounds the executor's retry delay when a job
// stalls because no worker has registered yet (spec.md §9, Open Question
// resolved in SPEC_FULL.md: the source's unbounded tick is capped here).
const emptyWorkerPoolBackoffCap = 2 * time.Second

// Config configures a Manager.
type Config struct {
	Host      string
	Port      int
	SharedDir string // overrides the OS default temp-dir location when non-empty
	Logger    *logrus.Entry
	Clock     clock.Clock
}

func (c *Config) setDefaults() error {
	var err error
	if c.Host == "" {
		err = multierror.Append(err, xerrors.Errorf("manager: host must be set"))
	}
	if c.Port == 0 {
		err = multierror.Append(err, xerrors.Errorf("manager: port must be set"))
	}
	if c.Logger == nil {
		c.Logger = logrus.NewEntry(logrus.New())
	}
	if c.Clock == nil {
		c.Clock = clock.WallClock
	}
	return err
}

// Manager is the MapReduce control plane. All of its mutable state is
// guarded by mu; the four concurrent activities described in spec.md §5
// (TCP listener, UDP heartbeat listener, ageing ticker, job executor)
// hold a reference to one Manager instance and coordinate through it.
type Manager struct {
	mu sync.Mutex

	address   protocol.Address
	sharedDir string
	clock     clock.Clock
	log       *logrus.Entry

	shutdown bool

	workers     []*workerRecord
	workerIndex map[protocol.Address]int

	jobQueue  []*Job
	nextJobID int

	tasks    []*Task
	assigned map[protocol.Address]*Task

	jobEnqueued chan struct{}

	tcpListener *net.TCPListener
	udpConn     *net.UDPConn
}

// New constructs a Manager from cfg. It does not start listening; call
// Run for that.
func New(cfg Config) (*Manager, error) {
	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}
	return &Manager{
		address:     protocol.Address{Host: cfg.Host, Port: cfg.Port},
		sharedDir:   cfg.SharedDir,
		clock:       cfg.Clock,
		log:         cfg.Logger,
		workerIndex: make(map[protocol.Address]int),
		assigned:    make(map[protocol.Address]*Task),
		jobEnqueued: make(chan struct{}, 1),
	}, nil
}

// Run binds the TCP and UDP sockets and blocks until the Manager is
// told to shut down, either via a protocol Shutdown message or a call
// to Stop.
func (m *Manager) Run() error {
	tcpAddr := &net.TCPAddr{IP: net.ParseIP(m.address.Host), Port: m.address.Port}
	if tcpAddr.IP == nil {
		resolved, err := net.ResolveIPAddr("ip", m.address.Host)
		if err != nil {
			return xerrors.Errorf("manager: resolve host %s: %w", m.address.Host, err)
		}
		tcpAddr.IP = resolved.IP
	}
	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return xerrors.Errorf("manager: listen tcp %s: %w", m.address, err)
	}
	m.tcpListener = ln
	defer ln.Close()

	udpConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: tcpAddr.IP, Port: m.address.Port})
	if err != nil {
		return xerrors.Errorf("manager: listen udp %s: %w", m.address, err)
	}
	m.udpConn = udpConn
	defer udpConn.Close()

	m.log.WithFields(logrus.Fields{"host": m.address.Host, "port": m.address.Port}).Info("starting manager")

	var wg sync.WaitGroup
	wg.Add(4)
	go func() { defer wg.Done(); m.serveTCP() }()
	go func() { defer wg.Done(); m.serveHeartbeats() }()
	go func() { defer wg.Done(); m.ageWorkers() }()
	go func() { defer wg.Done(); m.runJobs() }()
	wg.Wait()

	m.log.Info("manager shutting down")
	return nil
}

// Stop sets the shutdown flag directly, for callers (e.g. a SIGINT
// handler) outside the protocol's own shutdown message.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdown = true
}

func (m *Manager) isShutdown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown
}

func (m *Manager) logError(err error) {
	m.log.WithError(err).Debug("discarding malformed control message")
}

func (m *Manager) String() string {
	return fmt.Sprintf("manager(%s)", m.address)
}
