package worker

import (
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"mrcluster/internal/protocol"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestWorker(t *testing.T) *Worker {
	t.Helper()
	return &Worker{
		self:  protocol.Address{Host: "127.0.0.1", Port: 7000},
		clock: clock.WallClock,
		log:   testLogger(),
	}
}

// fakeManager stands in for the Manager's TCP listener: it accepts one
// connection, decodes the message, and makes it available to the test.
type fakeManager struct {
	ln       *net.TCPListener
	addr     protocol.Address
	received chan protocol.Message
}

func newFakeManager(t *testing.T) *fakeManager {
	t.Helper()
	ln, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	fm := &fakeManager{
		ln:       ln,
		addr:     protocol.Address{Host: "127.0.0.1", Port: ln.Addr().(*net.TCPAddr).Port},
		received: make(chan protocol.Message, 8),
	}
	go fm.serve()
	t.Cleanup(func() { ln.Close() })
	return fm
}

func (fm *fakeManager) serve() {
	for {
		conn, err := fm.ln.Accept()
		if err != nil {
			return
		}
		go func(c net.Conn) {
			defer c.Close()
			msg, err := protocol.Receive(c)
			if err != nil {
				return
			}
			fm.received <- msg
		}(conn)
	}
}

func (fm *fakeManager) waitMessage(t *testing.T) protocol.Message {
	t.Helper()
	select {
	case msg := <-fm.received:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

// writeScript writes an executable shell script standing in for a
// map/reduce executable under test and returns its path.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}
