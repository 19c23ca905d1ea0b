package worker

import "mrcluster/internal/protocol"

// emitHeartbeats sends one UDP heartbeat datagram every
// heartbeatInterval until shutdown, started once register_ack arrives
// (spec.md §4.6). Datagram loss is tolerated; a failed send is logged
// and the emitter simply tries again on the next tick.
func (w *Worker) emitHeartbeats() {
	msg := protocol.Heartbeat{WorkerHost: w.self.Host, WorkerPort: w.self.Port}
	for !w.isShutdown() {
		if err := protocol.SendHeartbeat(w.udpConn, msg); err != nil {
			w.log.WithError(err).Debug("heartbeat send failed, will retry")
		}
		<-w.clock.After(heartbeatInterval)
	}
}
