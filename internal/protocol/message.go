// Package protocol implements the Manager/Worker wire protocol: a small
// set of JSON control messages carried over length-delimited TCP
// connections and best-effort UDP heartbeats.
package protocol

import "fmt"

// MessageType discriminates the wire envelope. Every message carries
// exactly one of these as its "message_type" field.
type MessageType string

const (
	TypeRegister       MessageType = "register"
	TypeRegisterAck    MessageType = "register_ack"
	TypeHeartbeat      MessageType = "heartbeat"
	TypeNewManagerJob  MessageType = "new_manager_job"
	TypeNewMapTask     MessageType = "new_map_task"
	TypeNewReduceTask  MessageType = "new_reduce_task"
	TypeFinished       MessageType = "finished"
	TypeShutdown       MessageType = "shutdown"
)

// Address identifies a worker by the (host, port) pair the spec uses as
// the registry and assigned-tasks map key. It is comparable, so it is
// used directly as a Go map key.
type Address struct {
	Host string
	Port int
}

func (a Address) String() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// Message is the in-memory tagged union for every control-plane message.
// Decoding off the wire always produces one of the concrete types below;
// an unrecognized message_type is a decode error, not a silent pass-through.
type Message interface {
	Type() MessageType
}

// Register is sent Worker->Manager once at worker startup.
type Register struct {
	WorkerHost string
	WorkerPort int
}

func (Register) Type() MessageType { return TypeRegister }

// RegisterAck is sent Manager->Worker in reply to Register.
type RegisterAck struct {
	WorkerHost string
	WorkerPort int
}

func (RegisterAck) Type() MessageType { return TypeRegisterAck }

// Heartbeat is sent Worker->Manager over UDP every 2s.
type Heartbeat struct {
	WorkerHost string
	WorkerPort int
}

func (Heartbeat) Type() MessageType { return TypeHeartbeat }

// NewManagerJob is submitted by a client to enqueue a job.
type NewManagerJob struct {
	InputDirectory    string
	OutputDirectory   string
	MapperExecutable  string
	ReducerExecutable string
	NumMappers        int
	NumReducers       int
}

func (NewManagerJob) Type() MessageType { return TypeNewManagerJob }

// NewMapTask is dispatched Manager->Worker for one map task.
type NewMapTask struct {
	TaskID          int
	InputPaths      []string
	Executable      string
	OutputDirectory string
	NumPartitions   int
	WorkerHost      string
	WorkerPort      int
}

func (NewMapTask) Type() MessageType { return TypeNewMapTask }

// NewReduceTask is dispatched Manager->Worker for one reduce task.
type NewReduceTask struct {
	TaskID          int
	InputPaths      []string
	Executable      string
	OutputDirectory string
	WorkerHost      string
	WorkerPort      int
}

func (NewReduceTask) Type() MessageType { return TypeNewReduceTask }

// Finished is sent Worker->Manager when a task completes.
type Finished struct {
	TaskID     int
	WorkerHost string
	WorkerPort int
}

func (Finished) Type() MessageType { return TypeFinished }

// Shutdown carries no payload beyond its type; sent client->Manager and
// forwarded Manager->every live Worker.
type Shutdown struct{}

func (Shutdown) Type() MessageType { return TypeShutdown }
