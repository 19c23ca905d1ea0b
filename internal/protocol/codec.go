package protocol

import (
	"encoding/json"

	"golang.org/x/xerrors"
)

// wireEnvelope is the flat JSON shape every message takes on the wire.
// Keeping one flat struct for encode/decode (rather than per-type JSON
// structs) carries the field set spec.md §6 assigns to each message_type;
// unused fields are omitted by omitempty. omitempty also omits a used
// field whose value is zero (task_id 0, an empty input_paths list, a
// zero num_partitions), so such a field is absent from the wire and
// Decode restores it as its zero value.
type wireEnvelope struct {
	MessageType string `json:"message_type"`

	WorkerHost string `json:"worker_host,omitempty"`
	WorkerPort int    `json:"worker_port,omitempty"`

	InputDirectory    string `json:"input_directory,omitempty"`
	OutputDirectory   string `json:"output_directory,omitempty"`
	MapperExecutable  string `json:"mapper_executable,omitempty"`
	ReducerExecutable string `json:"reducer_executable,omitempty"`
	NumMappers        int    `json:"num_mappers,omitempty"`
	NumReducers       int    `json:"num_reducers,omitempty"`

	TaskID        int      `json:"task_id,omitempty"`
	InputPaths    []string `json:"input_paths,omitempty"`
	Executable    string   `json:"executable,omitempty"`
	NumPartitions int      `json:"num_partitions,omitempty"`
}

// Encode converts an in-memory Message into its wire JSON form.
func Encode(msg Message) ([]byte, error) {
	env := wireEnvelope{MessageType: string(msg.Type())}

	switch m := msg.(type) {
	case Register:
		env.WorkerHost, env.WorkerPort = m.WorkerHost, m.WorkerPort
	case RegisterAck:
		env.WorkerHost, env.WorkerPort = m.WorkerHost, m.WorkerPort
	case Heartbeat:
		env.WorkerHost, env.WorkerPort = m.WorkerHost, m.WorkerPort
	case NewManagerJob:
		env.InputDirectory = m.InputDirectory
		env.OutputDirectory = m.OutputDirectory
		env.MapperExecutable = m.MapperExecutable
		env.ReducerExecutable = m.ReducerExecutable
		env.NumMappers = m.NumMappers
		env.NumReducers = m.NumReducers
	case NewMapTask:
		env.TaskID = m.TaskID
		env.InputPaths = m.InputPaths
		env.Executable = m.Executable
		env.OutputDirectory = m.OutputDirectory
		env.NumPartitions = m.NumPartitions
		env.WorkerHost, env.WorkerPort = m.WorkerHost, m.WorkerPort
	case NewReduceTask:
		env.TaskID = m.TaskID
		env.InputPaths = m.InputPaths
		env.Executable = m.Executable
		env.OutputDirectory = m.OutputDirectory
		env.WorkerHost, env.WorkerPort = m.WorkerHost, m.WorkerPort
	case Finished:
		env.TaskID = m.TaskID
		env.WorkerHost, env.WorkerPort = m.WorkerHost, m.WorkerPort
	case Shutdown:
		// no payload
	default:
		return nil, xerrors.Errorf("protocol: encode: unsupported message type %T", msg)
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, xerrors.Errorf("protocol: encode: %w", err)
	}
	return data, nil
}

// Decode parses a wire payload into its tagged in-memory Message. An
// unrecognized message_type, or a payload that fails to parse at all, is
// a decode error: callers are expected to log and discard per spec.md §7,
// never to propagate it into a crash.
func Decode(data []byte) (Message, error) {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, xerrors.Errorf("protocol: decode: %w", err)
	}

	switch MessageType(env.MessageType) {
	case TypeRegister:
		return Register{WorkerHost: env.WorkerHost, WorkerPort: env.WorkerPort}, nil
	case TypeRegisterAck:
		return RegisterAck{WorkerHost: env.WorkerHost, WorkerPort: env.WorkerPort}, nil
	case TypeHeartbeat:
		return Heartbeat{WorkerHost: env.WorkerHost, WorkerPort: env.WorkerPort}, nil
	case TypeNewManagerJob:
		return NewManagerJob{
			InputDirectory:    env.InputDirectory,
			OutputDirectory:   env.OutputDirectory,
			MapperExecutable:  env.MapperExecutable,
			ReducerExecutable: env.ReducerExecutable,
			NumMappers:        env.NumMappers,
			NumReducers:       env.NumReducers,
		}, nil
	case TypeNewMapTask:
		return NewMapTask{
			TaskID:          env.TaskID,
			InputPaths:      env.InputPaths,
			Executable:      env.Executable,
			OutputDirectory: env.OutputDirectory,
			NumPartitions:   env.NumPartitions,
			WorkerHost:      env.WorkerHost,
			WorkerPort:      env.WorkerPort,
		}, nil
	case TypeNewReduceTask:
		return NewReduceTask{
			TaskID:          env.TaskID,
			InputPaths:      env.InputPaths,
			Executable:      env.Executable,
			OutputDirectory: env.OutputDirectory,
			WorkerHost:      env.WorkerHost,
			WorkerPort:      env.WorkerPort,
		}, nil
	case TypeFinished:
		return Finished{TaskID: env.TaskID, WorkerHost: env.WorkerHost, WorkerPort: env.WorkerPort}, nil
	case TypeShutdown:
		return Shutdown{}, nil
	default:
		return nil, xerrors.Errorf("protocol: decode: unknown message_type %q", env.MessageType)
	}
}
