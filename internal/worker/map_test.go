package worker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mrcluster/internal/protocol"
)

func TestRunMapTaskPartitionsAndSortsOutput(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "input0")
	if err := os.WriteFile(inputPath, []byte("c\t3\na\t1\nb\t2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	outDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatal(err)
	}
	script := writeScript(t, dir, "identity_map.sh", "cat\n")

	w := newTestWorker(t)
	mgr := newFakeManager(t)
	w.manager = mgr.addr

	task := protocol.NewMapTask{
		TaskID:          5,
		InputPaths:      []string{inputPath},
		Executable:      script,
		OutputDirectory: outDir,
		NumPartitions:   1,
		WorkerHost:      w.self.Host,
		WorkerPort:      w.self.Port,
	}
	w.runMapTask(task)

	outPath := filepath.Join(outDir, "maptask00005-part00000")
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("expected output file: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	want := []string{"a\t1", "b\t2", "c\t3"}
	if fmt.Sprint(lines) != fmt.Sprint(want) {
		t.Fatalf("want sorted lines %v, got %v", want, lines)
	}

	msg := mgr.waitMessage(t)
	finished, ok := msg.(protocol.Finished)
	if !ok || finished.TaskID != 5 {
		t.Fatalf("want Finished for task 5, got %+v", msg)
	}
}

func TestRunMapTaskRoutesToMultiplePartitions(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "input0")
	if err := os.WriteFile(inputPath, []byte("alpha\t1\nbeta\t2\ngamma\t3\ndelta\t4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	outDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatal(err)
	}
	script := writeScript(t, dir, "identity_map.sh", "cat\n")

	w := newTestWorker(t)
	w.manager = newFakeManager(t).addr

	task := protocol.NewMapTask{
		TaskID:          1,
		InputPaths:      []string{inputPath},
		Executable:      script,
		OutputDirectory: outDir,
		NumPartitions:   4,
	}
	w.runMapTask(task)

	total := 0
	used := 0
	for p := 0; p < 4; p++ {
		outPath := filepath.Join(outDir, fmt.Sprintf("maptask00001-part%05d", p))
		if data, err := os.ReadFile(outPath); err == nil {
			n := 0
			for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
				if line != "" {
					n++
				}
			}
			total += n
			if n > 0 {
				used++
			}
		}
	}
	if total != 4 {
		t.Fatalf("want 4 records spread across partitions, counted %d", total)
	}
	if used < 2 {
		t.Fatalf("want records routed to more than one partition, got %d non-empty", used)
	}
}

func TestRunMapTaskExecutableFailureSendsNoFinished(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "input0")
	if err := os.WriteFile(inputPath, []byte("a\t1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	outDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatal(err)
	}
	script := writeScript(t, dir, "failing_map.sh", "exit 1\n")

	w := newTestWorker(t)
	mgr := newFakeManager(t)
	w.manager = mgr.addr

	task := protocol.NewMapTask{
		TaskID:          2,
		InputPaths:      []string{inputPath},
		Executable:      script,
		OutputDirectory: outDir,
		NumPartitions:   1,
	}
	w.runMapTask(task)

	select {
	case msg := <-mgr.received:
		t.Fatalf("want no message sent on executable failure, got %+v", msg)
	default:
	}
	if _, err := os.Stat(filepath.Join(outDir, "maptask00002-part00000")); !os.IsNotExist(err) {
		t.Fatal("want no partition output committed on failure")
	}
}
