package worker

import (
	"os"
	"path/filepath"
	"testing"

	"mrcluster/internal/protocol"
)

func TestRunReduceTaskMergesAndWritesOutput(t *testing.T) {
	dir := t.TempDir()
	part1 := filepath.Join(dir, "maptask00000-part00000")
	part2 := filepath.Join(dir, "maptask00001-part00000")
	if err := os.WriteFile(part1, []byte("a\t1\nc\t3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(part2, []byte("b\t2\nd\t4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	outDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatal(err)
	}
	script := writeScript(t, dir, "identity_reduce.sh", "cat\n")

	w := newTestWorker(t)
	mgr := newFakeManager(t)
	w.manager = mgr.addr

	task := protocol.NewReduceTask{
		TaskID:          3,
		InputPaths:      []string{part1, part2},
		Executable:      script,
		OutputDirectory: outDir,
	}
	w.runReduceTask(task)

	data, err := os.ReadFile(filepath.Join(outDir, "part-00003"))
	if err != nil {
		t.Fatalf("expected output file: %v", err)
	}
	want := "a\t1\nb\t2\nc\t3\nd\t4\n"
	if string(data) != want {
		t.Fatalf("want merged+sorted output %q, got %q", want, string(data))
	}

	msg := mgr.waitMessage(t)
	finished, ok := msg.(protocol.Finished)
	if !ok || finished.TaskID != 3 {
		t.Fatalf("want Finished for task 3, got %+v", msg)
	}
}

func TestRunReduceTaskExecutableFailureSendsNoFinished(t *testing.T) {
	dir := t.TempDir()
	part1 := filepath.Join(dir, "maptask00000-part00000")
	if err := os.WriteFile(part1, []byte("a\t1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	outDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatal(err)
	}
	script := writeScript(t, dir, "failing_reduce.sh", "exit 1\n")

	w := newTestWorker(t)
	mgr := newFakeManager(t)
	w.manager = mgr.addr

	task := protocol.NewReduceTask{
		TaskID:          9,
		InputPaths:      []string{part1},
		Executable:      script,
		OutputDirectory: outDir,
	}
	w.runReduceTask(task)

	select {
	case msg := <-mgr.received:
		t.Fatalf("want no message sent on executable failure, got %+v", msg)
	default:
	}
	if _, err := os.Stat(filepath.Join(outDir, "part-00009")); !os.IsNotExist(err) {
		t.Fatal("want no output file committed on failure")
	}
}

func TestMoveFileRelocatesAndRemovesSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "subdir", "dst")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := moveFile(src, dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "payload" {
		t.Fatalf("want moved file content %q, got %q err=%v", "payload", data, err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("want source removed after move")
	}
}
