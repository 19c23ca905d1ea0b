package worker

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"mrcluster/internal/partition"
	"mrcluster/internal/protocol"
)

// runReduceTask implements spec.md §4.8. handleMessage calls it while
// holding taskMu, so the Worker never runs two tasks at once.
func (w *Worker) runReduceTask(task protocol.NewReduceTask) {
	log := w.log.WithField("task_id", task.TaskID)

	merger, err := partition.NewMerger(task.InputPaths)
	if err != nil {
		log.WithError(err).Error("failed to open input files for merge")
		return
	}
	defer merger.Close()

	tmpDir, err := os.MkdirTemp("", fmt.Sprintf("mapreduce-local-task%05d-*", task.TaskID))
	if err != nil {
		log.WithError(err).Error("failed to create local temp directory")
		return
	}
	defer os.RemoveAll(tmpDir)

	fileName := fmt.Sprintf("part-%05d", task.TaskID)
	localPath := filepath.Join(tmpDir, fileName)

	out, err := os.Create(localPath)
	if err != nil {
		log.WithError(err).Error("failed to create local output file")
		return
	}

	if err := runReduceExecutable(task.Executable, merger, out); err != nil {
		out.Close()
		log.WithError(err).Error("reduce executable failed")
		return
	}
	if err := out.Close(); err != nil {
		log.WithError(err).Error("failed to close local output file")
		return
	}

	dst := filepath.Join(task.OutputDirectory, fileName)
	if err := moveFile(localPath, dst); err != nil {
		log.WithError(err).Error("failed to move output file")
		return
	}

	w.sendFinished(task.TaskID)
	log.Info("reduce task finished")
}

// runReduceExecutable pipes the merged, sorted input stream into the
// reduce executable's stdin one line at a time -- matching the original
// implementation's incremental write rather than buffering the whole
// merge upfront -- and captures its stdout into out.
func runReduceExecutable(executable string, merger *partition.Merger, out io.Writer) error {
	cmd := exec.Command(executable)
	cmd.Stdout = out
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	bw := bufio.NewWriter(stdin)
	var writeErr error
	for {
		line, ok, err := merger.Next()
		if err != nil {
			writeErr = err
			break
		}
		if !ok {
			break
		}
		if _, err := bw.WriteString(line); err != nil {
			writeErr = err
			break
		}
		if err := bw.WriteByte('\n'); err != nil {
			writeErr = err
			break
		}
	}
	if writeErr == nil {
		writeErr = bw.Flush()
	}
	_ = stdin.Close()

	waitErr := cmd.Wait()
	if writeErr != nil {
		return writeErr
	}
	return waitErr
}

// moveFile relocates src to dst, falling back to copy-then-remove when
// the two paths live on different filesystems (os.Rename's only failure
// mode for an otherwise-valid move).
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
