package worker

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"mrcluster/internal/partition"
	"mrcluster/internal/protocol"
)

const maxLineBuffer = 16 * 1024 * 1024

// runMapTask implements spec.md §4.7. handleMessage calls it while
// holding taskMu, so the Worker never runs two tasks at once.
func (w *Worker) runMapTask(task protocol.NewMapTask) {
	log := w.log.WithField("task_id", task.TaskID)

	tmpDir, err := os.MkdirTemp("", fmt.Sprintf("mapreduce-local-task%05d-*", task.TaskID))
	if err != nil {
		log.WithError(err).Error("failed to create local temp directory")
		return
	}
	defer os.RemoveAll(tmpDir)
	log.WithField("tmpdir", tmpDir).Debug("created local temp directory")

	localPaths := make([]string, task.NumPartitions)
	files := make([]*os.File, task.NumPartitions)
	for p := 0; p < task.NumPartitions; p++ {
		localPaths[p] = filepath.Join(tmpDir, partitionFileName(task.TaskID, p))
		f, err := os.OpenFile(localPaths[p], os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			log.WithError(err).Error("failed to open partition file")
			closeAll(files[:p])
			return
		}
		files[p] = f
	}

	ok := w.runMapInputs(log, task, files)
	closeAll(files)
	if !ok {
		return
	}

	for p := 0; p < task.NumPartitions; p++ {
		dst := filepath.Join(task.OutputDirectory, partitionFileName(task.TaskID, p))
		if err := partition.ExternalSort(localPaths[p], dst); err != nil {
			log.WithError(err).Error("failed to sort partition file")
			return
		}
	}

	w.sendFinished(task.TaskID)
	log.Info("map task finished")
}

// runMapInputs streams each input file through the map executable and
// fans its output lines into the open partition files. It returns false
// (without sending finished) if the executable itself fails, per the
// nonzero-exit handling resolved in SPEC_FULL.md.
func (w *Worker) runMapInputs(log *logrus.Entry, task protocol.NewMapTask, files []*os.File) bool {
	for _, inputPath := range task.InputPaths {
		if err := w.runOneMapInput(task, inputPath, files); err != nil {
			log.WithField("input", inputPath).WithError(err).Error("map executable failed")
			return false
		}
	}
	return true
}

func (w *Worker) runOneMapInput(task protocol.NewMapTask, inputPath string, files []*os.File) error {
	in, err := os.Open(inputPath)
	if err != nil {
		return err
	}
	defer in.Close()

	cmd := exec.Command(task.Executable)
	cmd.Stdin = in
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBuffer)
	for sc.Scan() {
		line := sc.Bytes()
		p := partition.HashPartition(string(line), task.NumPartitions)
		if _, err := files[p].Write(append(append([]byte(nil), line...), '\n')); err != nil {
			_ = cmd.Wait()
			return err
		}
	}
	if err := sc.Err(); err != nil {
		_ = cmd.Wait()
		return err
	}
	return cmd.Wait()
}

func partitionFileName(taskID, partitionIndex int) string {
	return fmt.Sprintf("maptask%05d-part%05d", taskID, partitionIndex)
}

func closeAll(files []*os.File) {
	for _, f := range files {
		if f != nil {
			_ = f.Close()
		}
	}
}
