package manager

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"mrcluster/internal/partition"
	"mrcluster/internal/protocol"
)

// runJobs is the job executor's cooperative loop (spec.md §4.4). It
// owns the lifecycle of the job at the head of the FIFO queue: map-phase
// partitioning, dispatch, reduce-phase partitioning, dispatch, then
// cleanup and dequeue. Only one job executes at a time.
func (m *Manager) runJobs() {
	backoff := executorPollInterval
	for !m.isShutdown() {
		m.mu.Lock()
		job, ok := m.headJob()
		m.mu.Unlock()
		if !ok {
			select {
			case <-m.clock.After(executorPollInterval):
			case <-m.jobEnqueued:
			}
			continue
		}

		m.mu.Lock()
		hasWorkers := len(m.workers) > 0
		m.mu.Unlock()
		if !hasWorkers {
			m.log.WithField("job_id", job.ID).Info("no workers registered, stalling job")
			<-m.clock.After(backoff)
			if backoff < emptyWorkerPoolBackoffCap {
				backoff *= 2
				if backoff > emptyWorkerPoolBackoffCap {
					backoff = emptyWorkerPoolBackoffCap
				}
			}
			continue
		}
		backoff = executorPollInterval

		if err := m.runOneJob(job); err != nil {
			m.log.WithField("job_id", job.ID).WithError(err).Error("job execution failed")
		}
	}
}

// runOneJob drives a single job through its map then reduce phase
// (spec.md §4.4 steps 3-9).
func (m *Manager) runOneJob(job *Job) error {
	tmpDir, err := m.createSharedDir(job.ID)
	if err != nil {
		return xerrors.Errorf("manager: create shared dir: %w", err)
	}
	m.log.WithFields(logrus.Fields{"job_id": job.ID, "tmpdir": tmpDir}).Info("created shared temp directory")
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			m.log.WithField("tmpdir", tmpDir).WithError(err).Warn("failed to remove shared temp directory")
		} else {
			m.log.WithField("tmpdir", tmpDir).Info("cleaned up shared temp directory")
		}
	}()

	inputFiles, err := listSortedDir(job.InputDirectory)
	if err != nil {
		return xerrors.Errorf("manager: list input directory: %w", err)
	}
	mapTasks := buildTasks(MapPhase, partition.RoundRobinSplit(inputFiles, job.NumMappers))
	m.resetPhaseQueue(mapTasks)
	m.assignPhase(job, MapPhase, tmpDir, job.MapperExecutable, job.NumReducers)
	if m.isShutdown() {
		return nil
	}

	intermediateFiles, err := listSortedDir(tmpDir)
	if err != nil {
		return xerrors.Errorf("manager: list shared temp directory: %w", err)
	}
	buckets, err := partition.GroupByPartition(intermediateFiles, job.NumReducers)
	if err != nil {
		return xerrors.Errorf("manager: group intermediate files: %w", err)
	}
	reduceTasks := buildTasks(ReducePhase, buckets)
	m.resetPhaseQueue(reduceTasks)
	m.assignPhase(job, ReducePhase, job.OutputDirectory, job.ReducerExecutable, 0)
	if m.isShutdown() {
		return nil
	}

	m.mu.Lock()
	m.dequeueHeadJob()
	m.mu.Unlock()
	m.log.WithField("job_id", job.ID).Info("job completed")
	return nil
}

// resetPhaseQueue installs a fresh phase task queue and clears the
// assigned-tasks map, as spec.md §4.4 steps 6/8 require at the start of
// each phase. Callers must not hold m.mu.
func (m *Manager) resetPhaseQueue(tasks []*Task) {
	m.mu.Lock()
	m.tasks = tasks
	m.assigned = make(map[protocol.Address]*Task)
	m.mu.Unlock()
}

func listSortedDir(dir string) ([]string, error) {
	entries, err := filepath.Glob(filepath.Join(dir, "*"))
	if err != nil {
		return nil, err
	}
	return partition.SortedNames(entries), nil
}

func buildTasks(phase Phase, buckets [][]string) []*Task {
	tasks := make([]*Task, len(buckets))
	for i, files := range buckets {
		tasks[i] = &Task{Phase: phase, ID: i, InputPaths: files}
	}
	return tasks
}

// createSharedDir materializes the per-job temporary directory named
// per spec.md §4.4 step 4, using a uuid suffix rather than Go's built-in
// random MkdirTemp suffix so the name format matches the original
// implementation's mapreduce-shared-job<NNNNN>-<suffix> layout exactly.
func (m *Manager) createSharedDir(jobID int) (string, error) {
	base := m.sharedDir
	if base == "" {
		base = os.TempDir()
	}
	name := fmt.Sprintf("mapreduce-shared-job%05d-%s", jobID, uuid.New().String())
	path := filepath.Join(base, name)
	if err := os.MkdirAll(path, 0o777); err != nil {
		return "", err
	}
	return path, nil
}
