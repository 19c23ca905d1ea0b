package partition

import (
	"bufio"
	"container/heap"
	"os"

	"golang.org/x/xerrors"
)

// source is one open input file feeding the merge, plus the line it has
// buffered for comparison.
type source struct {
	index int
	file  *os.File
	sc    *bufio.Scanner
	line  string
	ok    bool
}

func (s *source) advance() {
	s.ok = s.sc.Scan()
	if s.ok {
		s.line = s.sc.Text()
	}
}

// mergeHeap orders live sources by their buffered line, breaking ties by
// original input order so the merge is stable, as spec.md §4.8 requires.
type mergeHeap []*source

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	if h[i].line != h[j].line {
		return h[i].line < h[j].line
	}
	return h[i].index < h[j].index
}
func (h mergeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any)        { *h = append(*h, x.(*source)) }
func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Merger performs a k-way merge over a set of already-sorted input
// files, producing one lexicographically sorted line stream. Reduce
// tasks feed its output to the reduce executable's stdin one line at a
// time (spec.md §4.8 step 1) rather than materializing the whole merge.
type Merger struct {
	sources []*source
	h       mergeHeap
}

// NewMerger opens every path in paths and prepares the merge. Paths must
// already be individually sorted; Merger does not re-sort them.
func NewMerger(paths []string) (*Merger, error) {
	m := &Merger{}
	for i, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			m.Close()
			return nil, xerrors.Errorf("partition: merge: open %s: %w", p, err)
		}
		s := &source{index: i, file: f, sc: bufio.NewScanner(f)}
		s.sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		s.advance()
		m.sources = append(m.sources, s)
		if s.ok {
			m.h = append(m.h, s)
		}
	}
	heap.Init(&m.h)
	return m, nil
}

// Next returns the next line in merged order, and false once every
// input is exhausted.
func (m *Merger) Next() (string, bool, error) {
	if m.h.Len() == 0 {
		return "", false, nil
	}
	top := m.h[0]
	line := top.line
	top.advance()
	if top.ok {
		heap.Fix(&m.h, 0)
	} else {
		heap.Pop(&m.h)
		if err := top.sc.Err(); err != nil {
			return "", false, xerrors.Errorf("partition: merge: read: %w", err)
		}
	}
	return line, true, nil
}

// Close releases every open input file. Safe to call more than once.
func (m *Merger) Close() error {
	var firstErr error
	for _, s := range m.sources {
		if s.file == nil {
			continue
		}
		if err := s.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.file = nil
	}
	return firstErr
}
