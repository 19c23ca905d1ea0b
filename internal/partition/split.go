// Package partition holds the helpers shared by the Manager's phase
// partitioning and the Worker's map/reduce execution: round-robin input
// dealing, MD5-based key routing, external sort, and k-way merge.
package partition

import (
	"crypto/md5"
	"encoding/hex"
	"math/big"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// RoundRobinSplit deals sorted into buckets many lists, file at position i
// landing in bucket i mod buckets. It always returns exactly buckets
// lists, even when buckets exceeds len(sorted) -- the trailing lists are
// simply empty, which spec.md §4.4 step 3 calls out as legal.
func RoundRobinSplit(sorted []string, buckets int) [][]string {
	out := make([][]string, buckets)
	for i, name := range sorted {
		b := i % buckets
		out[b] = append(out[b], name)
	}
	return out
}

// SortedNames returns names sorted lexicographically; partitioning must
// be deterministic across runs per spec.md §4.5.
func SortedNames(names []string) []string {
	out := append([]string(nil), names...)
	sort.Strings(out)
	return out
}

// partitionSuffixLen is the width of the zero-padded partition index
// suffix every intermediate filename carries (e.g. maptask00000-part00003).
const partitionSuffixLen = 5

// PartitionIndexOf extracts the partition index encoded in an
// intermediate filename's final partitionSuffixLen characters, per
// spec.md §6's on-disk format.
func PartitionIndexOf(path string) (int, error) {
	base := filepath.Base(path)
	if len(base) < partitionSuffixLen {
		return 0, xerrors.Errorf("partition: filename %q too short to carry a partition index", base)
	}
	suffix := base[len(base)-partitionSuffixLen:]
	idx, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, xerrors.Errorf("partition: filename %q has a non-numeric partition suffix: %w", base, err)
	}
	return idx, nil
}

// GroupByPartition groups sorted intermediate filenames into numPartitions
// buckets by the partition index embedded in each filename (spec.md §4.4
// step 7). Files whose index falls outside [0, numPartitions) are an
// error: the Manager controls the filename format, so this should never
// happen outside a corrupted shared directory.
func GroupByPartition(sorted []string, numPartitions int) ([][]string, error) {
	out := make([][]string, numPartitions)
	for _, name := range sorted {
		idx, err := PartitionIndexOf(name)
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= numPartitions {
			return nil, xerrors.Errorf("partition: file %q has out-of-range partition index %d (want [0,%d))", name, idx, numPartitions)
		}
		out[idx] = append(out[idx], name)
	}
	return out, nil
}

// KeyOf returns the substring of a map-output record up to (but not
// including) its first tab character -- the partitioning key per
// spec.md §4.7.
func KeyOf(line string) string {
	if i := strings.IndexByte(line, '\t'); i >= 0 {
		return line[:i]
	}
	return line
}

// HashPartition computes the MD5-mod-numPartitions partition index for a
// map-output line, per spec.md §4.7. MD5 is specified (not just "any
// stable hash") so every worker, including one retrying a reassigned
// task, computes an identical index for an identical key.
func HashPartition(line string, numPartitions int) int {
	if numPartitions == 1 {
		return 0
	}
	sum := md5.Sum([]byte(KeyOf(line)))
	hexDigest := hex.EncodeToString(sum[:])
	n := new(big.Int)
	n.SetString(hexDigest, 16)
	mod := new(big.Int).Mod(n, big.NewInt(int64(numPartitions)))
	return int(mod.Int64())
}
