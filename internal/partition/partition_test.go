package partition

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestRoundRobinSplit(t *testing.T) {
	files := []string{"a.txt", "b.txt", "c.txt"}
	got := RoundRobinSplit(files, 5)
	want := [][]string{
		{"a.txt"}, {"b.txt"}, {"c.txt"}, nil, nil,
	}
	if len(got) != len(want) {
		t.Fatalf("got %d buckets, want %d", len(got), len(want))
	}
	for i := range want {
		if !reflect.DeepEqual(got[i], want[i]) {
			t.Errorf("bucket %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestHashPartitionSingleReducer(t *testing.T) {
	if p := HashPartition("foo\t1", 1); p != 0 {
		t.Errorf("single-reducer partition = %d, want 0", p)
	}
}

func TestHashPartitionDeterministic(t *testing.T) {
	a := HashPartition("foo\t1", 4)
	b := HashPartition("foo\t99", 4)
	if a != b {
		t.Errorf("same key, different values: got %d and %d, want equal", a, b)
	}
	if a < 0 || a >= 4 {
		t.Errorf("partition %d out of range [0,4)", a)
	}
}

func TestPartitionIndexOf(t *testing.T) {
	idx, err := PartitionIndexOf("maptask00002-part00003")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx != 3 {
		t.Errorf("got %d, want 3", idx)
	}
}

func TestGroupByPartition(t *testing.T) {
	files := SortedNames([]string{
		"/tmp/x/maptask00001-part00000",
		"/tmp/x/maptask00000-part00000",
		"/tmp/x/maptask00000-part00001",
	})
	groups, err := GroupByPartition(files, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups[0]) != 2 || len(groups[1]) != 1 {
		t.Errorf("got group sizes %d,%d want 2,1", len(groups[0]), len(groups[1]))
	}
}

func TestMergerProducesSortedStream(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, lines ...string) string {
		p := filepath.Join(dir, name)
		content := ""
		for _, l := range lines {
			content += l + "\n"
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
		return p
	}

	a := write("a", "apple\t1", "cherry\t1")
	b := write("b", "banana\t1", "date\t1")

	m, err := NewMerger([]string{a, b})
	if err != nil {
		t.Fatalf("NewMerger: %v", err)
	}
	defer m.Close()

	var got []string
	for {
		line, ok, err := m.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, line)
	}

	want := []string{"apple\t1", "banana\t1", "cherry\t1", "date\t1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
