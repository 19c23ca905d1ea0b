package partition

import (
	"os"
	"os/exec"

	"golang.org/x/xerrors"
)

// ExternalSort sorts srcPath's lines into lexicographic byte order,
// writing the result to dstPath. It shells out to the system `sort`
// utility rather than sorting in-process, matching the original
// implementation's subprocess.run(["sort", "-o", dst, src]) -- spec.md
// §4.7 step 5 literally calls this step "externally sort". The utility
// runs with LC_ALL=C so its order is plain byte order, the same order
// Merger compares lines in.
func ExternalSort(srcPath, dstPath string) error {
	cmd := exec.Command("sort", "-o", dstPath, srcPath)
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	if out, err := cmd.CombinedOutput(); err != nil {
		return xerrors.Errorf("partition: external sort %s -> %s: %w (output: %s)", srcPath, dstPath, err, out)
	}
	return nil
}
