package postprocess

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"
)

// CLIPar2 shells out to the system par2 binary, grounded on the
// teacher's internal/repair.CLIPar2 but made context-aware (callers
// bound verify/repair with the §4.5 1h/2h timeouts) and able to tell a
// volume-only set (no main .par2 recovery packet) apart from a real
// verify failure.
type CLIPar2 struct {
	BinaryPath string
}

func NewCLIPar2() *CLIPar2 {
	return &CLIPar2{BinaryPath: "par2"}
}

func (c *CLIPar2) Verify(ctx context.Context, path string) (ok bool, skip bool, err error) {
	cmd := exec.CommandContext(ctx, c.BinaryPath, "v", "-q", path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	runErr := cmd.Run()
	if runErr == nil {
		return true, false, nil
	}

	if strings.Contains(stderr.String(), "main packet not found") {
		return false, true, nil
	}

	if exitErr, ok := runErr.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
		return false, false, nil // damaged but repairable
	}
	return false, false, runErr
}

func (c *CLIPar2) Repair(ctx context.Context, path string) error {
	cmd := exec.CommandContext(ctx, c.BinaryPath, "r", "-q", path)
	return cmd.Run()
}

// findPar2Files returns every *.par2 file (main and volume) in dir.
func findPar2Files(dir string) ([]string, error) {
	return findByExt(dir, ".par2")
}

// pickMainPar2 prefers the shortest filename, which is almost always
// the main recovery set (foo.par2) over a volume (foo.vol03+07.par2).
func pickMainPar2(paths []string) string {
	main := paths[0]
	for _, p := range paths[1:] {
		if len(filepath.Base(p)) < len(filepath.Base(main)) {
			main = p
		}
	}
	return main
}
