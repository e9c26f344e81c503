package cargo

import (
	"fmt"
	"os/exec"
	"runtime"
)

// ToolchainNotFoundError reports a missing Rust toolchain along with
// platform-specific installation guidance.
type ToolchainNotFoundError struct {
	Executable string
}

func (e *ToolchainNotFoundError) Error() string {
	guidance := "You can install the toolchain like this:\n$ curl https://sh.rustup.rs | sh"
	if runtime.GOOS == "windows" {
		guidance = "To install the toolchain, visit " +
			"https://forge.rust-lang.org/infra/other-installation-methods.html#other-ways-to-install-rustup"
	}

	return fmt.Sprintf(
		"could not find the Rust toolchain installation (%s). Make sure it is installed and "+
			"the PATH environment variable is set correctly.\n\n%s", e.Executable, guidance)
}

// Require resolves an executable on PATH or fails with a
// ToolchainNotFoundError.
func Require(executable string) (string, error) {
	path, err := exec.LookPath(executable)
	if err != nil {
		return "", &ToolchainNotFoundError{Executable: executable}
	}

	return path, nil
}
