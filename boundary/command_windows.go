//go:build windows

package boundary

import "os/exec"

// The default cancellation of exec.CommandContext kills the child.
func prepareCommand(cmd *exec.Cmd) {}
