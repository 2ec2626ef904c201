//go:build linux || darwin

package realtime

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// niceness is the target nice value. Lowering it below 0 needs
// CAP_SYS_NICE (or root) on Linux.
const niceness = -10

func boost() error {
	if err := unix.Setpriority(unix.PRIO_PROCESS, 0, niceness); err != nil {
		return fmt.Errorf("realtime: setpriority %d: %w", niceness, err)
	}
	return nil
}
