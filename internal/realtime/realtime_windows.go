//go:build windows

package realtime

import (
	"fmt"

	"golang.org/x/sys/windows"
)

func boost() error {
	if err := windows.SetPriorityClass(windows.CurrentProcess(), windows.ABOVE_NORMAL_PRIORITY_CLASS); err != nil {
		return fmt.Errorf("realtime: SetPriorityClass: %w", err)
	}
	return nil
}
