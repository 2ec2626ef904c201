//go:build !windows

package main

// isShiftHeld has no portable equivalent; closing always hides to tray.
func isShiftHeld() bool { return false }
