//go:build !linux && !darwin && !windows

package realtime

func boost() error { return ErrUnsupported }
