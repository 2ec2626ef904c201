package main

import "golang.org/x/sys/windows"

var (
	user32           = windows.NewLazySystemDLL("user32.dll")
	getAsyncKeyState = user32.NewProc("GetAsyncKeyState")
)

func isShiftHeld() bool {
	ret, _, _ := getAsyncKeyState.Call(0x10) // VK_SHIFT
	return ret&0x8000 != 0
}
