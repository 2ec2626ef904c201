package main

import (
	"fmt"

	"github.com/Mavwarf/metronome/internal/click"
)

func voicesCmd(o options) {
	selected := click.DefaultVoice
	if cfg, err := loadConfig(o); err == nil {
		selected = cfg.Voice
	}
	for _, name := range click.Names() {
		v := click.Voices[name]
		marker := " "
		if name == selected {
			marker = "*"
		}
		fmt.Printf("%s %-8s %6.0f / %-6.0f Hz  %s\n", marker, name, v.Accent, v.Beat, v.Description)
	}
}
