package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/Mavwarf/metronome/internal/config"
	"github.com/Mavwarf/metronome/internal/metronome"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// options holds command-line flags. Zero values mean "use the config".
type options struct {
	bpm        float64
	signature  string
	volume     float64
	hasVolume  bool
	voice      string
	configPath string
	logLevel   string
	headless   bool
	open       bool
	seconds    float64
}

func main() {
	opts, args, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "help", "-h", "--help":
		printUsage()
	case "version", "-V", "--version":
		printVersion()
	case "play":
		playCmd(opts)
	case "serve":
		serveCmd(opts)
	case "render":
		renderCmd(args[1:], opts)
	case "voices":
		voicesCmd(opts)
	case "history":
		historyCmd(args[1:], opts)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", args[0])
		fmt.Fprintf(os.Stderr, "Run 'metronome help' for usage.\n")
		os.Exit(1)
	}
}

// parseArgs pulls flags out of args and returns the remaining words.
func parseArgs(args []string) (options, []string, error) {
	var opts options
	var rest []string

	value := func(i int, name string) (string, error) {
		if i+1 >= len(args) {
			return "", fmt.Errorf("%s requires a value", name)
		}
		return args[i+1], nil
	}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--bpm", "-b":
			v, err := value(i, "--bpm")
			if err != nil {
				return opts, nil, err
			}
			bpm, err := strconv.ParseFloat(v, 64)
			if err != nil || bpm <= 0 {
				return opts, nil, errors.New("--bpm must be a positive number")
			}
			opts.bpm = bpm
			i++
		case "--sig", "-s":
			v, err := value(i, "--sig")
			if err != nil {
				return opts, nil, err
			}
			if _, err := metronome.ParseSignature(v); err != nil {
				return opts, nil, err
			}
			opts.signature = v
			i++
		case "--volume", "-v":
			v, err := value(i, "--volume")
			if err != nil {
				return opts, nil, err
			}
			vol, err := strconv.ParseFloat(v, 64)
			if err != nil || vol < 0 || vol > 1 {
				return opts, nil, errors.New("--volume must be a number between 0 and 1")
			}
			opts.volume, opts.hasVolume = vol, true
			i++
		case "--voice":
			v, err := value(i, "--voice")
			if err != nil {
				return opts, nil, err
			}
			opts.voice = v
			i++
		case "--config", "-c":
			v, err := value(i, "--config")
			if err != nil {
				return opts, nil, err
			}
			opts.configPath = v
			i++
		case "--log-level":
			v, err := value(i, "--log-level")
			if err != nil {
				return opts, nil, err
			}
			opts.logLevel = v
			i++
		case "--seconds":
			v, err := value(i, "--seconds")
			if err != nil {
				return opts, nil, err
			}
			sec, err := strconv.ParseFloat(v, 64)
			if err != nil || sec <= 0 {
				return opts, nil, errors.New("--seconds must be a positive number")
			}
			opts.seconds = sec
			i++
		case "--headless":
			opts.headless = true
		case "--open":
			opts.open = true
		default:
			rest = append(rest, args[i])
		}
	}
	return opts, rest, nil
}

// apply lays the flags over cfg. Flags win over the config file.
func (o options) apply(cfg config.Config) config.Config {
	if o.bpm > 0 {
		cfg.BPM = o.bpm
	}
	if o.signature != "" {
		cfg.Signature = o.signature
	}
	if o.hasVolume {
		cfg.Volume = o.volume
	}
	if o.voice != "" {
		cfg.Voice = o.voice
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg
}

// loadConfig reads the config, applies flags and validates the result.
func loadConfig(o options) (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	cfg = o.apply(cfg)
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// fmtDuration returns a compact duration string (e.g. "3s", "2m15s").
func fmtDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(time.Second).String()
}

func printVersion() {
	fmt.Printf("metronome %s (%s) %s/%s\n", version, buildDate, runtime.GOOS, runtime.GOARCH)
}

func printUsage() {
	fmt.Printf("metronome %s - A terminal and desktop metronome\n", version)
	fmt.Println(`
Usage:
  metronome [options] <command>

Options:
  --bpm, -b <n>          Tempo in beats per minute (default: config or 120)
  --sig, -s <n/d>        Time signature, e.g. 3/4 or 7/8 (default: 4/4)
  --volume, -v <0-1>     Click volume (default: config or 0.8)
  --voice <name>         Click voice, see 'metronome voices'
  --config, -c <path>    Path to metronome-config.json
  --log-level <level>    debug, info, warn or error
  --headless             Run without an audio device (ticks only)
  --open                 serve: open the dashboard in a browser
  --seconds <n>          render: length of the file (default: 10)

Commands:
  play                   Click in the terminal; keys change tempo and volume
  serve                  Run the HTTP dashboard (and MQTT bridge if configured)
  render <out.wav>       Write clicks to a WAV file
  voices                 List click voices
  history [days]         Show practice sessions (default: 7 days)
  history clean <days>   Remove sessions older than <days>
  history clear          Delete all history
  version, -V            Show version and build date
  help, -h, --help       Show this help message

Config resolution:
  1. --config <path>                          (explicit)
  2. metronome-config.json next to binary      (portable)
  3. ~/.config/metronome/metronome-config.json (user default)

Examples:
  metronome play                    4/4 at the configured tempo
  metronome -b 96 -s 6/8 play       6/8 at 96 BPM
  metronome serve --open            Dashboard in a browser window
  metronome -b 140 render click.wav Ten seconds of clicks at 140 BPM`)
}
