// Package cli parses the medvoice command line.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandRecord  Command = "record"
	CommandStop    Command = "stop"
	CommandCancel  Command = "cancel"
	CommandStatus  Command = "status"
	CommandUpload  Command = "upload"
	CommandDevices Command = "devices"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

// arity is the number of positional arguments each command takes.
var arity = map[Command]int{
	CommandRecord:  0,
	CommandStop:    0,
	CommandCancel:  0,
	CommandStatus:  0,
	CommandUpload:  1,
	CommandDevices: 0,
	CommandDoctor:  0,
	CommandVersion: 0,
	CommandHelp:    0,
}

type Parsed struct {
	Command    Command
	ConfigPath string
	OutDir     string
	File       string
	Verbose    bool
	ShowHelp   bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		name, inline, hasInline := strings.Cut(arg, "=")
		if !strings.HasPrefix(arg, "--") {
			name, inline, hasInline = arg, "", false
		}
		value := func() (string, error) {
			if hasInline {
				if strings.TrimSpace(inline) == "" {
					return "", fmt.Errorf("%s requires a value", name)
				}
				return inline, nil
			}
			i++
			if i >= len(args) {
				return "", fmt.Errorf("%s requires a value", name)
			}
			return args[i], nil
		}

		switch name {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "-v", "--verbose":
			parsed.Verbose = true
		case "--config":
			path, err := value()
			if err != nil {
				return Parsed{}, err
			}
			parsed.ConfigPath = path
		case "--out":
			dir, err := value()
			if err != nil {
				return Parsed{}, err
			}
			parsed.OutDir = dir
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			want, ok := arity[cmd]
			if !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}
			rest := args[i+1:]
			if len(rest) != want {
				if want == 0 {
					return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
				}
				return Parsed{}, fmt.Errorf("command %q takes exactly %d argument", arg, want)
			}
			if cmd == CommandUpload {
				if strings.TrimSpace(rest[0]) == "" {
					return Parsed{}, errors.New("upload requires a file path")
				}
				parsed.File = rest[0]
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			return parsed, nil
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] [--out DIR] [-v] <command> [FILE]

Commands:
  record    Record an encounter until stop, cancel or Ctrl-C, then write a SOAP note
  stop      Stop the active recording and start processing
  cancel    Discard the active recording
  status    Print the active session state
  upload    Transcribe an existing audio FILE and write a SOAP note
  devices   List available input devices
  doctor    Run configuration and environment checks
  version   Print version information
  help      Show this help

Flags:
  --config PATH   Config file path (default: $MEDVOICE_CONFIG or $XDG_CONFIG_HOME/medvoice/config.jsonc)
  --out DIR       Export directory (overrides export.dir)
  -v, --verbose   Mirror debug logs to stderr
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
