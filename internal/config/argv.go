package config

import (
	"fmt"
	"os"
	"strings"
	"unicode"
)

// ParseCommand splits raw into argv with shell-style quoting and escapes.
// $VAR and ${VAR} expand outside single quotes. Nothing else is interpreted.
func ParseCommand(raw string) (CommandConfig, error) {
	argv, err := splitCommand(raw)
	if err != nil {
		return CommandConfig{}, err
	}
	return CommandConfig{Raw: raw, Argv: argv}, nil
}

func mustParseCommand(raw string) CommandConfig {
	cmd, err := ParseCommand(raw)
	if err != nil {
		panic(err)
	}
	return cmd
}

func splitCommand(input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if input == "" || strings.HasPrefix(input, "#") {
		return nil, nil
	}

	var (
		runes  = []rune(input)
		argv   []string
		word   strings.Builder
		inWord bool
		quote  rune
	)
	emit := func() {
		if inWord {
			argv = append(argv, word.String())
			word.Reset()
			inWord = false
		}
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote == '\'':
			if r == '\'' {
				quote = 0
				continue
			}
			word.WriteRune(r)
		case r == '\\':
			if i+1 == len(runes) {
				return nil, fmt.Errorf("unterminated escape sequence in command: %q", input)
			}
			i++
			word.WriteRune(runes[i])
			inWord = true
		case r == '$':
			name, consumed := envReference(runes[i+1:])
			if consumed == 0 {
				word.WriteRune(r)
			} else {
				word.WriteString(os.Getenv(name))
				i += consumed
			}
			inWord = true
		case quote == '"':
			if r == '"' {
				quote = 0
				continue
			}
			word.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case unicode.IsSpace(r):
			emit()
		default:
			word.WriteRune(r)
			inWord = true
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in command: %q", input)
	}
	emit()
	return argv, nil
}

// envReference reads a variable name following '$' and reports how many
// runes it spans. Zero means the '$' is literal.
func envReference(rs []rune) (string, int) {
	if len(rs) == 0 {
		return "", 0
	}
	if rs[0] == '{' {
		for j := 1; j < len(rs); j++ {
			if rs[j] == '}' {
				if j == 1 {
					return "", 0
				}
				return string(rs[1:j]), j + 1
			}
		}
		return "", 0
	}

	n := 0
	for n < len(rs) && (rs[n] == '_' || unicode.IsLetter(rs[n]) || (n > 0 && unicode.IsDigit(rs[n]))) {
		n++
	}
	return string(rs[:n]), n
}
