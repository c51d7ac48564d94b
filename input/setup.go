package input

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/BurntSushi/toml"

	"github.com/adrian-griffin/rsbackup/logger"
	"github.com/adrian-griffin/rsbackup/util"
)

// answers gathered by the init wizard, empty means skipped
type setupAnswers struct {
	Server    string   `toml:"server,omitempty"`
	Port      *int     `toml:"port,omitempty"`
	User      string   `toml:"user,omitempty"`
	TargetDir string   `toml:"target_dir,omitempty"`
	Default   string   `toml:"default,omitempty"`
	Exclude   []string `toml:"exclude,omitempty"`
}

type prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// prints label & reads one line, EOF reads as an empty answer.
// Lines that are not valid UTF-8 cannot be stored in toml & are asked again.
func (p *prompter) ask(label string) string {
	for {
		fmt.Fprint(p.out, label)
		if !p.scanner.Scan() {
			fmt.Fprintln(p.out)
			return ""
		}
		answer := strings.TrimSpace(p.scanner.Text())
		if utf8.ValidString(answer) {
			return answer
		}
		fmt.Fprintln(p.out, "Invalid characters, please try again")
	}
}

// guided setup of a per-directory configfile, returns the written path
func InitTool(in io.Reader, out io.Writer, dir string) (string, error) {
	p := &prompter{scanner: bufio.NewScanner(in), out: out}

	var answers setupAnswers
	answers.Server = p.ask("Server address: ")

	for {
		answer := p.ask("port: ")
		if answer == "" {
			break
		}
		if port, err := strconv.Atoi(answer); err == nil && port > 0 {
			answers.Port = &port
			break
		}
		fmt.Fprintln(out, "Invalid port, please try again")
	}

	answers.TargetDir = p.ask("Target directory on the server: ")
	answers.User = p.ask("User on the server: ")

	// loop until a known command or nothing is given
	for {
		choice := p.ask("Use a command by default? (push/sync): ")
		if choice == "" {
			break
		}
		if command, ok := defaultCommand(choice); ok {
			answers.Default = command.String()
			break
		}
		fmt.Fprintln(out, "Unknown command.")
	}

	for {
		pattern := p.ask("Exclude pattern? : ")
		if pattern == "" {
			break
		}
		answers.Exclude = append(answers.Exclude, pattern)
	}

	if err := p.scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(answers); err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}

	configFilePath := LocalConfigPath(dir)
	if err := util.WriteFileAtomic(configFilePath, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", configFilePath, err)
	}

	logger.LogxWithFields("debug", "Local config written", map[string]interface{}{
		"package": "input",
		"path":    configFilePath,
	})
	fmt.Fprintf(out, "Created configuration file at %s\n", configFilePath)
	return configFilePath, nil
}
