package job

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Command is the transfer direction requested for a directory.
type Command int

const (
	None Command = iota
	Push
	Sync
	Fetch
)

var ErrUnknownCommand = errors.New("unknown command")

func (c Command) String() string {
	switch c {
	case Push:
		return "push"
	case Sync:
		return "sync"
	case Fetch:
		return "fetch"
	default:
		return "none"
	}
}

// MarshalYAML renders the command by name
func (c Command) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

// parses a command name as found in config files & prompts
func ParseCommand(name string) (Command, error) {
	switch strings.TrimSpace(name) {
	case "push":
		return Push, nil
	case "sync":
		return Sync, nil
	case "fetch":
		return Fetch, nil
	default:
		return None, ErrUnknownCommand
	}
}

// built-in defaults, lowest precedence layer
const (
	DefaultPort      = 22
	DefaultSrcDir    = "."
	DefaultTargetDir = "~/backups/default/"
	DefaultRsyncPath = "rsync"
)

// Params is the fully resolved settings for one backup operation.
// It is built fresh per directory & not mutated once resolved.
type Params struct {
	Command           Command  `yaml:"command"`
	Server            string   `yaml:"server"`
	Port              int      `yaml:"port"`
	User              string   `yaml:"user"`
	SrcDir            string   `yaml:"src_dir"`
	TargetDir         string   `yaml:"target_dir"`
	Exclude           []string `yaml:"exclude"`
	UpdatePermissions bool     `yaml:"update_permissions"`
	UpdateDirTimes    bool     `yaml:"update_dir_times"`
	SSHKey            string   `yaml:"ssh_key,omitempty"`
	RsyncPath         string   `yaml:"rsync_path"`
	Verbose           bool     `yaml:"verbose"`
	DryRun            bool     `yaml:"dry_run"`
	All               bool     `yaml:"all"`
}

// Clone returns a copy that shares no slices with p
func (p Params) Clone() Params {
	clone := p
	if p.Exclude != nil {
		clone.Exclude = append([]string(nil), p.Exclude...)
	}
	return clone
}

// RemoteAddress formats the rsync destination as user@host:path
func (p Params) RemoteAddress() string {
	return p.User + "@" + p.Server + ":" + p.TargetDir
}

// declaring job context struct
type JobContext struct {
	Directory string
	JobID     string
	Command   Command
	StartTime time.Time
	DryRun    bool
}

func NewJobContext(directory string, command Command, dryRun bool) *JobContext {
	return &JobContext{
		Directory: directory,
		JobID:     GenerateJobID(),
		Command:   command,
		StartTime: time.Now(),
		DryRun:    dryRun,
	}
}

func GenerateJobID() string {
	// gen new random UUID
	u := uuid.New().String()
	parts := strings.Split(u, "-")
	q1 := parts[0] // initial 8-character sequence from UUID
	q2 := parts[1] // 1st 4-character sequence from UUID

	return q1 + q2
}
