package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/adrian-griffin/rsbackup/datefile"
	"github.com/adrian-griffin/rsbackup/input"
	"github.com/adrian-griffin/rsbackup/job"
	"github.com/adrian-griffin/rsbackup/keytool"
	"github.com/adrian-griffin/rsbackup/logger"
	"github.com/adrian-griffin/rsbackup/util"
)

var (
	ErrTransferFailed    = errors.New("transfer failed")
	ErrUnquotableKeyPath = errors.New("ssh key path contains both single and double quotes")
)

// debug level logging output fields for remote transfers
func remoteLogDebugFields(jobctx *job.JobContext, p job.Params) map[string]interface{} {
	coreFields := logger.CoreLogFields(jobctx, "backup")
	fields := logger.MergeFields(coreFields, map[string]interface{}{
		"command":     p.Command.String(),
		"remote_user": p.User,
		"remote_host": p.Server,
		"remote_port": p.Port,
		"target_dir":  p.TargetDir,
		"dry_run":     p.DryRun,
	})
	return fields
}

// builds the remote shell passed to rsync -e
func sshCommand(p job.Params) string {
	ssh := "ssh -p " + strconv.Itoa(p.Port)
	if p.SSHKey != "" {
		ssh += " -i " + quoteRemoteShellArg(p.SSHKey)
	}
	return ssh
}

// rsync splits the -e command on spaces & honors single or double quotes,
// but not backslashes
func quoteRemoteShellArg(arg string) string {
	if !strings.ContainsAny(arg, " '\"") {
		return arg
	}
	if !strings.Contains(arg, "'") {
		return "'" + arg + "'"
	}
	return `"` + arg + `"`
}

// BuildArgs renders the rsync arguments for a push or sync of p
func BuildArgs(p job.Params) []string {
	args := []string{"-a", "-z"}

	if p.Verbose {
		args = append(args, "-v")
	}
	if !p.UpdateDirTimes {
		args = append(args, "--omit-dir-times")
	}
	if !p.UpdatePermissions {
		args = append(args, "--no-perms")
	}
	for _, pattern := range p.Exclude {
		args = append(args, "--exclude", pattern)
	}
	if p.Command == job.Sync {
		args = append(args, "--delete")
	}

	args = append(args,
		"-e", sshCommand(p),
		p.SrcDir,
		p.RemoteAddress(),
	)
	return args
}

// Executor runs transfers through an injectable runner & clock
type Executor struct {
	Runner util.Runner
	Out    io.Writer
	Now    func() time.Time
}

func NewExecutor(runner util.Runner, out io.Writer) *Executor {
	return &Executor{Runner: runner, Out: out, Now: time.Now}
}

// Execute validates p, then runs rsync unless in dry-run. The backup date is
// recorded only after rsync succeeds.
func (e *Executor) Execute(ctx context.Context, jobctx *job.JobContext, p job.Params) error {
	verboseFields := remoteLogDebugFields(jobctx, p)

	//<section>  VALIDATIONS
	//---------
	if err := input.ValidateParams(p); err != nil {
		return err
	}

	if p.SSHKey != "" {
		keyPath, err := keytool.ExpandHome(p.SSHKey)
		if err != nil {
			return err
		}
		if strings.Contains(keyPath, "'") && strings.Contains(keyPath, `"`) {
			return fmt.Errorf("%w: %s", ErrUnquotableKeyPath, keyPath)
		}
		if err := keytool.ValidateSSHPrivateKeyPerms(keyPath); err != nil {
			return fmt.Errorf("private SSH key check failed: %w", err)
		}
		p.SSHKey = keyPath
	}

	if err := ValidateSource(p); err != nil {
		return err
	}

	args := BuildArgs(p)

	if p.Verbose {
		fmt.Fprintf(e.Out, " ** command: %s\n", p.Command)
		fmt.Fprintf(e.Out, " ** %s\n", util.FormatCommand(p.RsyncPath, args...))
	}

	if p.DryRun {
		logger.LogxWithFields("debug", "Dry-run, skipping transfer", verboseFields)
		return nil
	}

	logger.LogxWithFields("debug", fmt.Sprintf("Transferring to remote %s", p.RemoteAddress()), verboseFields)

	// run rsync
	if err := e.Runner.Run(ctx, p.RsyncPath, args...); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrTransferFailed, p.Command, p.SrcDir, err)
	}

	if err := datefile.Write(p.SrcDir, e.Now()); err != nil {
		return err
	}

	logger.LogxWithFields("info", "Directory successfully transferred to remote", logger.MergeFields(verboseFields, map[string]interface{}{
		"success": true,
	}))
	return nil
}

// ValidateSource checks the local side of the transfer exists as a directory
func ValidateSource(p job.Params) error {
	if err := util.ValidateDirectoryString(p.SrcDir); err != nil {
		return fmt.Errorf("invalid source directory: %w", err)
	}
	return nil
}
