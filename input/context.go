package input

import (
	"fmt"

	"github.com/adrian-griffin/rsbackup/job"
)

// CLIArgs is what the operator passed on the command line, nil means unset
type CLIArgs struct {
	Command   job.Command
	SrcDir    *string
	TargetDir *string
	User      *string
	Server    *string
	Port      *int

	Verbose bool
	DryRun  bool
	All     bool
}

// WithSrcDir returns a copy of the args pointed at dir
func (c CLIArgs) WithSrcDir(dir string) CLIArgs {
	c.SrcDir = &dir
	return c
}

// Resolve merges the four layers into one set of params.
// Per field: CLI > local > global > built-in default.
// Exclusions accumulate, global first.
func Resolve(cli CLIArgs, local *LocalConfig, global *GlobalConfig) job.Params {
	var localSettings, globalSettings Settings
	if local != nil {
		localSettings = local.Settings
	}
	if global != nil {
		globalSettings = global.Settings
	}

	params := job.Params{
		Command:           cli.Command,
		Server:            firstString("", cli.Server, localSettings.Server, globalSettings.Server),
		Port:              firstInt(job.DefaultPort, cli.Port, localSettings.Port, globalSettings.Port),
		User:              firstString("", cli.User, localSettings.User, globalSettings.User),
		SrcDir:            firstString(job.DefaultSrcDir, cli.SrcDir),
		TargetDir:         firstString(job.DefaultTargetDir, cli.TargetDir, localSettings.TargetDir, globalSettings.TargetDir),
		UpdatePermissions: firstBool(false, localSettings.UpdatePermissions, globalSettings.UpdatePermissions),
		UpdateDirTimes:    firstBool(false, localSettings.UpdateDirTimes, globalSettings.UpdateDirTimes),
		SSHKey:            firstString("", localSettings.SSHKey, globalSettings.SSHKey),
		RsyncPath:         job.DefaultRsyncPath,
		Verbose:           cli.Verbose || cli.DryRun,
		DryRun:            cli.DryRun,
		All:               cli.All,
	}

	if global != nil && global.RsyncPath != "" {
		params.RsyncPath = global.RsyncPath
	}

	params.Exclude = append(params.Exclude, globalSettings.Exclude...)
	params.Exclude = append(params.Exclude, localSettings.Exclude...)

	// the directory's default command only applies when the CLI named none
	if params.Command == job.None && local != nil && local.Default != nil {
		if command, ok := defaultCommand(*local.Default); ok {
			params.Command = command
		}
	}

	return params
}

// ResolveDirectory loads dir's local config & resolves params for it
func ResolveDirectory(cli CLIArgs, global *GlobalConfig) (job.Params, error) {
	dir := firstString(job.DefaultSrcDir, cli.SrcDir)

	local, err := LoadLocalConfig(dir)
	if err != nil {
		return job.Params{}, fmt.Errorf("failed to load config for %s: %w", dir, err)
	}

	return Resolve(cli, local, global), nil
}

func firstString(def string, layers ...*string) string {
	for _, v := range layers {
		if v != nil {
			return *v
		}
	}
	return def
}

func firstInt(def int, layers ...*int) int {
	for _, v := range layers {
		if v != nil {
			return *v
		}
	}
	return def
}

func firstBool(def bool, layers ...*bool) bool {
	for _, v := range layers {
		if v != nil {
			return *v
		}
	}
	return def
}
