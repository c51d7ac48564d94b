package input

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/adrian-griffin/rsbackup/job"
	"github.com/adrian-griffin/rsbackup/logger"
)

// name of both the per-directory and the global config file
const ConfigFileName = ".backup.toml"

var ErrMalformedConfig = errors.New("malformed config file")

// Settings holds the keys shared by local & global configfiles, nil means unset
type Settings struct {
	Server            *string  `toml:"server"`
	Port              *int     `toml:"port"`
	User              *string  `toml:"user"`
	TargetDir         *string  `toml:"target_dir"`
	UpdatePermissions *bool    `toml:"update_permissions"`
	UpdateDirTimes    *bool    `toml:"update_dir_times"`
	Exclude           []string `toml:"exclude"`
	SSHKey            *string  `toml:"ssh_key"`
}

// LocalConfig lives at the root of a backed up directory
type LocalConfig struct {
	Settings
	Default *string `toml:"default"`
}

// GlobalConfig lives in the user's home directory
type GlobalConfig struct {
	Settings
	// directories backed up by --all
	List []string `toml:"list"`

	RsyncPath       string `toml:"rsync_path"`
	LogLevel        string `toml:"log_level"`
	LogFormat       string `toml:"log_format"`
	LogTextColour   bool   `toml:"log_text_format_colouring"`
	LogFile         string `toml:"log_file"`
	MetricsTextfile string `toml:"metrics_textfile"`
}

func LocalConfigPath(dir string) string {
	return filepath.Join(dir, ConfigFileName)
}

// determines global configfile path from the user's home
func GlobalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ConfigFileName), nil
}

// LoadLocalConfig returns nil without error when dir has no configfile
func LoadLocalConfig(dir string) (*LocalConfig, error) {
	var config LocalConfig
	found, err := decodeConfigFile(LocalConfigPath(dir), &config)
	if err != nil || !found {
		return nil, err
	}

	if config.Default != nil {
		if _, ok := defaultCommand(*config.Default); !ok {
			logger.LogxWithFields("warn", fmt.Sprintf("Ignoring unknown default command %q", *config.Default), map[string]interface{}{
				"package": "input",
				"path":    LocalConfigPath(dir),
			})
		}
	}

	return &config, nil
}

// parses a directory's default command, fetch is not allowed as a default
func defaultCommand(name string) (job.Command, bool) {
	command, err := job.ParseCommand(name)
	if err != nil || command == job.Fetch {
		return job.None, false
	}
	return command, true
}

// LoadGlobalConfig returns nil without error when path does not exist
func LoadGlobalConfig(path string) (*GlobalConfig, error) {
	var config GlobalConfig
	found, err := decodeConfigFile(path, &config)
	if err != nil || !found {
		return nil, err
	}

	// validate log_level, warn & fall back to info
	validLogLevels := map[string]bool{
		"":      true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[config.LogLevel] {
		logger.LogxWithFields("warn", "invalid `log_level` supplied, defaulting to `info`", map[string]interface{}{
			"package": "input",
			"path":    path,
		})
		config.LogLevel = "info"
	}

	// validate log_format, warn & fall back to text
	if config.LogFormat != "" && config.LogFormat != "text" && config.LogFormat != "json" {
		logger.LogxWithFields("warn", "invalid `log_format` supplied, defaulting to `text`", map[string]interface{}{
			"package": "input",
			"path":    path,
		})
		config.LogFormat = "text"
	}

	return &config, nil
}

// reads & unmarshals a toml configfile into v, reports whether it existed
func decodeConfigFile(path string, v interface{}) (bool, error) {
	fields := map[string]interface{}{
		"package": "input",
		"path":    path,
	}

	configFileData, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.LogxWithFields("debug", fmt.Sprintf("No config file at %s", path), fields)
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	meta, err := toml.Decode(string(configFileData), v)
	if err != nil {
		return false, fmt.Errorf("%w %s: %v", ErrMalformedConfig, path, err)
	}

	// unknown keys are ignored
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		logger.LogxWithFields("debug", fmt.Sprintf("Ignoring unknown config keys: %s", strings.Join(keys, ", ")), fields)
	}

	logger.LogxWithFields("debug", fmt.Sprintf("Found config file at %s", path), fields)
	return true, nil
}
