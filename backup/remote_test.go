package backup

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrian-griffin/rsbackup/datefile"
	"github.com/adrian-griffin/rsbackup/input"
	"github.com/adrian-griffin/rsbackup/job"
)

type call struct {
	name string
	args []string
}

type fakeRunner struct {
	calls []call
	err   error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	f.calls = append(f.calls, call{name: name, args: args})
	return f.err
}

func pushParams(src string) job.Params {
	return job.Params{
		Command:   job.Push,
		Server:    "host",
		Port:      22,
		User:      "bob",
		SrcDir:    src,
		TargetDir: "~/backups/default/",
		RsyncPath: "rsync",
	}
}

func TestBuildArgs(t *testing.T) {
	t.Run("PushDefaults", func(t *testing.T) {
		args := BuildArgs(pushParams("/data"))

		assert.Equal(t, []string{
			"-a", "-z",
			"--omit-dir-times",
			"--no-perms",
			"-e", "ssh -p 22",
			"/data",
			"bob@host:~/backups/default/",
		}, args)
		assert.NotContains(t, args, "--delete")
	})

	t.Run("SyncFull", func(t *testing.T) {
		p := pushParams("/data")
		p.Command = job.Sync
		p.Port = 2222
		p.Verbose = true
		p.UpdateDirTimes = true
		p.UpdatePermissions = true
		p.Exclude = []string{"*.tmp", "cache/", "*.tmp"}
		p.SSHKey = "/home/bob/.ssh/backup"

		assert.Equal(t, []string{
			"-a", "-z", "-v",
			"--exclude", "*.tmp",
			"--exclude", "cache/",
			"--exclude", "*.tmp",
			"--delete",
			"-e", "ssh -p 2222 -i /home/bob/.ssh/backup",
			"/data",
			"bob@host:~/backups/default/",
		}, BuildArgs(p))
	})

	t.Run("DeleteOnlyForSync", func(t *testing.T) {
		for _, cmd := range []job.Command{job.Push, job.Sync} {
			p := pushParams("/data")
			p.Command = cmd
			assert.Equal(t, cmd == job.Sync, contains(BuildArgs(p), "--delete"), cmd.String())
		}
	})

	t.Run("SSHKeyPathQuoted", func(t *testing.T) {
		cases := map[string]string{
			"/home/bob/my keys/id":    "ssh -p 22 -i '/home/bob/my keys/id'",
			"/home/bob/bob's keys/id": `ssh -p 22 -i "/home/bob/bob's keys/id"`,
			"/home/bob/.ssh/id":       "ssh -p 22 -i /home/bob/.ssh/id",
		}
		for key, want := range cases {
			p := pushParams("/data")
			p.SSHKey = key
			args := BuildArgs(p)
			assert.Equal(t, want, args[len(args)-3], key)
		}
	})

	t.Run("PreserveFlagsIndependent", func(t *testing.T) {
		p := pushParams("/data")
		p.UpdatePermissions = true
		args := BuildArgs(p)
		assert.Contains(t, args, "--omit-dir-times")
		assert.NotContains(t, args, "--no-perms")
	})
}

func contains(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func TestExecute(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 9, 30, 0, 0, time.Local)

	newExecutor := func(runner *fakeRunner, out *bytes.Buffer) *Executor {
		e := NewExecutor(runner, out)
		e.Now = func() time.Time { return fixed }
		return e
	}

	t.Run("RunsRsyncAndRecordsDate", func(t *testing.T) {
		src := t.TempDir()
		runner := &fakeRunner{}
		var out bytes.Buffer

		p := pushParams(src)
		err := newExecutor(runner, &out).Execute(context.Background(), job.NewJobContext(src, p.Command, false), p)
		require.NoError(t, err)

		require.Len(t, runner.calls, 1)
		assert.Equal(t, "rsync", runner.calls[0].name)
		assert.Equal(t, BuildArgs(p), runner.calls[0].args)
		assert.Empty(t, out.String())

		got, ok := datefile.Read(src)
		require.True(t, ok)
		assert.True(t, got.Equal(fixed))
	})

	t.Run("VerboseEchoesCommand", func(t *testing.T) {
		src := t.TempDir()
		runner := &fakeRunner{}
		var out bytes.Buffer

		p := pushParams(src)
		p.Verbose = true
		err := newExecutor(runner, &out).Execute(context.Background(), job.NewJobContext(src, p.Command, false), p)
		require.NoError(t, err)

		assert.Contains(t, out.String(), " ** command: push")
		assert.Contains(t, out.String(), `rsync -a -z -v --omit-dir-times --no-perms -e "ssh -p 22" `+src)
	})

	t.Run("DryRunPrintsOnly", func(t *testing.T) {
		src := t.TempDir()
		runner := &fakeRunner{}
		var out bytes.Buffer

		p := pushParams(src)
		p.DryRun = true
		p.Verbose = true
		err := newExecutor(runner, &out).Execute(context.Background(), job.NewJobContext(src, p.Command, true), p)
		require.NoError(t, err)

		assert.Empty(t, runner.calls)
		assert.Contains(t, out.String(), "rsync -a -z -v")
		_, statErr := os.Stat(datefile.Path(src))
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("ValidationBeforeSideEffects", func(t *testing.T) {
		src := t.TempDir()
		runner := &fakeRunner{}

		p := pushParams(src)
		p.Server = ""
		err := newExecutor(runner, &bytes.Buffer{}).Execute(context.Background(), job.NewJobContext(src, p.Command, false), p)
		assert.ErrorIs(t, err, input.ErrMissingServer)

		p = pushParams(src)
		p.User = ""
		err = newExecutor(runner, &bytes.Buffer{}).Execute(context.Background(), job.NewJobContext(src, p.Command, false), p)
		assert.ErrorIs(t, err, input.ErrMissingUser)

		assert.Empty(t, runner.calls)
		_, statErr := os.Stat(datefile.Path(src))
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("FetchFailsLoudly", func(t *testing.T) {
		src := t.TempDir()
		runner := &fakeRunner{}

		p := pushParams(src)
		p.Command = job.Fetch
		err := newExecutor(runner, &bytes.Buffer{}).Execute(context.Background(), job.NewJobContext(src, p.Command, false), p)
		assert.ErrorIs(t, err, input.ErrFetchUnimplemented)
		assert.Empty(t, runner.calls)
	})

	t.Run("TransferFailureLeavesDateUntouched", func(t *testing.T) {
		src := t.TempDir()
		runner := &fakeRunner{err: errors.New("exit status 23")}

		p := pushParams(src)
		err := newExecutor(runner, &bytes.Buffer{}).Execute(context.Background(), job.NewJobContext(src, p.Command, false), p)
		assert.ErrorIs(t, err, ErrTransferFailed)
		assert.Len(t, runner.calls, 1)

		_, ok := datefile.Read(src)
		assert.False(t, ok)
	})

	t.Run("MissingSource", func(t *testing.T) {
		runner := &fakeRunner{}
		src := filepath.Join(t.TempDir(), "missing")

		p := pushParams(src)
		err := newExecutor(runner, &bytes.Buffer{}).Execute(context.Background(), job.NewJobContext(src, p.Command, false), p)
		assert.Error(t, err)
		assert.Empty(t, runner.calls)
	})

	t.Run("SSHKeyPermissionsChecked", func(t *testing.T) {
		src := t.TempDir()
		key := filepath.Join(t.TempDir(), "id_backup")
		require.NoError(t, os.WriteFile(key, []byte("key"), 0644))
		require.NoError(t, os.Chmod(key, 0644))
		runner := &fakeRunner{}

		p := pushParams(src)
		p.SSHKey = key
		err := newExecutor(runner, &bytes.Buffer{}).Execute(context.Background(), job.NewJobContext(src, p.Command, false), p)
		assert.Error(t, err)
		assert.Empty(t, runner.calls)

		require.NoError(t, os.Chmod(key, 0600))
		err = newExecutor(runner, &bytes.Buffer{}).Execute(context.Background(), job.NewJobContext(src, p.Command, false), p)
		require.NoError(t, err)
		require.Len(t, runner.calls, 1)
		assert.Contains(t, runner.calls[0].args, "ssh -p 22 -i "+key)
	})

	t.Run("SSHKeyWithSpaceQuoted", func(t *testing.T) {
		src := t.TempDir()
		key := filepath.Join(t.TempDir(), "my keys", "id_backup")
		require.NoError(t, os.MkdirAll(filepath.Dir(key), 0700))
		require.NoError(t, os.WriteFile(key, []byte("key"), 0600))
		runner := &fakeRunner{}

		p := pushParams(src)
		p.SSHKey = key
		err := newExecutor(runner, &bytes.Buffer{}).Execute(context.Background(), job.NewJobContext(src, p.Command, false), p)
		require.NoError(t, err)
		require.Len(t, runner.calls, 1)
		assert.Contains(t, runner.calls[0].args, "ssh -p 22 -i '"+key+"'")
	})

	t.Run("SSHKeyWithBothQuotesRejected", func(t *testing.T) {
		src := t.TempDir()
		runner := &fakeRunner{}

		p := pushParams(src)
		p.SSHKey = filepath.Join(t.TempDir(), `it's "mine"`)
		err := newExecutor(runner, &bytes.Buffer{}).Execute(context.Background(), job.NewJobContext(src, p.Command, false), p)
		assert.ErrorIs(t, err, ErrUnquotableKeyPath)
		assert.Empty(t, runner.calls)

		_, ok := datefile.Read(src)
		assert.False(t, ok)
	})
}
