package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrian-griffin/rsbackup/job"
)

func TestLogLevelStringSwitch(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, logLevelStringSwitch("debug"))
	assert.Equal(t, logrus.WarnLevel, logLevelStringSwitch("warn"))
	assert.Equal(t, logrus.InfoLevel, logLevelStringSwitch("bogus"))
}

func TestMergeFields(t *testing.T) {
	merged := MergeFields(
		map[string]interface{}{"package": "backup", "success": false},
		map[string]interface{}{"success": true, "port": 22},
	)

	assert.Equal(t, map[string]interface{}{
		"package": "backup",
		"success": true,
		"port":    22,
	}, merged)
}

func TestCoreLogFields(t *testing.T) {
	ctx := &job.JobContext{Directory: "/data", JobID: "abc"}
	fields := CoreLogFields(ctx, "runner")

	assert.Equal(t, "/data", fields["directory"])
	assert.Equal(t, "abc", fields["job_id"])
	assert.Equal(t, "runner", fields["package"])
}

func TestInitLoggingWithFile(t *testing.T) {
	prevLogger := Logx
	defer func() { Logx = prevLogger }()

	logPath := filepath.Join(t.TempDir(), "rsbackup.log")
	closer, err := InitLogging(Options{Level: "debug", Format: "json", LogFile: logPath})
	require.NoError(t, err)

	var buf bytes.Buffer
	Logx.SetOutput(&buf)
	LogxWithFields("debug", "hello", map[string]interface{}{"package": "test"})
	require.NoError(t, closer.Close())

	assert.Equal(t, logrus.DebugLevel, Logx.GetLevel())
	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"package":"test"`)

	_, err = os.Stat(logPath)
	assert.NoError(t, err)
}

func TestInitLoggingBadFile(t *testing.T) {
	prevLogger := Logx
	defer func() { Logx = prevLogger }()

	_, err := InitLogging(Options{LogFile: filepath.Join(t.TempDir(), "missing", "x.log")})
	assert.Error(t, err)
}
