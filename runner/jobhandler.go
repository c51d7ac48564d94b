package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/adrian-griffin/rsbackup/backup"
	"github.com/adrian-griffin/rsbackup/datefile"
	"github.com/adrian-griffin/rsbackup/input"
	"github.com/adrian-griffin/rsbackup/job"
	"github.com/adrian-griffin/rsbackup/logger"
	"github.com/adrian-griffin/rsbackup/metrics"
)

// Action is what a run does with each directory
type Action int

const (
	Transfer Action = iota
	Info
	When
	WhenWrite
	Show
)

func (a Action) String() string {
	switch a {
	case Transfer:
		return "transfer"
	case Info:
		return "info"
	case When:
		return "when"
	case WhenWrite:
		return "when-write"
	case Show:
		return "config"
	default:
		return "unknown"
	}
}

var ErrBatchFailed = errors.New("batch run failed")

// Request describes one invocation, directory selection comes from CLI or --all
type Request struct {
	Action Action
	CLI    input.CLIArgs
	Global *input.GlobalConfig
}

// JobHandler dispatches requests to the executor & date tracker
type JobHandler struct {
	Executor *backup.Executor
	Metrics  *metrics.Metrics
	Out      io.Writer
	Now      func() time.Time
}

func NewJobHandler(executor *backup.Executor, m *metrics.Metrics, out io.Writer) *JobHandler {
	return &JobHandler{Executor: executor, Metrics: m, Out: out, Now: time.Now}
}

// debug level logging output fields for the job handler
func jobhandlerLogDebugFields(jobctx *job.JobContext, action Action) map[string]interface{} {
	coreFields := logger.CoreLogFields(jobctx, "jobhandler")
	return logger.MergeFields(coreFields, map[string]interface{}{
		"action":  action.String(),
		"command": jobctx.Command.String(),
		"dry_run": jobctx.DryRun,
	})
}

// Run validates the directory selection & runs one directory or the batch
func (h *JobHandler) Run(ctx context.Context, req Request) error {
	if err := input.ValidateSource(req.CLI); err != nil {
		return err
	}

	var err error
	if req.CLI.All {
		err = h.RunBatch(ctx, req)
	} else {
		err = h.RunDirectory(ctx, req)
	}

	if req.Global != nil && req.Global.MetricsTextfile != "" && h.Metrics != nil {
		if werr := h.Metrics.WriteTextfile(req.Global.MetricsTextfile); werr != nil {
			logger.LogxWithFields("warn", werr.Error(), map[string]interface{}{
				"package": "jobhandler",
				"path":    req.Global.MetricsTextfile,
			})
		}
	}

	return err
}

// RunBatch applies the request to every directory of the global list in
// order. A failing directory does not stop the others; all failures are
// returned together.
func (h *JobHandler) RunBatch(ctx context.Context, req Request) error {
	var directories []string
	if req.Global != nil {
		directories = req.Global.List
	}

	if len(directories) == 0 {
		logger.LogxWithFields("warn", "No directories listed in the global config, nothing to do", map[string]interface{}{
			"package": "jobhandler",
			"action":  req.Action.String(),
		})
		return nil
	}

	verbose := req.CLI.Verbose || req.CLI.DryRun

	var failures []error
	for _, dir := range directories {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err)
			break
		}

		if verbose {
			fmt.Fprintln(h.Out, " **")
			fmt.Fprintf(h.Out, " ** %s\n", dir)
		}

		dirReq := req
		dirReq.CLI = req.CLI.WithSrcDir(dir)

		if err := h.RunDirectory(ctx, dirReq); err != nil {
			logger.LogxWithFields("error", fmt.Sprintf("Directory failed: %v", err), map[string]interface{}{
				"package":   "jobhandler",
				"directory": dir,
				"success":   false,
			})
			failures = append(failures, fmt.Errorf("%s: %w", dir, err))
		}
	}

	if h.Metrics != nil {
		h.Metrics.SetBatchMetrics(len(directories), len(failures))
	}

	if len(failures) > 0 {
		return fmt.Errorf("%w (%d of %d directories): %w", ErrBatchFailed, len(failures), len(directories), errors.Join(failures...))
	}
	return nil
}

// RunDirectory handles the request for the single directory named by the CLI
func (h *JobHandler) RunDirectory(ctx context.Context, req Request) error {
	dir := job.DefaultSrcDir
	if req.CLI.SrcDir != nil {
		dir = *req.CLI.SrcDir
	}

	jobctx := job.NewJobContext(dir, req.CLI.Command, req.CLI.DryRun)
	verboseFields := jobhandlerLogDebugFields(jobctx, req.Action)

	var err error
	switch req.Action {
	case Transfer:
		err = h.transfer(ctx, jobctx, req)
	case Info:
		h.info(dir)
	case When:
		if date, ok := datefile.Read(dir); ok {
			fmt.Fprintln(h.Out, datefile.Format(date))
		}
	case WhenWrite:
		err = h.writeDate(jobctx, dir)
	case Show:
		err = h.show(req)
	default:
		err = fmt.Errorf("unknown action %d", req.Action)
	}

	if date, ok := readDateQuiet(dir, req.Action); ok && h.Metrics != nil {
		h.Metrics.SetLastBackup(dir, date)
	}

	if err != nil {
		logger.LogxWithFields("debug", fmt.Sprintf("Run failed: %v", err), verboseFields)
		return err
	}
	logger.LogxWithFields("debug", "Run complete", verboseFields)
	return nil
}

func (h *JobHandler) transfer(ctx context.Context, jobctx *job.JobContext, req Request) error {
	params, err := input.ResolveDirectory(req.CLI, req.Global)
	if err != nil {
		return err
	}
	jobctx.Command = params.Command

	logger.LogxWithFields("info", "New backup job added", logger.MergeFields(logger.CoreLogFields(jobctx, "jobhandler"), map[string]interface{}{
		"command":     params.Command.String(),
		"remote_host": params.Server,
		"dry_run":     params.DryRun,
	}))

	err = h.Executor.Execute(ctx, jobctx, params)

	// job completion & time calculation
	duration := time.Since(jobctx.StartTime)
	if h.Metrics != nil && !params.DryRun {
		h.Metrics.SetRunMetrics(jobctx.Directory, params.Command.String(), err == nil, duration)
	}
	if err != nil {
		return err
	}

	logger.LogxWithFields("info", fmt.Sprintf("Job success, execution time: %.2fs", duration.Seconds()), map[string]interface{}{
		"package":   "jobhandler",
		"directory": jobctx.Directory,
		"job_id":    jobctx.JobID,
		"command":   params.Command.String(),
		"duration":  fmt.Sprintf("%.2fs", duration.Seconds()),
		"success":   true,
	})
	return nil
}

// prints the directory & its last backup date when one is recorded
func (h *JobHandler) info(dir string) {
	if date, ok := datefile.Read(dir); ok {
		fmt.Fprintf(h.Out, " - folder: %q, last backup: %s\n", dir, datefile.Format(date))
		return
	}
	fmt.Fprintf(h.Out, " - folder: %q\n", dir)
}

func (h *JobHandler) writeDate(jobctx *job.JobContext, dir string) error {
	if jobctx.DryRun {
		logger.LogxWithFields("info", "Dry-run, not writing date file", logger.CoreLogFields(jobctx, "jobhandler"))
		return nil
	}
	return datefile.Write(dir, h.Now())
}

// prints the effective params for the directory as yaml
func (h *JobHandler) show(req Request) error {
	params, err := input.ResolveDirectory(req.CLI, req.Global)
	if err != nil {
		return err
	}

	encoder := yaml.NewEncoder(h.Out)
	encoder.SetIndent(2)
	if err := encoder.Encode(params); err != nil {
		return fmt.Errorf("failed to render params: %w", err)
	}
	return encoder.Close()
}

// reads the date for metrics after actions that may have changed it
func readDateQuiet(dir string, action Action) (time.Time, bool) {
	if action != Transfer && action != WhenWrite {
		return time.Time{}, false
	}
	return datefile.Read(dir)
}
