package host

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	processor "github.com/goliatone/go-processor"
	"github.com/goliatone/go-processor/config"
	"github.com/goliatone/go-processor/cron"
	"github.com/goliatone/go-processor/history"
)

type cli struct {
	Run      runCmd      `cmd:"" help:"Run a job file."`
	List     listCmd     `cmd:"" help:"List the registered process types."`
	Config   configCmd   `cmd:"" help:"Write the default job file of a process type."`
	Schedule scheduleCmd `cmd:"" help:"Run a job file on a cron schedule."`
	History  historyCmd  `cmd:"" help:"Show recorded runs."`
}

type runCmd struct {
	Job         string `arg:"" help:"Path of the job file."`
	CancelAfter int    `help:"Cancel the run once this many items completed." default:"0"`
	LogLevel    string `help:"Log level." default:"info" enum:"trace,debug,info,warn,error"`
}

func (c *runCmd) Run(ctx context.Context, h *Host) error {
	job, err := config.Load(c.Job)
	if err != nil {
		return err
	}
	report, err := h.RunJob(ctx, job, RunOptions{CancelAfter: c.CancelAfter, LogLevel: c.LogLevel})
	if err != nil {
		return err
	}
	if report.Disposition == processor.DispositionFailed {
		return processor.CloneError(ErrRunFailed,
			fmt.Sprintf("run %s failed in %s", report.RunID, report.FailedStage), nil,
			map[string]any{"run_id": report.RunID})
	}
	return nil
}

type listCmd struct{}

func (c *listCmd) Run(h *Host) error {
	tw := tabwriter.NewWriter(h.out, 0, 4, 2, ' ', 0)
	for _, info := range h.registry.Types() {
		fmt.Fprintf(tw, "%s\t%s\n", info.Type, info.Description)
	}
	return tw.Flush()
}

type configCmd struct {
	Type   string `arg:"" help:"Process type."`
	Output string `short:"o" help:"File to write instead of stdout."`
}

func (c *configCmd) Run(h *Host) error {
	job, err := h.registry.DefaultJob(c.Type)
	if err != nil {
		return err
	}
	if c.Output == "" {
		return config.Write(h.out, job)
	}
	f, err := os.Create(c.Output)
	if err != nil {
		return err
	}
	if err := config.Write(f, job); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type scheduleCmd struct {
	Expression string `arg:"" help:"Cron expression, for example \"@every 5m\"."`
	Job        string `arg:"" help:"Path of the job file, reloaded for every run."`
	MaxRuns    int    `help:"Stop after this many runs." default:"0"`
	Seconds    bool   `help:"Expressions include a seconds field."`
	LogLevel   string `help:"Log level." default:"info" enum:"trace,debug,info,warn,error"`
}

func (c *scheduleCmd) Run(ctx context.Context, h *Host) error {
	if _, err := config.Load(c.Job); err != nil {
		return err
	}

	logger := h.loggerFor(c.LogLevel)
	parser := cron.StandardParser
	if c.Seconds {
		parser = cron.SecondsParser
	}
	scheduler := cron.NewScheduler(
		cron.WithParser(parser),
		cron.WithLogger(logger),
		cron.WithLogLevel(cron.LogLevelInfo),
		cron.WithErrorHandler(func(err error) {
			logger.Error("scheduled run failed: %v", err)
		}),
	)

	handle, err := scheduler.ScheduleCron(ctx, cron.ScheduleConfig{
		Expression: c.Expression,
		MaxRuns:    c.MaxRuns,
	}, func(ctx context.Context) error {
		job, err := config.Load(c.Job)
		if err != nil {
			return err
		}
		_, err = h.RunJob(ctx, job, RunOptions{LogLevel: c.LogLevel})
		return err
	})
	if err != nil {
		return err
	}

	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	select {
	case <-handle.Done():
	case <-ctx.Done():
	}
	return scheduler.Stop(context.Background())
}

type historyCmd struct {
	DSN       string `arg:"" help:"SQLite database holding the run history."`
	Processor string `help:"Only show runs of this process type."`
	Limit     int    `help:"Maximum number of runs to show." default:"20"`
}

func (c *historyCmd) Run(ctx context.Context, h *Host) error {
	store, err := history.Open(c.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(ctx, c.Processor, c.Limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(h.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tPROCESSOR\tDISPOSITION\tCOMPLETED\tFAILED\tSTARTED")
	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			rec.RunID, rec.Processor, rec.Disposition, rec.Completed, rec.Failed,
			rec.StartedAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

// Execute parses args and runs the selected command.
func (h *Host) Execute(ctx context.Context, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var root cli
	parser, err := kong.New(&root,
		kong.Name(h.name),
		kong.Description("Runs batch processors from job files."),
		kong.Writers(h.out, h.errOut),
		kong.Exit(func(int) {}),
		kong.Bind(h),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	if err != nil {
		return err
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return kctx.Run()
}
