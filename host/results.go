package host

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"
	processor "github.com/goliatone/go-processor"
	"github.com/goliatone/go-processor/events"
	"github.com/goliatone/go-processor/execution"
	"github.com/goliatone/go-processor/stats"
)

// MaxFailedItems caps the failed items kept in a result log.
const MaxFailedItems = 10

// FailedItem is a failed item as written to the result log.
type FailedItem struct {
	ID       string          `json:"id"`
	Category string          `json:"category,omitempty"`
	Stage    processor.Stage `json:"stage,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Document is the JSON result log of one run.
type Document struct {
	Processor string `json:"processor"`
	execution.Report
	FailedItems []FailedItem `json:"failed_items"`
}

// ResultLog collects the first failed items of a run.
type ResultLog struct {
	processType string

	mu     sync.Mutex
	failed []FailedItem
}

func NewResultLog(processType string) *ResultLog {
	return &ResultLog{processType: processType}
}

// Attach records failed items published by o.
func (l *ResultLog) Attach(o *events.Observers) events.Subscription {
	return o.OnItemCompleted(func(_ context.Context, e events.ItemCompleted) error {
		if e.Outcome == nil || e.Outcome.IsSuccessful {
			return nil
		}
		l.mu.Lock()
		defer l.mu.Unlock()
		if len(l.failed) >= MaxFailedItems {
			return nil
		}
		item := FailedItem{ID: e.Outcome.ID, Category: e.Outcome.Category()}
		for _, stage := range []processor.Stage{
			processor.StageProcessAction,
			processor.StageItemID,
			processor.StageCursorRead,
			processor.StageCursorAdvance,
		} {
			if o, ok := e.Outcome.Stage(stage); ok && o.Err != nil {
				item.Stage = stage
				item.Error = o.Err.Error()
				break
			}
		}
		l.failed = append(l.failed, item)
		return nil
	})
}

func (l *ResultLog) FailedItems() []FailedItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]FailedItem, len(l.failed))
	copy(out, l.failed)
	return out
}

func (l *ResultLog) Document(report execution.Report) Document {
	return Document{
		Processor:   l.processType,
		Report:      report,
		FailedItems: l.FailedItems(),
	}
}

func (l *ResultLog) Write(w io.Writer, report execution.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(l.Document(report))
}

// WriteFile writes the result log to path, creating parent directories.
func (l *ResultLog) WriteFile(path string, report execution.Report) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := l.Write(f, report); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

var (
	successColor = color.New(color.FgGreen, color.Bold)
	warnColor    = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	dimColor     = color.New(color.FgHiBlack)
	boldColor    = color.New(color.Bold)
)

func dispositionColor(d processor.Disposition) *color.Color {
	switch d {
	case processor.DispositionSuccessful:
		return successColor
	case processor.DispositionCancelled:
		return warnColor
	default:
		return errorColor
	}
}

// PrintSummary renders report for a terminal.
func PrintSummary(w io.Writer, r execution.Report) {
	boldColor.Fprintf(w, "Run %s ", r.RunID)
	dispositionColor(r.Disposition).Fprintln(w, strings.ToUpper(r.Disposition.String()))

	total := "unknown"
	if r.TotalItems != nil {
		total = fmt.Sprint(*r.TotalItems)
	}
	fmt.Fprintf(w, "  items:      %d of %s completed, %d successful, %d failed\n",
		r.Completed, total, r.Successful, r.Failed)
	fmt.Fprintf(w, "  item time:  %s average (%d), %s last minute (%d)\n",
		r.AllTime.Mean(), r.AllTime.Count, r.LastMinute.Mean(), r.LastMinute.Count)
	if !r.CompletedAt.IsZero() && !r.StartedAt.IsZero() {
		fmt.Fprintf(w, "  duration:   %s\n", r.CompletedAt.Sub(r.StartedAt))
	}

	if len(r.Categories) > 0 {
		cats := make([]stats.Category, len(r.Categories))
		copy(cats, r.Categories)
		sort.Slice(cats, func(i, j int) bool {
			if cats[i].Name != cats[j].Name {
				return cats[i].Name < cats[j].Name
			}
			return cats[i].IsSuccessful && !cats[j].IsSuccessful
		})
		fmt.Fprintln(w, "  categories:")
		for _, c := range cats {
			countColor := successColor
			if !c.IsSuccessful {
				countColor = errorColor
			}
			name := c.Name
			if name == "" {
				name = "(uncategorized)"
			}
			fmt.Fprintf(w, "    %-24s ", name)
			countColor.Fprintf(w, "%d\n", c.Count)
		}
	}

	fmt.Fprintln(w, "  stages:")
	for _, s := range r.Stages {
		fmt.Fprintf(w, "    %-14s ", s.Stage)
		dimColor.Fprintf(w, "%s", s.Duration)
		if s.Error != "" {
			errorColor.Fprintf(w, "  %s", s.Error)
		}
		fmt.Fprintln(w)
	}

	if r.Error != "" {
		errorColor.Fprintf(w, "  failed in %s: %s\n", r.FailedStage, r.Error)
	}
}
