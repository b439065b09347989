// Package diagnostics provides a processor whose behavior in every stage is
// driven by configuration. It is used to exercise hosts and the engine.
package diagnostics

import (
	"context"
	"fmt"
	"sync"
	"time"

	processor "github.com/goliatone/go-processor"
)

// DiagnosticError is returned from the stage named by Config.FailIn.
type DiagnosticError struct {
	Stage processor.Stage
}

func (e *DiagnosticError) Error() string {
	return fmt.Sprintf("diagnostic failure in %s because fail_in is %q", e.Stage, e.Stage)
}

// Processor processes the integers [0, NumberOfItems).
type Processor struct {
	config Config

	mu          sync.Mutex
	attempts    map[int]int
	processed   []int
	finalized   int
	disposition processor.Disposition
}

func New(cfg Config) *Processor {
	return &Processor{
		config:   cfg,
		attempts: make(map[int]int),
	}
}

func (p *Processor) failIn(stage processor.Stage) error {
	if p.config.FailIn == stage {
		return &DiagnosticError{Stage: stage}
	}
	return nil
}

func (p *Processor) Options() processor.Options {
	return processor.Options{CanProcessInParallel: !p.config.Sequential}
}

func (p *Processor) Initialize(context.Context) error {
	return p.failIn(processor.StageInitialize)
}

func (p *Processor) Items(context.Context) (processor.Sequence[int], error) {
	if err := p.failIn(processor.StageGetItems); err != nil {
		return nil, err
	}
	return &sequence{p: p}, nil
}

func (p *Processor) ItemID(_ context.Context, item int) (string, error) {
	if err := p.failIn(processor.StageItemID); err != nil {
		return "", err
	}
	return fmt.Sprintf("item-%d", item), nil
}

func (p *Processor) Process(ctx context.Context, _ processor.Scope, item int) (processor.Result, error) {
	if p.config.ItemDelay > 0 {
		timer := time.NewTimer(p.config.ItemDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return processor.Failure(), ctx.Err()
		case <-timer.C:
		}
	}

	p.mu.Lock()
	p.attempts[item]++
	attempt := p.attempts[item]
	p.processed = append(p.processed, item)
	p.mu.Unlock()

	if err := p.failIn(processor.StageProcessAction); err != nil {
		return processor.Failure(), err
	}
	if attempt <= p.config.FailFirstAttempts {
		return processor.Failure(), fmt.Errorf("attempt %d of item %d failed", attempt, item)
	}
	return p.config.plan(item).WithOutput(attempt), nil
}

func (p *Processor) Finalize(_ context.Context, disposition processor.Disposition) (any, error) {
	p.mu.Lock()
	p.finalized++
	p.disposition = disposition
	processed := len(p.processed)
	p.mu.Unlock()

	if err := p.failIn(processor.StageFinalize); err != nil {
		return nil, err
	}
	return map[string]any{
		"processed":   processed,
		"disposition": disposition.String(),
	}, nil
}

// Processed lists the items handed to Process, one entry per attempt.
func (p *Processor) Processed() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int, len(p.processed))
	copy(out, p.processed)
	return out
}

// Attempts is the number of Process calls made for item.
func (p *Processor) Attempts(item int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts[item]
}

// Finalized is how often Finalize was called and the last disposition it saw.
func (p *Processor) Finalized() (int, processor.Disposition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finalized, p.disposition
}

type sequence struct {
	p *Processor
}

func (s *sequence) Cursor(context.Context) (processor.Cursor[int], error) {
	if err := s.p.failIn(processor.StageGetCursor); err != nil {
		return nil, err
	}
	return &cursor{p: s.p, index: -1}, nil
}

func (s *sequence) CanCount() bool {
	return s.p.config.CanCountItems
}

func (s *sequence) Count(context.Context) (int, error) {
	if err := s.p.failIn(processor.StageCount); err != nil {
		return 0, err
	}
	return s.p.config.NumberOfItems, nil
}

type cursor struct {
	p     *Processor
	index int
}

func (c *cursor) Next(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := c.p.failIn(processor.StageCursorAdvance); err != nil {
		return false, err
	}
	if c.index+1 >= c.p.config.NumberOfItems {
		return false, nil
	}
	c.index++
	return true, nil
}

func (c *cursor) Current() (int, error) {
	if err := c.p.failIn(processor.StageCursorRead); err != nil {
		return 0, err
	}
	return c.index, nil
}
