// Package logs fetches and tails CloudWatch log events for a service's
// log group. It prints through the shared printer so color handling and
// stream redirection match the rest of the tool.
package logs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bgdnvk/fargo/internal/aws"
	"github.com/bgdnvk/fargo/internal/clock"
	"github.com/bgdnvk/fargo/internal/output"
)

const (
	// followPollInterval is how often follow mode re-queries the log
	// group when no interval override is given.
	followPollInterval = 5 * time.Second

	// maxMessageLen bounds a single rendered log line. CloudWatch
	// events can carry whole stack traces; anything longer gets cut.
	maxMessageLen = 800
)

// API is the slice of the cloud facade the fetcher needs.
type API interface {
	FilterLogEvents(ctx context.Context, filter aws.LogFilter) ([]aws.LogEvent, error)
}

// Options selects what to fetch and how.
type Options struct {
	Group    string
	Since    time.Duration
	Pattern  string
	Limit    int32
	Interval time.Duration
}

// Validate rejects options that cannot describe a fetch.
func (o Options) Validate() error {
	if o.Group == "" {
		return errors.New("log group is required")
	}
	if o.Since <= 0 {
		return errors.New("since must be a positive duration")
	}
	if o.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	return nil
}

// Fetcher reads log events through the facade and renders them.
type Fetcher struct {
	api     API
	clock   clock.Clock
	printer *output.Printer
}

// NewFetcher wires a fetcher to a facade, a clock and a printer.
func NewFetcher(api API, clk clock.Clock, printer *output.Printer) *Fetcher {
	return &Fetcher{api: api, clock: clk, printer: printer}
}

// Fetch prints every event in the window [now-Since, now] once.
func (f *Fetcher) Fetch(ctx context.Context, opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	now := f.clock.Now()
	events, err := f.api.FilterLogEvents(ctx, aws.LogFilter{
		Group:   opts.Group,
		Start:   now.Add(-opts.Since),
		End:     now,
		Pattern: opts.Pattern,
		Limit:   opts.Limit,
	})
	if err != nil {
		return fmt.Errorf("fetch logs for %s: %w", opts.Group, err)
	}
	if len(events) == 0 {
		f.printer.Info("no log events in the last %s", opts.Since)
		return nil
	}
	f.printEvents(events)
	return nil
}

// Follow prints the initial window, then polls for newer events until
// the context is canceled. Each poll starts just past the last event
// already printed, so nothing is repeated. Transient API errors are
// reported and skipped; tailing usually happens mid-incident, when
// throttling is most likely.
func (f *Fetcher) Follow(ctx context.Context, opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = followPollInterval
	}

	cursor := f.clock.Now().Add(-opts.Since)
	for {
		events, err := f.api.FilterLogEvents(ctx, aws.LogFilter{
			Group:   opts.Group,
			Start:   cursor,
			Pattern: opts.Pattern,
		})
		switch {
		case err != nil && ctx.Err() != nil:
			return nil
		case err != nil:
			f.printer.Warning("fetch failed, retrying: %v", err)
		default:
			f.printEvents(events)
			cursor = advanceCursor(cursor, events)
		}

		if ctx.Err() != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-f.clock.After(interval):
		}
	}
}

func (f *Fetcher) printEvents(events []aws.LogEvent) {
	for _, e := range events {
		f.printer.Print("%s  %s  %s",
			f.printer.Dim(e.Timestamp.Format("2006-01-02 15:04:05")),
			shortStream(e.Stream),
			truncate(e.Message, maxMessageLen))
	}
}

// advanceCursor moves the poll window just past the newest event seen.
// CloudWatch timestamps have millisecond precision, so one millisecond
// past the last event excludes it without skipping anything.
func advanceCursor(cursor time.Time, events []aws.LogEvent) time.Time {
	for _, e := range events {
		if !e.Timestamp.Before(cursor) {
			cursor = e.Timestamp.Add(time.Millisecond)
		}
	}
	return cursor
}

// shortStream trims an ECS stream name like ecs/web/3f2a9c1d... down to
// its task-id tail, keeping lines scannable.
func shortStream(stream string) string {
	if i := strings.LastIndex(stream, "/"); i >= 0 {
		stream = stream[i+1:]
	}
	if len(stream) > 12 {
		stream = stream[:12]
	}
	return stream
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
