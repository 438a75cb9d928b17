// Package monitor polls an ECS service, its tasks and optionally an ALB
// target group, aggregating each round into a single verdict. It never
// mutates cloud state.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/bgdnvk/fargo/internal/aws"
	"github.com/bgdnvk/fargo/internal/clock"
)

// minInterval keeps the loop from hammering the control plane.
const minInterval = 5 * time.Second

// API is the slice of the cloud facade the monitor reads from.
type API interface {
	DescribeService(ctx context.Context, cluster, service string) (aws.ServiceSnapshot, error)
	ListRunningTasks(ctx context.Context, cluster, service string) ([]string, error)
	DescribeTasks(ctx context.Context, cluster string, taskARNs []string) ([]aws.TaskSnapshot, error)
	DescribeTargetHealth(ctx context.Context, targetGroupARN string) ([]aws.TargetHealthSnapshot, error)
	ServiceUtilization(ctx context.Context, cluster, service string) (aws.ServiceUtilization, error)
	FindNetworkInterfaceByIP(ctx context.Context, privateIP string) (bool, string, error)
}

// Config selects what to watch and how often.
type Config struct {
	Cluster        string
	Service        string
	TargetGroupARN string
	Interval       time.Duration
	// MaxIterations bounds the loop; zero means run until interrupted.
	MaxIterations int
	WithMetrics   bool
}

// Validate rejects a config before any cloud call is made.
func (c Config) Validate() error {
	if c.Cluster == "" {
		return fmt.Errorf("cluster name is required")
	}
	if c.Service == "" {
		return fmt.Errorf("service name is required")
	}
	if c.Interval < minInterval {
		return fmt.Errorf("interval must be at least %s, got %s", minInterval, c.Interval)
	}
	if c.MaxIterations < 0 {
		return fmt.Errorf("iterations must be zero or positive, got %d", c.MaxIterations)
	}
	return nil
}

// Verdict is one iteration's aggregated health picture. It is computed
// fresh every round; nothing carries over between iterations.
type Verdict struct {
	Iteration         int                     `json:"iteration" yaml:"iteration"`
	Timestamp         time.Time               `json:"timestamp" yaml:"timestamp"`
	Cluster           string                  `json:"cluster" yaml:"cluster"`
	Service           string                  `json:"service" yaml:"service"`
	ServiceCheck      ServiceCheck            `json:"serviceCheck" yaml:"serviceCheck"`
	TaskCheck         TaskCheck               `json:"taskCheck" yaml:"taskCheck"`
	TargetCheck       TargetCheck             `json:"targetCheck" yaml:"targetCheck"`
	Utilization       *aws.ServiceUtilization `json:"utilization,omitempty" yaml:"utilization,omitempty"`
	HasCriticalIssues bool                    `json:"hasCriticalIssues" yaml:"hasCriticalIssues"`
}

// Renderer consumes one verdict per iteration. Exactly one renderer runs
// per invocation: the dashboard or a machine-readable encoder.
type Renderer interface {
	Render(v Verdict) error
}

// Monitor runs the health loop.
type Monitor struct {
	api      API
	clock    clock.Clock
	renderer Renderer
}

// NewMonitor wires a monitor to a facade, a clock and a renderer.
func NewMonitor(api API, clk clock.Clock, renderer Renderer) *Monitor {
	return &Monitor{api: api, clock: clk, renderer: renderer}
}

// Run executes check iterations until MaxIterations is reached or the
// context is canceled. The returned verdict is the final iteration's;
// earlier iterations never influence the exit signal. A cloud error
// inside a check marks that iteration critical but never stops the loop.
func (m *Monitor) Run(ctx context.Context, cfg Config) (Verdict, error) {
	if err := cfg.Validate(); err != nil {
		return Verdict{}, err
	}

	var last Verdict
	for i := 1; ; i++ {
		last = m.iteration(ctx, cfg, i)
		if err := m.renderer.Render(last); err != nil {
			return last, fmt.Errorf("render iteration %d: %w", i, err)
		}

		if cfg.MaxIterations > 0 && i >= cfg.MaxIterations {
			return last, nil
		}
		if ctx.Err() != nil {
			// Interrupted: stop cleanly on the verdict we already have.
			return last, nil
		}
		select {
		case <-ctx.Done():
			return last, nil
		case <-m.clock.After(cfg.Interval):
		}
	}
}

// iteration performs the three checks strictly in sequence and combines
// their critical flags. Each check returns its result as a value; the
// aggregation here is the only place they meet.
func (m *Monitor) iteration(ctx context.Context, cfg Config, i int) Verdict {
	v := Verdict{
		Iteration: i,
		Timestamp: m.clock.Now(),
		Cluster:   cfg.Cluster,
		Service:   cfg.Service,
	}

	v.ServiceCheck = m.checkService(ctx, cfg)
	v.TaskCheck = m.checkTasks(ctx, cfg)
	v.TargetCheck = m.checkTargets(ctx, cfg)

	if cfg.WithMetrics {
		if util, err := m.api.ServiceUtilization(ctx, cfg.Cluster, cfg.Service); err == nil && util.HasData {
			v.Utilization = &util
		}
	}

	v.HasCriticalIssues = v.ServiceCheck.Critical || v.TaskCheck.Critical || v.TargetCheck.Critical
	return v
}
