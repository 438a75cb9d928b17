package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bgdnvk/fargo/internal/aws"
	"github.com/bgdnvk/fargo/internal/output"
)

type svcResult struct {
	snap aws.ServiceSnapshot
	err  error
}

// tasksResult scripts one iteration's task check: the listed ARNs, the
// snapshots DescribeTasks resolves them to, and optional errors for
// either call.
type tasksResult struct {
	arns        []string
	snaps       []aws.TaskSnapshot
	listErr     error
	describeErr error
}

type targetsResult struct {
	targets []aws.TargetHealthSnapshot
	err     error
}

func pop[T any](queue *[]T) (T, bool) {
	var zero T
	if len(*queue) == 0 {
		return zero, false
	}
	head := (*queue)[0]
	if len(*queue) > 1 {
		*queue = (*queue)[1:]
	}
	return head, true
}

// fakeAPI scripts one result per iteration for each check, sticking on
// the last entry once a queue runs out.
type fakeAPI struct {
	services []svcResult
	tasks    []tasksResult
	targets  []targetsResult

	util    aws.ServiceUtilization
	utilErr error

	eniFound map[string]bool

	currentTasks tasksResult

	describeCalls      int
	listCalls          int
	describeTasksCalls int
	targetCalls        int
	utilCalls          int
	eniCalls           int
}

func (f *fakeAPI) DescribeService(ctx context.Context, cluster, service string) (aws.ServiceSnapshot, error) {
	f.describeCalls++
	r, ok := pop(&f.services)
	if !ok {
		return aws.ServiceSnapshot{}, errors.New("fakeAPI: no scripted service result")
	}
	return r.snap, r.err
}

func (f *fakeAPI) ListRunningTasks(ctx context.Context, cluster, service string) ([]string, error) {
	f.listCalls++
	r, _ := pop(&f.tasks)
	f.currentTasks = r
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.arns, nil
}

func (f *fakeAPI) DescribeTasks(ctx context.Context, cluster string, taskARNs []string) ([]aws.TaskSnapshot, error) {
	f.describeTasksCalls++
	if f.currentTasks.describeErr != nil {
		return nil, f.currentTasks.describeErr
	}
	return f.currentTasks.snaps, nil
}

func (f *fakeAPI) DescribeTargetHealth(ctx context.Context, targetGroupARN string) ([]aws.TargetHealthSnapshot, error) {
	f.targetCalls++
	r, _ := pop(&f.targets)
	if r.err != nil {
		return nil, r.err
	}
	return r.targets, nil
}

func (f *fakeAPI) ServiceUtilization(ctx context.Context, cluster, service string) (aws.ServiceUtilization, error) {
	f.utilCalls++
	return f.util, f.utilErr
}

func (f *fakeAPI) FindNetworkInterfaceByIP(ctx context.Context, privateIP string) (bool, string, error) {
	f.eniCalls++
	return f.eniFound[privateIP], "eni-0abc (in-use)", nil
}

// fakeClock advances virtual time on every After call.
type fakeClock struct {
	now    time.Time
	sleeps int
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (f *fakeClock) Now() time.Time {
	return f.now
}

func (f *fakeClock) After(d time.Duration) <-chan time.Time {
	f.sleeps++
	f.now = f.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- f.now
	return ch
}

type recordingRenderer struct {
	verdicts []Verdict
}

func (r *recordingRenderer) Render(v Verdict) error {
	r.verdicts = append(r.verdicts, v)
	return nil
}

func validConfig() Config {
	return Config{
		Cluster:       "prod",
		Service:       "web",
		Interval:      10 * time.Second,
		MaxIterations: 1,
	}
}

func healthyIteration() (svcResult, tasksResult) {
	svc := svcResult{snap: aws.ServiceSnapshot{
		Cluster: "prod", Service: "web", Status: "ACTIVE",
		RunningCount: 2, DesiredCount: 2, ActiveDeployments: 1,
	}}
	tasks := tasksResult{
		arns: []string{"arn:task/a", "arn:task/b"},
		snaps: []aws.TaskSnapshot{
			{TaskID: "a", Health: aws.HealthHealthy},
			{TaskID: "b", Health: aws.HealthHealthy},
		},
	}
	return svc, tasks
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"minimum interval", func(c *Config) { c.Interval = 5 * time.Second }, false},
		{"interval too short", func(c *Config) { c.Interval = 4 * time.Second }, true},
		{"empty cluster", func(c *Config) { c.Cluster = "" }, true},
		{"empty service", func(c *Config) { c.Service = "" }, true},
		{"negative iterations", func(c *Config) { c.MaxIterations = -1 }, true},
		{"unbounded iterations", func(c *Config) { c.MaxIterations = 0 }, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := validConfig()
			c.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != c.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, c.wantErr)
			}
		})
	}
}

func TestRunInvalidConfigMakesNoCalls(t *testing.T) {
	f := &fakeAPI{}
	r := &recordingRenderer{}
	m := NewMonitor(f, newFakeClock(), r)

	cfg := validConfig()
	cfg.Interval = time.Second

	_, err := m.Run(context.Background(), cfg)
	if err == nil {
		t.Fatal("Run() error = nil, want interval validation failure")
	}
	if f.describeCalls+f.listCalls+f.targetCalls != 0 {
		t.Error("invalid config still made cloud calls, want 0")
	}
	if len(r.verdicts) != 0 {
		t.Errorf("rendered %d verdicts on invalid config, want 0", len(r.verdicts))
	}
}

func TestRunHealthyService(t *testing.T) {
	svc, tasks := healthyIteration()
	f := &fakeAPI{services: []svcResult{svc}, tasks: []tasksResult{tasks}}
	r := &recordingRenderer{}
	m := NewMonitor(f, newFakeClock(), r)

	v, err := m.Run(context.Background(), validConfig())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if v.HasCriticalIssues {
		t.Error("HasCriticalIssues = true for healthy service, want false")
	}
	if v.TaskCheck.Healthy != 2 {
		t.Errorf("TaskCheck.Healthy = %d, want 2", v.TaskCheck.Healthy)
	}
	if f.targetCalls != 0 {
		t.Errorf("target check ran %d times without a target group, want 0", f.targetCalls)
	}
}

func TestRunUnhealthyTaskIsCritical(t *testing.T) {
	svc, tasks := healthyIteration()
	tasks.snaps[1].Health = aws.HealthUnhealthy
	f := &fakeAPI{services: []svcResult{svc}, tasks: []tasksResult{tasks}}
	m := NewMonitor(f, newFakeClock(), &recordingRenderer{})

	v, err := m.Run(context.Background(), validConfig())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !v.HasCriticalIssues {
		t.Error("HasCriticalIssues = false with an UNHEALTHY task, want true")
	}
}

func TestRunZeroTasksIsCritical(t *testing.T) {
	svc, _ := healthyIteration()
	f := &fakeAPI{services: []svcResult{svc}, tasks: []tasksResult{{}}}
	m := NewMonitor(f, newFakeClock(), &recordingRenderer{})

	v, err := m.Run(context.Background(), validConfig())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !v.HasCriticalIssues {
		t.Error("HasCriticalIssues = false with zero running tasks, want true")
	}
	if f.describeTasksCalls != 0 {
		t.Errorf("DescribeTasks called %d times for zero tasks, want 0", f.describeTasksCalls)
	}
}

func TestRunUnhealthyTargetIsCritical(t *testing.T) {
	svc, tasks := healthyIteration()
	f := &fakeAPI{
		services: []svcResult{svc},
		tasks:    []tasksResult{tasks},
		targets: []targetsResult{{targets: []aws.TargetHealthSnapshot{
			{TargetID: "10.0.1.5", Port: 3000, State: "healthy"},
			{TargetID: "10.0.2.6", Port: 3000, State: "unhealthy", Reason: "Target.FailedHealthChecks"},
		}}},
		eniFound: map[string]bool{"10.0.1.5": true},
	}
	m := NewMonitor(f, newFakeClock(), &recordingRenderer{})

	cfg := validConfig()
	cfg.TargetGroupARN = "arn:aws:elasticloadbalancing:us-east-1:123456789012:targetgroup/web/abc123"

	v, err := m.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !v.HasCriticalIssues {
		t.Error("HasCriticalIssues = false with an unhealthy target, want true")
	}
	if len(v.TargetCheck.Notes) == 0 {
		t.Error("unhealthy target with no ENI produced no orphan note")
	}
}

func TestRunExactIterationCount(t *testing.T) {
	svc, tasks := healthyIteration()
	f := &fakeAPI{services: []svcResult{svc}, tasks: []tasksResult{tasks}}
	r := &recordingRenderer{}
	clk := newFakeClock()
	m := NewMonitor(f, clk, r)

	cfg := validConfig()
	cfg.MaxIterations = 3

	v, err := m.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(r.verdicts) != 3 {
		t.Fatalf("rendered %d verdicts, want exactly 3", len(r.verdicts))
	}
	for i, got := range r.verdicts {
		if got.Iteration != i+1 {
			t.Errorf("verdict %d has Iteration = %d, want %d", i, got.Iteration, i+1)
		}
	}
	if v.Iteration != 3 {
		t.Errorf("returned verdict Iteration = %d, want 3 (the final one)", v.Iteration)
	}
	if clk.sleeps != 2 {
		t.Errorf("slept %d times, want 2 (between 3 iterations, not after the last)", clk.sleeps)
	}
}

func TestRunFinalIterationDecides(t *testing.T) {
	svc, tasks := healthyIteration()

	// Two critical iterations (zero tasks), then a healthy one.
	f := &fakeAPI{
		services: []svcResult{svc},
		tasks:    []tasksResult{{}, {}, tasks},
	}
	r := &recordingRenderer{}
	m := NewMonitor(f, newFakeClock(), r)

	cfg := validConfig()
	cfg.MaxIterations = 3

	v, err := m.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !r.verdicts[0].HasCriticalIssues || !r.verdicts[1].HasCriticalIssues {
		t.Error("early iterations should have been critical")
	}
	if v.HasCriticalIssues {
		t.Error("final verdict critical = true, want false: only the last iteration counts")
	}
}

func TestRunSelfHealsAfterAPIError(t *testing.T) {
	svc, tasks := healthyIteration()
	f := &fakeAPI{
		services: []svcResult{{err: errors.New("ThrottlingException")}, svc},
		tasks:    []tasksResult{tasks},
	}
	r := &recordingRenderer{}
	m := NewMonitor(f, newFakeClock(), r)

	cfg := validConfig()
	cfg.MaxIterations = 2

	v, err := m.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run() error = %v, the loop must survive check errors", err)
	}
	if len(r.verdicts) != 2 {
		t.Fatalf("rendered %d verdicts, want 2", len(r.verdicts))
	}
	first := r.verdicts[0]
	if !first.HasCriticalIssues {
		t.Error("iteration with a failed service check should be critical")
	}
	if first.ServiceCheck.Err == "" {
		t.Error("failed check did not record its error")
	}
	if v.HasCriticalIssues {
		t.Error("recovered iteration still critical, want false")
	}
}

func TestRunStopsCleanlyOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc, tasks := healthyIteration()
	f := &fakeAPI{services: []svcResult{svc}, tasks: []tasksResult{tasks}}
	r := &recordingRenderer{}
	m := NewMonitor(f, newFakeClock(), r)

	cfg := validConfig()
	cfg.MaxIterations = 0 // unbounded: only the interrupt stops it

	_, err := m.Run(ctx, cfg)
	if err != nil {
		t.Fatalf("Run() error = %v, want nil on interrupt", err)
	}
	if len(r.verdicts) != 1 {
		t.Errorf("rendered %d verdicts after interrupt, want 1", len(r.verdicts))
	}
}

func TestRunWithMetrics(t *testing.T) {
	svc, tasks := healthyIteration()
	f := &fakeAPI{
		services: []svcResult{svc},
		tasks:    []tasksResult{tasks},
		util:     aws.ServiceUtilization{CPUPercent: 12.5, MemoryPercent: 40.0, HasData: true},
	}
	m := NewMonitor(f, newFakeClock(), &recordingRenderer{})

	cfg := validConfig()
	cfg.WithMetrics = true

	v, err := m.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if v.Utilization == nil {
		t.Fatal("Utilization = nil, want populated")
	}
	if v.Utilization.CPUPercent != 12.5 {
		t.Errorf("CPUPercent = %f, want 12.5", v.Utilization.CPUPercent)
	}
}

func TestRunMetricsErrorTolerated(t *testing.T) {
	svc, tasks := healthyIteration()
	f := &fakeAPI{
		services: []svcResult{svc},
		tasks:    []tasksResult{tasks},
		utilErr:  errors.New("AccessDenied"),
	}
	m := NewMonitor(f, newFakeClock(), &recordingRenderer{})

	cfg := validConfig()
	cfg.WithMetrics = true

	v, err := m.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if v.Utilization != nil {
		t.Error("Utilization populated despite metric error, want nil")
	}
	if v.HasCriticalIssues {
		t.Error("metric failure marked the iteration critical, want informational only")
	}
}

func TestJSONRendererEmitsRequiredFields(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONRenderer(&buf)

	v := Verdict{
		Iteration: 4,
		Timestamp: time.Unix(1700000000, 0).UTC(),
		Cluster:   "prod",
		Service:   "web",
		ServiceCheck: ServiceCheck{
			Status: "ACTIVE", RunningCount: 2, DesiredCount: 2, ActiveDeployments: 1,
		},
		TaskCheck:         TaskCheck{Total: 2, Healthy: 2},
		TargetCheck:       TargetCheck{Configured: false},
		HasCriticalIssues: false,
	}
	if err := r.Render(v); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	for _, key := range []string{"iteration", "timestamp", "cluster", "service", "serviceCheck", "taskCheck", "targetCheck", "hasCriticalIssues"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("JSON record missing %q:\n%s", key, buf.String())
		}
	}
	svcCheck, ok := decoded["serviceCheck"].(map[string]any)
	if !ok {
		t.Fatal("serviceCheck is not an object")
	}
	if got := svcCheck["runningCount"].(float64); got != 2 {
		t.Errorf("serviceCheck.runningCount = %v, want 2", got)
	}
}

func TestDashboardRendersSections(t *testing.T) {
	var buf bytes.Buffer
	printer := output.NewPrinterWithWriters(&buf, &buf, false)
	d := NewDashboard(printer, false)

	v := Verdict{
		Iteration: 1,
		Timestamp: time.Unix(1700000000, 0).UTC(),
		Cluster:   "prod",
		Service:   "web",
		ServiceCheck: ServiceCheck{
			Status: "ACTIVE", RunningCount: 2, DesiredCount: 2, ActiveDeployments: 1,
		},
		TaskCheck: TaskCheck{
			Total: 1, Healthy: 1,
			Tasks: []aws.TaskSnapshot{{TaskID: "3f2a9c", LastStatus: "RUNNING", Health: "HEALTHY", CPU: "256", Memory: "512", PrivateIP: "10.0.1.23", AvailabilityZone: "us-east-1a"}},
		},
		TargetCheck: TargetCheck{Configured: false},
	}
	if err := d.Render(v); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	got := buf.String()
	for _, want := range []string{"prod/web", "3f2a9c", "10.0.1.23", "no critical issues", "ALB check skipped"} {
		if !strings.Contains(got, want) {
			t.Errorf("dashboard missing %q:\n%s", want, got)
		}
	}
}

func TestDashboardRendersCriticalVerdict(t *testing.T) {
	var buf bytes.Buffer
	printer := output.NewPrinterWithWriters(&buf, &buf, false)
	d := NewDashboard(printer, false)

	v := Verdict{
		Iteration:         1,
		Cluster:           "prod",
		Service:           "web",
		ServiceCheck:      ServiceCheck{Status: "ACTIVE", RunningCount: 0, DesiredCount: 2, Critical: true, Warnings: []string{"running 0 of 2 desired tasks"}},
		TaskCheck:         TaskCheck{Critical: true},
		TargetCheck:       TargetCheck{Configured: false},
		HasCriticalIssues: true,
	}
	if err := d.Render(v); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	got := buf.String()
	for _, want := range []string{"critical issues detected", "no running tasks", "running 0 of 2 desired tasks"} {
		if !strings.Contains(got, want) {
			t.Errorf("dashboard missing %q:\n%s", want, got)
		}
	}
}
