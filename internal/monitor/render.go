package monitor

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/bgdnvk/fargo/internal/output"
)

// Dashboard renders verdicts for an operator at a terminal. With Refresh
// set it clears the screen between iterations like a top-style watch.
type Dashboard struct {
	printer *output.Printer
	refresh bool
}

// NewDashboard creates the interactive renderer.
func NewDashboard(printer *output.Printer, refresh bool) *Dashboard {
	return &Dashboard{printer: printer, refresh: refresh}
}

func (d *Dashboard) Render(v Verdict) error {
	p := d.printer
	if d.refresh {
		p.ClearScreen()
	}

	p.Header(fmt.Sprintf("%s/%s", v.Cluster, v.Service))
	p.Print("%s", p.Dim(fmt.Sprintf("iteration %d at %s", v.Iteration, v.Timestamp.Format("2006-01-02 15:04:05"))))

	d.renderService(v.ServiceCheck)
	d.renderTasks(v.TaskCheck)
	d.renderTargets(v.TargetCheck)

	if v.Utilization != nil {
		p.Print("")
		p.Print("CPU %.1f%%  memory %.1f%%", v.Utilization.CPUPercent, v.Utilization.MemoryPercent)
	}

	p.Print("")
	if v.HasCriticalIssues {
		p.Error("critical issues detected")
	} else {
		p.Success("no critical issues")
	}
	return nil
}

func (d *Dashboard) renderService(check ServiceCheck) {
	p := d.printer
	p.Print("")
	if check.Err != "" {
		p.Error("service check failed: %s", check.Err)
		return
	}

	p.Print("%s service %s: running %d/%d (pending %d), deployments %d",
		p.StatusBadge(check.Status), check.Status,
		check.RunningCount, check.DesiredCount, check.PendingCount, check.ActiveDeployments)
	if check.LatestEvent != "" {
		p.Print("  %s", p.Dim(truncate(check.LatestEvent, 120)))
	}
	for _, w := range check.Warnings {
		p.Warning("%s", w)
	}
	for _, n := range check.Notes {
		p.Info("%s", n)
	}
}

func (d *Dashboard) renderTasks(check TaskCheck) {
	p := d.printer
	p.Print("")
	if check.Err != "" {
		p.Error("task check failed: %s", check.Err)
		return
	}
	if check.Total == 0 {
		p.Error("no running tasks")
		return
	}

	table := output.NewTableWithWriter(p.Out(), []string{"TASK", "STATUS", "HEALTH", "CPU", "MEMORY", "IP", "AZ"})
	for _, task := range check.Tasks {
		table.AddRow([]string{
			task.TaskID,
			task.LastStatus,
			fmt.Sprintf("%s %s", p.StatusBadge(task.Health), task.Health),
			task.CPU,
			task.Memory,
			task.PrivateIP,
			task.AvailabilityZone,
		})
	}
	table.Render()
	p.Print("%d healthy, %d unhealthy, %d unknown", check.Healthy, check.Unhealthy, check.Unknown)
}

func (d *Dashboard) renderTargets(check TargetCheck) {
	p := d.printer
	p.Print("")
	if !check.Configured {
		p.Print("%s", p.Dim("no target group configured; ALB check skipped"))
		return
	}
	if check.Err != "" {
		p.Error("target check failed: %s", check.Err)
		return
	}
	if check.Total == 0 {
		p.Warning("target group has no registered targets")
		return
	}

	table := output.NewTableWithWriter(p.Out(), []string{"TARGET", "PORT", "STATE", "REASON"})
	for _, target := range check.Targets {
		table.AddRow([]string{
			target.TargetID,
			fmt.Sprintf("%d", target.Port),
			fmt.Sprintf("%s %s", p.StatusBadge(target.State), target.State),
			target.Reason,
		})
	}
	table.Render()
	for _, n := range check.Notes {
		p.Info("%s", n)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// JSONRenderer emits one indented JSON object per iteration on its
// writer, nothing else, so automation can parse stdout directly.
type JSONRenderer struct {
	enc *json.Encoder
}

// NewJSONRenderer creates the JSON snapshot renderer.
func NewJSONRenderer(w io.Writer) *JSONRenderer {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return &JSONRenderer{enc: enc}
}

func (r *JSONRenderer) Render(v Verdict) error {
	return r.enc.Encode(v)
}

// YAMLRenderer emits one YAML document per iteration.
type YAMLRenderer struct {
	enc *yaml.Encoder
}

// NewYAMLRenderer creates the YAML snapshot renderer.
func NewYAMLRenderer(w io.Writer) *YAMLRenderer {
	return &YAMLRenderer{enc: yaml.NewEncoder(w)}
}

func (r *YAMLRenderer) Render(v Verdict) error {
	return r.enc.Encode(v)
}
