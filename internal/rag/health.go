package rag

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/archrag/internal/embed"
)

// ServiceState is the probe outcome for one component.
type ServiceState struct {
	Status string `json:"status"` // "up", "down", or "disabled"
	Detail string `json:"detail,omitempty"`
}

// HealthReport is the GET /health payload body. Cache and web are soft
// dependencies: their state never flips Healthy.
type HealthReport struct {
	Healthy  bool                    `json:"-"`
	Services map[string]ServiceState `json:"services"`
}

// Health probes every component. Vector, keyword, embedder, and llm are
// hard dependencies; cache degrades to uncached queries and stays soft.
func (o *Orchestrator) Health(ctx context.Context) *HealthReport {
	report := &HealthReport{
		Healthy:  true,
		Services: make(map[string]ServiceState, 5),
	}

	if o.c.Vectors == nil {
		report.Services["vector"] = ServiceState{Status: "down", Detail: "not configured"}
		report.Healthy = false
	} else {
		info := o.c.Vectors.Info()
		report.Services["vector"] = ServiceState{
			Status: "up",
			Detail: fmt.Sprintf("%d points", info.PointCount),
		}
	}

	if o.c.Keywords == nil {
		report.Services["keyword"] = ServiceState{Status: "down", Detail: "not configured"}
		report.Healthy = false
	} else if n, err := o.c.Keywords.Count(); err != nil {
		report.Services["keyword"] = ServiceState{Status: "down", Detail: err.Error()}
		report.Healthy = false
	} else {
		report.Services["keyword"] = ServiceState{
			Status: "up",
			Detail: fmt.Sprintf("%d documents", n),
		}
	}

	report.Services["embedder"] = o.embedderState(ctx)
	if report.Services["embedder"].Status == "down" {
		report.Healthy = false
	}

	switch {
	case o.c.Cache == nil:
		report.Services["cache"] = ServiceState{Status: "disabled"}
	case o.c.Cache.Enabled():
		report.Services["cache"] = ServiceState{Status: "up"}
	default:
		// Soft dependency: queries run uncached.
		report.Services["cache"] = ServiceState{Status: "down", Detail: "backend unreachable"}
	}

	switch {
	case o.c.Generator == nil:
		report.Services["llm"] = ServiceState{Status: "down", Detail: "not configured"}
		report.Healthy = false
	case o.c.Generator.Available(ctx):
		report.Services["llm"] = ServiceState{Status: "up", Detail: o.c.Generator.BackendName()}
	default:
		report.Services["llm"] = ServiceState{
			Status: "down",
			Detail: o.c.Generator.BackendName() + " not responding",
		}
		report.Healthy = false
	}

	return report
}

// embedderState probes the local embedding model when the embedder is
// the standard service. Other implementations are assumed healthy.
func (o *Orchestrator) embedderState(ctx context.Context) ServiceState {
	if o.c.Embedder == nil {
		return ServiceState{Status: "down", Detail: "not configured"}
	}
	svc, ok := o.c.Embedder.(*embed.Service)
	if !ok {
		return ServiceState{Status: "up"}
	}
	local := svc.Local()
	if !local.Available(ctx) {
		return ServiceState{Status: "down", Detail: local.Name() + " not responding"}
	}
	return ServiceState{Status: "up", Detail: local.Name()}
}
