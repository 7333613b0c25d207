// Package api exposes the identity engine's operations over HTTP and MCP.
// Both transports dispatch to the same kit.Endpoints.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/medrecon/pkg/codice"
	"github.com/hazyhaar/medrecon/pkg/dedupe"
	"github.com/hazyhaar/medrecon/pkg/importer"
	"github.com/hazyhaar/medrecon/pkg/kit"
	"github.com/hazyhaar/medrecon/pkg/merge"
	"github.com/hazyhaar/medrecon/pkg/store"
)

// Engine bundles the engine collaborators behind the API surface.
type Engine struct {
	Patients store.PatientStore
	Visits   store.VisitStore
	Synth    *codice.Synthesizer
	Scanner  *dedupe.Scanner
	Locks    *merge.Locks
	Logger   *slog.Logger
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Shared request/response types used by both HTTP and MCP transports.

type importReq struct {
	Format       string `json:"format"`
	PatientsFile string `json:"patients_file"`
	VisitsFile   string `json:"visits_file,omitempty"`
}

type scanResponse struct {
	Groups []dedupe.Group `json:"groups"`
	Total  int            `json:"total"`
}

type proposeReq struct {
	MemberIDs []string `json:"member_ids"`
}

type executeReq struct {
	GroupKey  string            `json:"group_key"`
	TargetID  string            `json:"target_id"`
	SourceIDs []string          `json:"source_ids"`
	Payload   map[string]string `json:"payload"`
	// IdentifierSynthesized marks the chosen identifier value as
	// synthesized; omitted means not synthesized.
	IdentifierSynthesized *bool `json:"identifier_synthesized,omitempty"`
}

// logged is the middleware applied to every endpoint: duration timing plus
// a Warn entry on failure, on both transports.
func logged(e *Engine, name string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, request any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, request)
			if err != nil {
				e.logger().Warn("endpoint failed", "endpoint", name,
					"duration", time.Since(start), "error", err)
				return nil, err
			}
			e.logger().Debug("endpoint done", "endpoint", name, "duration", time.Since(start))
			return resp, nil
		}
	}
}

// formatIDs lists the registered import adapter ids.
func formatIDs() []string {
	adapters := importer.All()
	ids := make([]string, 0, len(adapters))
	for _, a := range adapters {
		ids = append(ids, a.ID())
	}
	return ids
}

func importEndpoint(e *Engine) kit.Endpoint {
	ep := func(ctx context.Context, request any) (any, error) {
		req := request.(*importReq)
		if req.PatientsFile == "" {
			return nil, fmt.Errorf("patients_file is required")
		}
		adapter, err := importer.Get(req.Format)
		if err != nil {
			return nil, err
		}
		return adapter.Import(ctx, importer.Request{
			PatientsFile: req.PatientsFile,
			VisitsFile:   req.VisitsFile,
		}, importer.Env{
			Patients: e.Patients,
			Visits:   e.Visits,
			Synth:    e.Synth,
			Logger:   e.logger(),
		})
	}
	return kit.Chain(logged(e, "import"))(ep)
}

func scanEndpoint(e *Engine) kit.Endpoint {
	ep := func(ctx context.Context, _ any) (any, error) {
		patients, err := e.Patients.GetAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("load patients: %w", err)
		}
		groups, err := e.Scanner.Scan(ctx, patients)
		if err != nil {
			return nil, err
		}
		return scanResponse{Groups: groups, Total: len(patients)}, nil
	}
	return kit.Chain(logged(e, "scan"))(ep)
}

func proposeEndpoint(e *Engine) kit.Endpoint {
	ep := func(ctx context.Context, request any) (any, error) {
		req := request.(*proposeReq)
		if len(req.MemberIDs) < 2 {
			return nil, fmt.Errorf("member_ids needs at least 2 ids")
		}
		members := make([]store.Patient, 0, len(req.MemberIDs))
		for _, id := range req.MemberIDs {
			p, err := e.Patients.GetByID(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("member %s: %w", id, err)
			}
			members = append(members, *p)
		}
		return merge.Propose(members)
	}
	return kit.Chain(logged(e, "propose"))(ep)
}

func executeEndpoint(e *Engine) kit.Endpoint {
	ep := func(ctx context.Context, request any) (any, error) {
		req := request.(*executeReq)
		if req.TargetID == "" || len(req.SourceIDs) == 0 {
			return nil, fmt.Errorf("target_id and source_ids are required")
		}
		groupKey := req.GroupKey
		if groupKey == "" {
			groupKey = req.TargetID
		}

		payload := store.Fields{}
		for key, val := range req.Payload {
			payload[key] = val
		}
		if _, ok := req.Payload[store.FieldIdentifier]; ok {
			synth := req.IdentifierSynthesized != nil && *req.IdentifierSynthesized
			payload[store.FieldIdentifierSynthesized] = synth
		}

		exec := &merge.Executor{
			Patients: e.Patients,
			Visits:   e.Visits,
			Locks:    e.Locks,
			Logger:   e.logger(),
		}
		return exec.Execute(ctx, groupKey, req.TargetID, req.SourceIDs, payload)
	}
	return kit.Chain(logged(e, "execute"))(ep)
}
