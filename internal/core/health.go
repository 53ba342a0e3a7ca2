package core

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// healthCheckTimeout bounds the whole health check.
const healthCheckTimeout = 2 * time.Second

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// HandleHealth runs every probe concurrently and answers 200 when all pass,
// 503 otherwise. A probe that overruns the deadline or panics counts as
// failed.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	probes := s.HealthProbes
	errs := make([]error, len(probes))

	// Probes report through errs so that one failure does not cancel the rest.
	var g errgroup.Group
	for i, p := range probes {
		g.Go(func() error {
			errs[i] = runProbe(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	resp := healthResponse{Status: "healthy"}
	status := http.StatusOK
	if len(probes) > 0 {
		resp.Components = make(map[string]componentStatus, len(probes))
	}
	for i, p := range probes {
		if errs[i] != nil {
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			resp.Components[p.Name()] = componentStatus{Status: "unhealthy", Message: errs[i].Error()}
			continue
		}
		resp.Components[p.Name()] = componentStatus{Status: "healthy"}
	}

	JSON(w, r, status, resp)
}

// runProbe runs p and returns once it finishes or ctx expires, whichever is
// first.
func runProbe(ctx context.Context, p HealthProbe) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if rvr := recover(); rvr != nil {
				done <- fmt.Errorf("probe panicked: %v", rvr)
			}
		}()
		done <- p.Check(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("health check timed out")
	}
}
