package sync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gatherly/gatherly/internal/jobs"
)

// Job identifiers submitted to the job execution service.
const (
	JobCalendarSync           = "calendar-sync"
	JobCalendarVerification   = "calendar-verification"
	JobSyncAllCalendars       = "calendar-sync-all"
	JobVerificationRetrySweep = "calendar-verification-sweep"
)

type SyncPayload struct {
	ConnectionId  int64 `json:"connectionId"`
	ForceFullSync bool  `json:"forceFullSync"`
}

type VerificationPayload struct {
	ConnectionId int64 `json:"connectionId"`
}

// RegisterJobs wires the sync job handlers into the runner.
func RegisterJobs(runner *jobs.InProcessRunner, syncService *Service, verification *VerificationService, orchestrator *Orchestrator) {
	runner.Register(JobCalendarSync, func(ctx context.Context, payload json.RawMessage, progress jobs.Progress) (any, error) {
		var p SyncPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("invalid sync payload: %w", err)
		}
		return syncService.SyncCalendar(ctx, p.ConnectionId, p.ForceFullSync, progress)
	})

	runner.Register(JobCalendarVerification, func(ctx context.Context, payload json.RawMessage, progress jobs.Progress) (any, error) {
		var p VerificationPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("invalid verification payload: %w", err)
		}
		progress.Set("step", "verifying")
		status, err := verification.VerifyConnection(ctx, p.ConnectionId)
		if err != nil {
			return nil, err
		}
		return map[string]string{"status": string(status)}, nil
	})

	runner.Register(JobSyncAllCalendars, func(ctx context.Context, payload json.RawMessage, progress jobs.Progress) (any, error) {
		return orchestrator.SyncAllCalendars(ctx, progress)
	})

	runner.Register(JobVerificationRetrySweep, func(ctx context.Context, payload json.RawMessage, progress jobs.Progress) (any, error) {
		return orchestrator.RetryPendingVerifications(ctx, progress)
	})
}
