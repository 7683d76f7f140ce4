package sync

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/gatherly/gatherly/internal/jobs"
	"github.com/gatherly/gatherly/pkg/connection"
)

// FleetResult aggregates one full-fleet sync sweep.
type FleetResult struct {
	Calendars     int `json:"calendars"`
	EventsFound   int `json:"eventsFound"`
	EventsCreated int `json:"eventsCreated"`
	EventsUpdated int `json:"eventsUpdated"`
	EventsSkipped int `json:"eventsSkipped"`
	FailedRuns    int `json:"failedRuns"`
}

// SweepResult tallies one verification retry sweep.
type SweepResult struct {
	Checked      int `json:"checked"`
	Verified     int `json:"verified"`
	StillPending int `json:"stillPending"`
	Failed       int `json:"failed"`
}

// Orchestrator fans the periodic jobs out across all calendars. Iterations
// are sequential and tolerate individual failures: one broken calendar never
// blocks the fleet.
type Orchestrator struct {
	connections  connection.Repository
	syncService  *Service
	verification *VerificationService
}

func NewOrchestrator(connections connection.Repository, syncService *Service, verification *VerificationService) *Orchestrator {
	return &Orchestrator{
		connections:  connections,
		syncService:  syncService,
		verification: verification,
	}
}

// SyncAllCalendars runs an incremental sync for every active, verified
// connection.
func (o *Orchestrator) SyncAllCalendars(ctx context.Context, progress jobs.Progress) (*FleetResult, error) {
	connections, err := o.connections.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	result := &FleetResult{Calendars: len(connections)}
	progress.Set("step", "syncing")
	for i, conn := range connections {
		progress.Set("progress", i+1)

		runResult, err := o.syncService.SyncCalendar(ctx, conn.Id, false, jobs.NopProgress{})
		if err != nil {
			log.Errorf("fleet sync: connection %d failed: %v", conn.Id, err)
			result.FailedRuns++
			continue
		}
		result.EventsFound += runResult.EventsFound
		result.EventsCreated += runResult.EventsCreated
		result.EventsUpdated += runResult.EventsUpdated
		result.EventsSkipped += runResult.EventsSkipped
	}

	log.Infof("fleet sync finished: calendars=%d found=%d created=%d updated=%d skipped=%d failed=%d",
		result.Calendars, result.EventsFound, result.EventsCreated, result.EventsUpdated,
		result.EventsSkipped, result.FailedRuns)
	return result, nil
}

// RetryPendingVerifications re-attempts verification for every connection
// still pending below the attempt ceiling.
func (o *Orchestrator) RetryPendingVerifications(ctx context.Context, progress jobs.Progress) (*SweepResult, error) {
	connections, err := o.connections.ListPendingVerification(ctx, connection.MaxVerificationAttempts)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{Checked: len(connections)}
	progress.Set("step", "verifying")
	for i, conn := range connections {
		progress.Set("progress", i+1)

		status, err := o.verification.VerifyConnection(ctx, conn.Id)
		if err != nil {
			log.Errorf("verification sweep: connection %d failed: %v", conn.Id, err)
			result.Failed++
			continue
		}
		switch status {
		case connection.VerificationVerified:
			result.Verified++
		case connection.VerificationFailed:
			result.Failed++
		default:
			result.StillPending++
		}
	}

	log.Infof("verification sweep finished: checked=%d verified=%d pending=%d failed=%d",
		result.Checked, result.Verified, result.StillPending, result.Failed)
	return result, nil
}
