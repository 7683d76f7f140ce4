package sync

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/gatherly/gatherly/internal/event_bus"
	"github.com/gatherly/gatherly/internal/jobs"
	"github.com/gatherly/gatherly/internal/utils"
	"github.com/gatherly/gatherly/pkg/connection"
	"github.com/gatherly/gatherly/pkg/luma"
)

// WebhookEventTypes are the provider push notifications this system
// subscribes to.
var WebhookEventTypes = []string{"calendar.event.added", "event.created", "event.updated"}

const (
	grantAccessMessage = "The API key is not authorized for this calendar. Grant the key access to the calendar and verify again."
	genericFailMessage = "Could not verify the calendar connection. It will be retried automatically."
)

// VerificationService drives the connection verification state machine:
// pending → verified (terminal success), pending → failed (terminal, after
// exhausting attempts), or pending → pending (retry).
type VerificationService struct {
	connections   connection.Repository
	clientFactory luma.ClientFactory
	runner        jobs.Runner
	bus           *event_bus.EventBus
	clock         utils.Clock
	// webhookCallbackUrl is where the provider should push event
	// notifications, typically <host>/webhooks/luma.
	webhookCallbackUrl string
}

func NewVerificationService(connections connection.Repository, clientFactory luma.ClientFactory,
	runner jobs.Runner, bus *event_bus.EventBus, clock utils.Clock, webhookCallbackUrl string) *VerificationService {
	return &VerificationService{
		connections:        connections,
		clientFactory:      clientFactory,
		runner:             runner,
		bus:                bus,
		clock:              clock,
		webhookCallbackUrl: webhookCallbackUrl,
	}
}

// VerifyConnection runs one verification attempt: a lightweight authorized
// read against the provider with the stored credential.
func (s *VerificationService) VerifyConnection(ctx context.Context, connectionId int64) (connection.VerificationStatus, error) {
	conn, err := s.connections.GetById(ctx, connectionId)
	if err != nil {
		return "", fmt.Errorf("failed to load calendar connection %d: %w", connectionId, err)
	}
	if conn.ApiKey == "" {
		return "", ErrNoCredential
	}
	client := s.clientFactory(conn.ApiKey)

	providerCalendar, err := client.GetCalendar(ctx)
	if err != nil {
		return s.recordFailure(ctx, conn, err)
	}
	return s.recordSuccess(ctx, conn, client, providerCalendar)
}

func (s *VerificationService) recordFailure(ctx context.Context, conn *connection.CalendarConnection, cause error) (connection.VerificationStatus, error) {
	attempts := conn.VerificationAttempts + 1
	status := connection.VerificationPending
	if attempts >= connection.MaxVerificationAttempts {
		status = connection.VerificationFailed
	}

	// Authorization failures get a user-actionable message; everything else
	// (network, unexpected shape) shares the same counting path.
	message := genericFailMessage
	if luma.IsAuthError(cause) {
		message = grantAccessMessage
	}

	log.Warnf("verification attempt %d/%d failed for connection %d: %v",
		attempts, connection.MaxVerificationAttempts, conn.Id, cause)

	err := s.connections.UpdateVerification(ctx, conn.Id, connection.VerificationUpdate{
		Status:        status,
		Attempts:      attempts,
		LastAttemptAt: s.clock.Now(),
		ErrorMessage:  message,
	})
	if err != nil {
		return "", fmt.Errorf("failed to record verification failure: %w", err)
	}
	return status, nil
}

func (s *VerificationService) recordSuccess(ctx context.Context, conn *connection.CalendarConnection,
	client luma.Client, providerCalendar *luma.Calendar) (connection.VerificationStatus, error) {

	// Webhook registration is best-effort: sync proceeds via polling alone
	// when it fails, so its failure never blocks the verified transition.
	webhookId := ""
	webhook, err := client.CreateWebhook(ctx, s.webhookCallbackUrl, WebhookEventTypes)
	if err != nil {
		log.Warnf("failed to register webhook for connection %d: %v", conn.Id, err)
	} else {
		webhookId = webhook.ApiId
	}

	err = s.connections.UpdateVerification(ctx, conn.Id, connection.VerificationUpdate{
		Status:             connection.VerificationVerified,
		Attempts:           conn.VerificationAttempts + 1,
		ProviderCalendarId: providerCalendar.ApiId,
		WebhookId:          webhookId,
		LastAttemptAt:      s.clock.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to record verification success: %w", err)
	}

	if s.bus != nil {
		_ = s.bus.Publish(ctx, event_bus.NewEvent(event_bus.ConnectionVerified, event_bus.CalendarConnectionVerified{
			ConnectionId:       conn.Id,
			ProviderCalendarId: providerCalendar.ApiId,
		}))
	}

	log.Infof("calendar connection %d verified as provider calendar %s", conn.Id, providerCalendar.ApiId)

	// A verified connection immediately gets one forced full sync.
	if err := s.runner.Trigger(ctx, JobCalendarSync, SyncPayload{ConnectionId: conn.Id, ForceFullSync: true}); err != nil {
		log.Errorf("failed to trigger initial sync for connection %d: %v", conn.Id, err)
	}

	return connection.VerificationVerified, nil
}
