package connection

import "time"

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationFailed   VerificationStatus = "failed"
)

// MaxVerificationAttempts is the ceiling after which a connection transitions
// to failed. Only a manual re-verify resurrects it.
const MaxVerificationAttempts = 10

// CalendarConnection links one organization to one provider calendar.
// Connections are never hard-deleted; disconnecting marks them inactive.
type CalendarConnection struct {
	Id             int64
	OrganizationId int64
	CalendarSlug   string
	// ProviderCalendarId is the provider's own opaque calendar id, empty
	// until the first successful verification.
	ProviderCalendarId string
	ApiKey             string
	Active             bool
	SyncFrequency      time.Duration
	LastFullSyncAt     *time.Time
	VerificationStatus VerificationStatus
	// VerificationAttempts counts consecutive failed verification attempts.
	VerificationAttempts int
	LastVerificationAt   *time.Time
	// VerificationError holds the user-actionable message for the last
	// failed attempt.
	VerificationError string
	// WebhookId is the provider's id of the registered push webhook, empty
	// when registration never succeeded.
	WebhookId string
}

// VerificationUpdate is the bookkeeping written back by one verification
// attempt.
type VerificationUpdate struct {
	Status             VerificationStatus
	Attempts           int
	ProviderCalendarId string
	WebhookId          string
	LastAttemptAt      time.Time
	ErrorMessage       string
}
