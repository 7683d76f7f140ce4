package organization

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
)

type contextKey string

const OrganizationKey contextKey = "organization"

var ErrNoOrganization = errors.New("organization not found")

// CurrentId retrieves the current organization's ID from the context.
// Returns ErrNoOrganization if it is not present.
func CurrentId(ctx context.Context) (int64, error) {
	orgId, ok := ctx.Value(OrganizationKey).(int64)
	if !ok {
		log.Trace("organization not found in context")
		return 0, ErrNoOrganization
	}
	return orgId, nil
}

func WithOrganization(ctx context.Context, orgId int64) context.Context {
	return context.WithValue(ctx, OrganizationKey, orgId)
}
