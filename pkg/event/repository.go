package event

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

var ErrEventNotFound = errors.New("event not found")

type Repository interface {
	GetById(ctx context.Context, id int64) (*Event, error)
	ApplyPatch(ctx context.Context, id int64, patch Patch) error
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) GetById(ctx context.Context, id int64) (*Event, error) {
	var e Event
	err := r.db.QueryRow(ctx,
		`SELECT id, uid, name, description, start_time, end_time, timezone, location_type,
				venue_name, address, city, country, organizer_name, cover_image_path, cover_source_url, external_url
		 FROM event WHERE id = $1`, id).Scan(
		&e.Id, &e.Uid, &e.Name, &e.Description, &e.StartTime, &e.EndTime, &e.Timezone, &e.LocationType,
		&e.VenueName, &e.Address, &e.City, &e.Country, &e.OrganizerName, &e.CoverImagePath, &e.CoverSourceUrl, &e.ExternalUrl,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to retrieve event: %w", err)
	}
	return &e, nil
}

// ApplyPatch updates only the fields present in the patch.
func (r *RepositoryImpl) ApplyPatch(ctx context.Context, id int64, patch Patch) error {
	if patch.IsEmpty() {
		return nil
	}

	sets := make([]string, 0, 14)
	values := make([]any, 0, 14)
	appendSet := func(column string, value any) {
		values = append(values, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(values)))
	}

	if patch.Name != nil {
		appendSet("name", *patch.Name)
	}
	if patch.Description != nil {
		appendSet("description", *patch.Description)
	}
	if patch.StartTime != nil {
		appendSet("start_time", *patch.StartTime)
	}
	if patch.EndTime != nil {
		appendSet("end_time", *patch.EndTime)
	}
	if patch.Timezone != nil {
		appendSet("timezone", *patch.Timezone)
	}
	if patch.LocationType != nil {
		appendSet("location_type", string(*patch.LocationType))
	}
	if patch.VenueName != nil {
		appendSet("venue_name", *patch.VenueName)
	}
	if patch.Address != nil {
		appendSet("address", *patch.Address)
	}
	if patch.City != nil {
		appendSet("city", *patch.City)
	}
	if patch.Country != nil {
		appendSet("country", *patch.Country)
	}
	if patch.OrganizerName != nil {
		appendSet("organizer_name", *patch.OrganizerName)
	}
	if patch.CoverImagePath != nil {
		appendSet("cover_image_path", *patch.CoverImagePath)
	}
	if patch.CoverSourceUrl != nil {
		appendSet("cover_source_url", *patch.CoverSourceUrl)
	}
	if patch.ExternalUrl != nil {
		appendSet("external_url", *patch.ExternalUrl)
	}
	sets = append(sets, "updated_at = now()")

	values = append(values, id)
	query := fmt.Sprintf("UPDATE event SET %s WHERE id = $%d", strings.Join(sets, ", "), len(values))

	tag, err := r.db.Exec(ctx, query, values...)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}
