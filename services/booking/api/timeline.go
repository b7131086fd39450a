package bookingapi

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/altarlane/marketplace/internal/domain/booking"
	"github.com/altarlane/marketplace/internal/errors"
	commonservice "github.com/altarlane/marketplace/services/common/service"
)

// TimelineInput is the editable part of a timeline event.
type TimelineInput struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	Location    string    `json:"location"`
	VendorID    string    `json:"vendor_id"`
}

// ListTimeline returns the user's events in start order with overlaps filled in.
func (s *Service) ListTimeline(ctx context.Context, userID string) ([]booking.TimelineEvent, error) {
	events, err := s.timeline.ListTimeline(ctx, userID)
	if err != nil {
		return nil, commonservice.StoreError(err, "timeline events", "")
	}
	return booking.ArrangeTimeline(events), nil
}

// CreateTimelineEvent adds an event to the user's timeline.
func (s *Service) CreateTimelineEvent(ctx context.Context, userID string, in TimelineInput) (*booking.TimelineEvent, error) {
	now := s.now().UTC()
	e := &booking.TimelineEvent{ID: uuid.NewString(), UserID: userID, CreatedAt: now}
	if err := s.fillTimelineEvent(ctx, e, in, now); err != nil {
		return nil, err
	}
	if err := s.timeline.CreateTimelineEvent(ctx, e); err != nil {
		return nil, commonservice.StoreError(err, "timeline event", e.ID)
	}
	s.Logger().WithContext(ctx).WithField("event_id", e.ID).Info("timeline event created")
	return e, nil
}

// UpdateTimelineEvent replaces an event's editable fields.
func (s *Service) UpdateTimelineEvent(ctx context.Context, userID, id string, in TimelineInput) (*booking.TimelineEvent, error) {
	e, err := s.ownedTimelineEvent(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.fillTimelineEvent(ctx, e, in, s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.timeline.UpdateTimelineEvent(ctx, e); err != nil {
		return nil, commonservice.StoreError(err, "timeline event", id)
	}
	return e, nil
}

// DeleteTimelineEvent removes an event.
func (s *Service) DeleteTimelineEvent(ctx context.Context, userID, id string) error {
	if _, err := s.ownedTimelineEvent(ctx, userID, id); err != nil {
		return err
	}
	if err := s.timeline.DeleteTimelineEvent(ctx, id); err != nil {
		return commonservice.StoreError(err, "timeline event", id)
	}
	return nil
}

func (s *Service) ownedTimelineEvent(ctx context.Context, userID, id string) (*booking.TimelineEvent, error) {
	e, err := s.timeline.GetTimelineEvent(ctx, id)
	if err != nil {
		return nil, commonservice.StoreError(err, "timeline event", id)
	}
	if e.UserID != userID {
		return nil, errors.NotFound("timeline event", id)
	}
	return e, nil
}

func (s *Service) fillTimelineEvent(ctx context.Context, e *booking.TimelineEvent, in TimelineInput, now time.Time) error {
	e.Title = strings.TrimSpace(in.Title)
	e.Description = strings.TrimSpace(in.Description)
	e.StartsAt = in.StartsAt
	e.EndsAt = in.EndsAt
	e.Location = strings.TrimSpace(in.Location)
	e.VendorID = strings.TrimSpace(in.VendorID)
	e.UpdatedAt = now
	if err := e.Validate(); err != nil {
		return domainError(err)
	}
	if e.VendorID != "" {
		ok, err := s.HasConfirmedBooking(ctx, e.UserID, e.VendorID)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Validation("vendor_id", "no confirmed booking with this vendor")
		}
	}
	return nil
}
