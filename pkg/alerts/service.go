package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/growthwatch/platform/pkg/access"
	"github.com/growthwatch/platform/pkg/common/apperr"
	"github.com/growthwatch/platform/pkg/common/logger"
	"github.com/growthwatch/platform/pkg/common/models"
	"github.com/growthwatch/platform/pkg/observability/metrics"
	"github.com/growthwatch/platform/pkg/registry"
)

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	if store == nil {
		store = NoopStore{}
	}
	return &Service{store: store}
}

// HandleEvent stores an alert for every recorded measurement flagged as
// danger. Other events are acknowledged and dropped. It has the shape of a
// kafka.EventHandler.
func (s *Service) HandleEvent(ctx context.Context, event models.Event) error {
	if event.Type != registry.EventMeasurementRecorded {
		return nil
	}
	if flagged, _ := event.Data["alert"].(bool); !flagged {
		return nil
	}

	alert, err := alertFromEvent(event)
	if err != nil {
		// malformed payloads would never succeed on retry
		logger.Log.WithError(err).WithField("event_id", event.ID).Warn("Dropping malformed measurement event")
		return nil
	}
	if err := s.store.Push(ctx, alert); err != nil {
		return fmt.Errorf("store alert: %w", err)
	}

	metrics.ObserveAlert(alert.Status)
	logger.Log.WithFields(map[string]interface{}{
		"child_id":       alert.ChildID,
		"facility_id":    alert.FacilityID,
		"measurement_id": alert.MeasurementID,
		"status":         alert.Status,
	}).Warn("Growth alert raised")
	return nil
}

// List returns the most recent alerts of one facility. A facility worker is
// confined to their own facility and may omit facilityID.
func (s *Service) List(ctx context.Context, actor *access.Actor, facilityID *int64, limit int) ([]models.GrowthAlert, error) {
	if err := access.RequireActor(actor, access.ListAlerts); err != nil {
		return nil, err
	}
	var target int64
	switch {
	case facilityID != nil:
		target = *facilityID
	default:
		own, ok := actor.FacilityScope()
		if !ok {
			return nil, apperr.Validation("facility_id is required")
		}
		target = own
	}
	if err := access.Authorize(actor, access.ListAlerts, target); err != nil {
		return nil, err
	}

	alerts, err := s.store.Recent(ctx, target, limit)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return alerts, nil
}

func alertFromEvent(event models.Event) (models.GrowthAlert, error) {
	childID, err := int64Field(event.Data, "child_id")
	if err != nil {
		return models.GrowthAlert{}, err
	}
	facilityID, err := int64Field(event.Data, "facility_id")
	if err != nil {
		return models.GrowthAlert{}, err
	}
	measurementID, err := int64Field(event.Data, "measurement_id")
	if err != nil {
		return models.GrowthAlert{}, err
	}
	recordedBy, _ := int64Field(event.Data, "recorded_by")
	status, _ := event.Data["status"].(string)

	raisedAt := event.Timestamp
	if raisedAt.IsZero() {
		raisedAt = time.Now().UTC()
	}
	return models.GrowthAlert{
		ChildID:       childID,
		FacilityID:    facilityID,
		MeasurementID: measurementID,
		Status:        status,
		RecordedBy:    recordedBy,
		RaisedAt:      raisedAt,
	}, nil
}

// int64Field accepts the numeric forms an id takes before and after a JSON
// round trip.
func int64Field(data map[string]interface{}, key string) (int64, error) {
	switch v := data[key].(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("%s is not an integer: %v", key, v)
		}
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case nil:
		return 0, fmt.Errorf("%s is missing", key)
	default:
		return 0, fmt.Errorf("%s has unexpected type %T", key, v)
	}
}
