package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/growthwatch/platform/pkg/access"
	"github.com/growthwatch/platform/pkg/common/apperr"
	"github.com/growthwatch/platform/pkg/common/models"
	"github.com/growthwatch/platform/pkg/registry"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(NewStore(client)), mr
}

// roundTrip mimics what the consumer sees after the producer marshals an event.
func roundTrip(t *testing.T, event models.Event) models.Event {
	t.Helper()
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	var out models.Event
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func measurementEvent(facilityID, measurementID int64, alert bool) models.Event {
	return models.Event{
		ID:   "evt",
		Type: registry.EventMeasurementRecorded,
		Data: map[string]interface{}{
			"child_id":       int64(11),
			"facility_id":    facilityID,
			"measurement_id": measurementID,
			"status":         "Stunted",
			"alert":          alert,
			"recorded_by":    int64(3),
		},
		Timestamp: time.Date(2024, 6, 15, 9, 30, 0, 0, time.UTC),
	}
}

func TestHandleEventStoresDangerAlerts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.HandleEvent(ctx, roundTrip(t, measurementEvent(1, 100, true))))
	require.NoError(t, svc.HandleEvent(ctx, roundTrip(t, measurementEvent(1, 101, false))))
	require.NoError(t, svc.HandleEvent(ctx, roundTrip(t, measurementEvent(1, 102, true))))
	require.NoError(t, svc.HandleEvent(ctx, roundTrip(t, models.Event{Type: registry.EventChildCreated})))

	clinician := &access.Actor{UserID: 1, Role: models.RoleClinician}
	facility := int64(1)
	got, err := svc.List(ctx, clinician, &facility, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(102), got[0].MeasurementID)
	assert.Equal(t, int64(100), got[1].MeasurementID)
	assert.Equal(t, int64(11), got[0].ChildID)
	assert.Equal(t, "Stunted", got[0].Status)
	assert.Equal(t, int64(3), got[0].RecordedBy)
}

func TestHandleEventDropsMalformedPayload(t *testing.T) {
	svc, _ := newTestService(t)
	event := measurementEvent(1, 100, true)
	delete(event.Data, "facility_id")
	assert.NoError(t, svc.HandleEvent(context.Background(), event))
}

func TestHandleEventReportsStoreFailure(t *testing.T) {
	svc, mr := newTestService(t)
	mr.Close()
	assert.Error(t, svc.HandleEvent(context.Background(), measurementEvent(1, 100, true)))
}

func TestListScoping(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.HandleEvent(ctx, measurementEvent(1, 100, true)))
	require.NoError(t, svc.HandleEvent(ctx, measurementEvent(2, 200, true)))

	own := int64(2)
	worker := &access.Actor{UserID: 9, Role: models.RoleFacilityWorker, FacilityID: &own}
	got, err := svc.List(ctx, worker, nil, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(200), got[0].MeasurementID)

	other := int64(1)
	_, err = svc.List(ctx, worker, &other, 10)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	clinician := &access.Actor{UserID: 1, Role: models.RoleClinician}
	_, err = svc.List(ctx, clinician, nil, 10)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = svc.List(ctx, nil, &other, 10)
	assert.True(t, errors.Is(err, apperr.ErrUnauthenticated))
}

func TestStoreTrimsToCapacity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for i := 0; i < MaxPerFacility+5; i++ {
		require.NoError(t, svc.HandleEvent(ctx, measurementEvent(1, int64(i), true)))
	}

	clinician := &access.Actor{UserID: 1, Role: models.RoleClinician}
	facility := int64(1)
	got, err := svc.List(ctx, clinician, &facility, 0)
	require.NoError(t, err)
	require.Len(t, got, MaxPerFacility)
	assert.Equal(t, int64(MaxPerFacility+4), got[0].MeasurementID)
}

func TestNoopStoreWithoutRedis(t *testing.T) {
	svc := NewService(NewStore(nil))
	ctx := context.Background()
	require.NoError(t, svc.HandleEvent(ctx, measurementEvent(1, 100, true)))

	clinician := &access.Actor{UserID: 1, Role: models.RoleClinician}
	facility := int64(1)
	got, err := svc.List(ctx, clinician, &facility, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}
