// Package access decides whether an authenticated actor may perform an
// operation on data owned by a facility.
package access

import (
	"fmt"

	"github.com/growthwatch/platform/pkg/common/apperr"
	"github.com/growthwatch/platform/pkg/common/models"
	"github.com/growthwatch/platform/pkg/observability/metrics"
)

type Action string

const (
	CreateChild             Action = "create_child"
	ReadChild               Action = "read_child"
	UpdateChild             Action = "update_child"
	DeleteChild             Action = "delete_child"
	RecordMeasurement       Action = "record_measurement"
	ListMeasurements        Action = "list_measurements"
	ListMeasurementsByRange Action = "list_measurements_by_range"
	DeleteMeasurement       Action = "delete_measurement"
	ManageWorkers           Action = "manage_workers"
	ListFacilities          Action = "list_facilities"
	ListAlerts              Action = "list_alerts"
)

// Actor is the caller of an operation as established by authentication.
type Actor struct {
	UserID     int64
	Role       models.Role
	FacilityID *int64
}

// FacilityScope returns the facility a facility worker is confined to.
// Clinicians are unscoped.
func (a *Actor) FacilityScope() (int64, bool) {
	if a.Role == models.RoleFacilityWorker && a.FacilityID != nil {
		return *a.FacilityID, true
	}
	return 0, false
}

// RequireActor is the authentication half of Authorize, used before a
// record has been loaded to learn its facility.
func RequireActor(actor *Actor, action Action) error {
	if actor == nil {
		metrics.ObserveAccessDenied(string(action), "unauthenticated")
		return apperr.ErrUnauthenticated
	}
	return nil
}

// Authorize checks action against the capability matrix. facilityID is the
// facility owning the target record and is ignored for unscoped actions.
// A nil actor is unauthenticated; every other rejection is forbidden.
func Authorize(actor *Actor, action Action, facilityID int64) error {
	if err := RequireActor(actor, action); err != nil {
		return err
	}
	if err := decide(actor, action, facilityID); err != nil {
		metrics.ObserveAccessDenied(string(action), "forbidden")
		return err
	}
	return nil
}

func decide(actor *Actor, action Action, facilityID int64) error {
	switch actor.Role {
	case models.RoleClinician:
		return nil
	case models.RoleFacilityWorker:
		return decideWorker(actor, action, facilityID)
	default:
		return fmt.Errorf("%w: unknown role %q", apperr.ErrForbidden, actor.Role)
	}
}

func decideWorker(actor *Actor, action Action, facilityID int64) error {
	switch action {
	case ListFacilities:
		return nil
	case CreateChild, ReadChild, UpdateChild, RecordMeasurement, ListMeasurements, ListAlerts:
		own, ok := actor.FacilityScope()
		if !ok || own != facilityID {
			return fmt.Errorf("%w: facility %d is outside your scope", apperr.ErrForbidden, facilityID)
		}
		return nil
	case DeleteChild, ListMeasurementsByRange, DeleteMeasurement, ManageWorkers:
		return fmt.Errorf("%w: %s requires the clinician role", apperr.ErrForbidden, action)
	default:
		return fmt.Errorf("%w: unknown action %q", apperr.ErrForbidden, action)
	}
}
