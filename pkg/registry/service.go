// Package registry keeps the children and measurement history of every
// facility and serves the anonymous token report.
package registry

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/growthwatch/platform/pkg/access"
	"github.com/growthwatch/platform/pkg/common/apperr"
	"github.com/growthwatch/platform/pkg/common/logger"
	"github.com/growthwatch/platform/pkg/common/models"
	"github.com/growthwatch/platform/pkg/growth"
	"github.com/growthwatch/platform/pkg/observability/metrics"
)

const eventSource = "growth-service"

const (
	EventChildCreated        = "child.created"
	EventChildUpdated        = "child.updated"
	EventChildDeleted        = "child.deleted"
	EventMeasurementRecorded = "measurement.recorded"
	EventMeasurementDeleted  = "measurement.deleted"
)

// FacilityDirectory answers whether a facility id refers to a real facility.
type FacilityDirectory interface {
	FacilityExists(ctx context.Context, id int64) (bool, error)
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

type NoopPublisher struct{}

func (NoopPublisher) PublishEvent(context.Context, string, string, map[string]interface{}) error {
	return nil
}

type Options struct {
	// CascadeChildDelete removes a child's measurements with the child
	// instead of refusing the delete.
	CascadeChildDelete bool
	Now                func() time.Time
}

type Service struct {
	repo       *Repository
	classifier *growth.Classifier
	facilities FacilityDirectory
	events     EventPublisher
	cache      ReportCache
	cascade    bool
	now        func() time.Time
}

func NewService(repo *Repository, classifier *growth.Classifier, facilities FacilityDirectory, events EventPublisher, cache ReportCache, opts Options) *Service {
	if classifier == nil {
		classifier = growth.NewClassifier(nil)
	}
	if events == nil {
		events = NoopPublisher{}
	}
	if cache == nil {
		cache = NoopReportCache{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:       repo,
		classifier: classifier,
		facilities: facilities,
		events:     events,
		cache:      cache,
		cascade:    opts.CascadeChildDelete,
		now:        now,
	}
}

func (s *Service) today() models.Date {
	return models.DateOf(s.now())
}

func (s *Service) CreateChild(ctx context.Context, actor *access.Actor, req models.CreateChildRequest) (models.Child, error) {
	if err := access.RequireActor(actor, access.CreateChild); err != nil {
		return models.Child{}, err
	}
	// workers register into their own facility unless they say otherwise
	if own, scoped := actor.FacilityScope(); scoped && req.FacilityID == 0 {
		req.FacilityID = own
	}
	if err := access.Authorize(actor, access.CreateChild, req.FacilityID); err != nil {
		return models.Child{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.GuardianName = strings.TrimSpace(req.GuardianName)
	switch {
	case req.Name == "":
		return models.Child{}, apperr.Validation("name is required")
	case !req.Gender.Valid():
		return models.Child{}, apperr.Validation("gender must be %q or %q", models.GenderMale, models.GenderFemale)
	case req.BirthDate.IsZero():
		return models.Child{}, apperr.Validation("birth_date is required")
	case req.BirthDate.After(s.today()):
		return models.Child{}, apperr.Validation("birth_date cannot be in the future")
	case req.GuardianName == "":
		return models.Child{}, apperr.Validation("guardian_name is required")
	case req.FacilityID <= 0:
		return models.Child{}, apperr.Validation("facility_id is required")
	}
	if err := s.requireFacility(ctx, req.FacilityID); err != nil {
		return models.Child{}, err
	}

	child, err := s.repo.CreateChild(ctx, models.Child{
		Name:          req.Name,
		Gender:        req.Gender,
		BirthDate:     req.BirthDate,
		GuardianName:  req.GuardianName,
		GuardianPhone: normalizePhone(req.GuardianPhone),
		FacilityID:    req.FacilityID,
		AccessToken:   uuid.NewString(),
	})
	if err != nil {
		return models.Child{}, apperr.Internal(err)
	}

	s.publish(ctx, EventChildCreated, map[string]interface{}{
		"child_id":    child.ID,
		"facility_id": child.FacilityID,
		"created_by":  actor.UserID,
	})
	return child, nil
}

func (s *Service) GetChild(ctx context.Context, actor *access.Actor, id int64) (models.Child, error) {
	return s.authorizedChild(ctx, actor, access.ReadChild, id)
}

// ListChildren scopes facility workers to their own facility. Clinicians see
// every facility unless facilityID narrows the list.
func (s *Service) ListChildren(ctx context.Context, actor *access.Actor, facilityID *int64) ([]models.Child, error) {
	if err := access.RequireActor(actor, access.ReadChild); err != nil {
		return nil, err
	}
	if own, scoped := actor.FacilityScope(); scoped && facilityID == nil {
		facilityID = &own
	}
	if facilityID != nil {
		if err := access.Authorize(actor, access.ReadChild, *facilityID); err != nil {
			return nil, err
		}
	} else if err := access.Authorize(actor, access.ReadChild, 0); err != nil {
		return nil, err
	}

	children, err := s.repo.ListChildren(ctx, facilityID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return children, nil
}

func (s *Service) UpdateChild(ctx context.Context, actor *access.Actor, id int64, req models.UpdateChildRequest) (models.Child, error) {
	current, err := s.authorizedChild(ctx, actor, access.UpdateChild, id)
	if err != nil {
		return models.Child{}, err
	}
	if req.NamesImmutable() {
		return models.Child{}, apperr.Validation("id and access token cannot be changed")
	}
	if req.Empty() {
		return models.Child{}, apperr.Validation("no fields to update")
	}

	changes := ChildChanges{}
	if req.FacilityID != nil && *req.FacilityID != current.FacilityID {
		if err := access.Authorize(actor, access.UpdateChild, *req.FacilityID); err != nil {
			return models.Child{}, err
		}
		if err := s.requireFacility(ctx, *req.FacilityID); err != nil {
			return models.Child{}, err
		}
		changes.FacilityID = req.FacilityID
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return models.Child{}, apperr.Validation("name cannot be empty")
		}
		changes.Name = &name
	}
	if req.Gender != nil {
		if !req.Gender.Valid() {
			return models.Child{}, apperr.Validation("gender must be %q or %q", models.GenderMale, models.GenderFemale)
		}
		changes.Gender = req.Gender
	}
	if req.GuardianName != nil {
		guardian := strings.TrimSpace(*req.GuardianName)
		if guardian == "" {
			return models.Child{}, apperr.Validation("guardian_name cannot be empty")
		}
		changes.GuardianName = &guardian
	}
	if req.GuardianPhone != nil {
		phone := normalizePhone(req.GuardianPhone)
		changes.GuardianPhone = &phone
	}
	if req.BirthDate != nil {
		if err := s.checkBirthDate(ctx, id, *req.BirthDate); err != nil {
			return models.Child{}, err
		}
		changes.BirthDate = req.BirthDate
	}

	child, err := s.repo.UpdateChild(ctx, id, changes)
	if err != nil {
		return models.Child{}, s.storageError(err)
	}
	s.invalidate(ctx, child.AccessToken)
	s.publish(ctx, EventChildUpdated, map[string]interface{}{
		"child_id":    child.ID,
		"facility_id": child.FacilityID,
		"updated_by":  actor.UserID,
	})
	return child, nil
}

// checkBirthDate keeps every recorded measurement on or after birth.
func (s *Service) checkBirthDate(ctx context.Context, childID int64, birth models.Date) error {
	if birth.IsZero() {
		return apperr.Validation("birth_date cannot be empty")
	}
	if birth.After(s.today()) {
		return apperr.Validation("birth_date cannot be in the future")
	}
	earliest, ok, err := s.repo.EarliestMeasurementDate(ctx, childID)
	if err != nil {
		return apperr.Internal(err)
	}
	if ok && birth.After(earliest) {
		return apperr.Validation("birth_date cannot be after the first measurement on %s", earliest)
	}
	return nil
}

func (s *Service) DeleteChild(ctx context.Context, actor *access.Actor, id int64) (bool, error) {
	if err := access.Authorize(actor, access.DeleteChild, 0); err != nil {
		return false, err
	}
	child, err := s.repo.GetChild(ctx, id)
	if err != nil {
		return false, s.storageError(err)
	}

	deleted, err := s.repo.DeleteChild(ctx, id, s.cascade)
	if err != nil {
		return false, s.storageError(err)
	}
	if !deleted {
		return false, apperr.NotFound("child")
	}

	s.invalidate(ctx, child.AccessToken)
	s.publish(ctx, EventChildDeleted, map[string]interface{}{
		"child_id":    child.ID,
		"facility_id": child.FacilityID,
		"deleted_by":  actor.UserID,
		"cascade":     s.cascade,
	})
	return true, nil
}

// RecordMeasurement classifies and stores one visit. The measurement is dated
// today and the child's age is taken at today's date.
func (s *Service) RecordMeasurement(ctx context.Context, actor *access.Actor, req models.RecordMeasurementRequest) (models.Measurement, error) {
	if err := access.RequireActor(actor, access.RecordMeasurement); err != nil {
		return models.Measurement{}, err
	}
	switch {
	case req.ChildID <= 0:
		return models.Measurement{}, apperr.Validation("child_id is required")
	case req.WeightKg == nil:
		return models.Measurement{}, apperr.Validation("weight_kg is required")
	case req.HeightCm == nil:
		return models.Measurement{}, apperr.Validation("height_cm is required")
	case !positive(*req.WeightKg):
		return models.Measurement{}, apperr.Validation("weight_kg must be greater than zero")
	case !positive(*req.HeightCm):
		return models.Measurement{}, apperr.Validation("height_cm must be greater than zero")
	}

	child, err := s.authorizedChild(ctx, actor, access.RecordMeasurement, req.ChildID)
	if err != nil {
		return models.Measurement{}, err
	}

	today := s.today()
	assessment := s.classifier.Assess(child.Gender, models.MonthsBetween(child.BirthDate, today), *req.WeightKg, *req.HeightCm)

	measurement, err := s.repo.InsertMeasurement(ctx, models.Measurement{
		ChildID:          child.ID,
		MeasuredOn:       today,
		WeightKg:         *req.WeightKg,
		HeightCm:         *req.HeightCm,
		ZHeightForAge:    assessment.HeightForAge.ZScore(),
		ZWeightForAge:    assessment.WeightForAge.ZScore(),
		ZWeightForHeight: assessment.WeightForHeight.ZScore(),
		Status:           assessment.Status,
		RecordedBy:       actor.UserID,
	})
	if err != nil {
		return models.Measurement{}, s.storageError(err)
	}
	measurement.Indicators = assessment.Summary()

	metrics.ObserveMeasurement(assessment.Status)
	s.invalidate(ctx, child.AccessToken)
	s.publish(ctx, EventMeasurementRecorded, map[string]interface{}{
		"child_id":       child.ID,
		"facility_id":    child.FacilityID,
		"measurement_id": measurement.ID,
		"status":         measurement.Status,
		"alert":          hasDanger(assessment),
		"recorded_by":    actor.UserID,
	})
	logger.Log.WithFields(map[string]interface{}{
		"child_id":       child.ID,
		"measurement_id": measurement.ID,
		"status":         measurement.Status,
		"age_months":     assessment.AgeMonths,
	}).Info("Measurement recorded")
	return measurement, nil
}

func (s *Service) ListMeasurements(ctx context.Context, actor *access.Actor, childID int64) ([]models.Measurement, error) {
	if _, err := s.authorizedChild(ctx, actor, access.ListMeasurements, childID); err != nil {
		return nil, err
	}
	measurements, err := s.repo.ListMeasurements(ctx, childID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return measurements, nil
}

func (s *Service) LatestMeasurement(ctx context.Context, actor *access.Actor, childID int64) (models.Measurement, error) {
	if _, err := s.authorizedChild(ctx, actor, access.ListMeasurements, childID); err != nil {
		return models.Measurement{}, err
	}
	measurement, err := s.repo.LatestMeasurement(ctx, childID)
	if err != nil {
		return models.Measurement{}, s.storageError(err)
	}
	return measurement, nil
}

// ListMeasurementsByDateRange spans all facilities and is restricted to
// clinicians.
func (s *Service) ListMeasurementsByDateRange(ctx context.Context, actor *access.Actor, start, end models.Date) ([]models.Measurement, error) {
	if err := access.Authorize(actor, access.ListMeasurementsByRange, 0); err != nil {
		return nil, err
	}
	if start.IsZero() || end.IsZero() {
		return nil, apperr.Validation("start and end dates are required")
	}
	if start.After(end) {
		return nil, apperr.Validation("start must not be after end")
	}
	measurements, err := s.repo.ListMeasurementsBetween(ctx, start, end)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return measurements, nil
}

func (s *Service) DeleteMeasurement(ctx context.Context, actor *access.Actor, id int64) (bool, error) {
	if err := access.Authorize(actor, access.DeleteMeasurement, 0); err != nil {
		return false, err
	}
	measurement, err := s.repo.GetMeasurement(ctx, id)
	if err != nil {
		return false, s.storageError(err)
	}
	deleted, err := s.repo.DeleteMeasurement(ctx, id)
	if err != nil {
		return false, apperr.Internal(err)
	}
	if !deleted {
		return false, apperr.NotFound("measurement")
	}

	if child, err := s.repo.GetChild(ctx, measurement.ChildID); err == nil {
		s.invalidate(ctx, child.AccessToken)
	}
	s.publish(ctx, EventMeasurementDeleted, map[string]interface{}{
		"child_id":       measurement.ChildID,
		"measurement_id": measurement.ID,
		"deleted_by":     actor.UserID,
	})
	return true, nil
}

// authorizedChild loads a child and checks action against its facility. The
// caller must be authenticated before anything is read.
func (s *Service) authorizedChild(ctx context.Context, actor *access.Actor, action access.Action, id int64) (models.Child, error) {
	if err := access.RequireActor(actor, action); err != nil {
		return models.Child{}, err
	}
	child, err := s.repo.GetChild(ctx, id)
	if err != nil {
		return models.Child{}, s.storageError(err)
	}
	if err := access.Authorize(actor, action, child.FacilityID); err != nil {
		return models.Child{}, err
	}
	return child, nil
}

func (s *Service) requireFacility(ctx context.Context, id int64) error {
	if s.facilities == nil {
		return nil
	}
	ok, err := s.facilities.FacilityExists(ctx, id)
	if err != nil {
		return apperr.Internal(err)
	}
	if !ok {
		return apperr.Validation("facility %d does not exist", id)
	}
	return nil
}

func (s *Service) storageError(err error) error {
	switch {
	case errors.Is(err, ErrChildNotFound):
		return apperr.NotFound("child")
	case errors.Is(err, ErrMeasurementNotFound):
		return apperr.NotFound("measurement")
	case errors.Is(err, ErrChildHasMeasurements):
		return apperr.Conflict("child has recorded measurements; delete them first")
	default:
		return apperr.Internal(err)
	}
}

func (s *Service) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if err := s.events.PublishEvent(ctx, eventType, eventSource, data); err != nil {
		logger.Log.WithError(err).WithField("event_type", eventType).Warn("Failed to publish registry event")
	}
}

func (s *Service) invalidate(ctx context.Context, token string) {
	if err := s.cache.Invalidate(ctx, token); err != nil {
		logger.Log.WithError(err).Warn("Failed to invalidate public report cache")
	}
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func normalizePhone(phone *string) *string {
	if phone == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*phone)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func hasDanger(a growth.Assessment) bool {
	return a.HeightForAge.Severity == growth.Danger ||
		a.WeightForAge.Severity == growth.Danger ||
		a.WeightForHeight.Severity == growth.Danger
}
