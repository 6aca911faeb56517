package registry

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/growthwatch/platform/pkg/common/apperr"
	"github.com/growthwatch/platform/pkg/common/logger"
	"github.com/growthwatch/platform/pkg/common/models"
	"github.com/growthwatch/platform/pkg/observability/metrics"
)

var errReportNotFound = apperr.NotFound("report")

// ResolveByToken serves the anonymous report for one child. Unknown and
// malformed tokens produce the same not-found error.
func (s *Service) ResolveByToken(ctx context.Context, token string) (models.PublicReport, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.PublicReport{}, apperr.Validation("token is required")
	}
	if _, err := uuid.Parse(token); err != nil {
		metrics.ObservePublicRead("not_found")
		return models.PublicReport{}, errReportNotFound
	}

	if cached, ok, err := s.cache.Get(ctx, token); err != nil {
		logger.Log.WithError(err).Warn("Public report cache read failed")
	} else if ok {
		metrics.ObservePublicRead("hit")
		return *cached, nil
	}

	generation, genErr := s.cache.Generation(ctx, token)
	if genErr != nil {
		logger.Log.WithError(genErr).Warn("Public report cache generation read failed")
	}

	child, err := s.repo.GetChildByToken(ctx, token)
	if errors.Is(err, ErrChildNotFound) {
		metrics.ObservePublicRead("not_found")
		return models.PublicReport{}, errReportNotFound
	}
	if err != nil {
		return models.PublicReport{}, apperr.Internal(err)
	}
	measurements, err := s.repo.ListMeasurements(ctx, child.ID)
	if err != nil {
		return models.PublicReport{}, apperr.Internal(err)
	}

	report := buildPublicReport(child, measurements)
	if genErr == nil {
		if err := s.cache.Set(ctx, token, generation, report); err != nil {
			logger.Log.WithError(err).Warn("Public report cache write failed")
		}
	}
	metrics.ObservePublicRead("miss")
	return report, nil
}

func buildPublicReport(child models.Child, measurements []models.Measurement) models.PublicReport {
	report := models.PublicReport{
		Child: models.PublicChildView{
			Name:         child.Name,
			Gender:       child.Gender,
			BirthDate:    child.BirthDate,
			GuardianName: child.GuardianName,
		},
		Measurements: make([]models.PublicMeasurement, 0, len(measurements)),
	}
	for _, m := range measurements {
		report.Measurements = append(report.Measurements, models.PublicMeasurement{
			MeasuredOn:       m.MeasuredOn,
			WeightKg:         m.WeightKg,
			HeightCm:         m.HeightCm,
			Status:           m.Status,
			ZHeightForAge:    m.ZHeightForAge,
			ZWeightForAge:    m.ZWeightForAge,
			ZWeightForHeight: m.ZWeightForHeight,
		})
	}
	return report
}
