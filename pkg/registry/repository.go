package registry

import (
	"context"
	"errors"
	"time"

	"github.com/growthwatch/platform/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrChildNotFound        = errors.New("child not found")
	ErrMeasurementNotFound  = errors.New("measurement not found")
	ErrChildHasMeasurements = errors.New("child has recorded measurements")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type childModel struct {
	ID            int64          `gorm:"primaryKey;autoIncrement"`
	Name          string         `gorm:"not null"`
	Gender        string         `gorm:"size:16;not null"`
	BirthDate     datatypes.Date `gorm:"not null"`
	GuardianName  string         `gorm:"not null"`
	GuardianPhone *string
	FacilityID    int64  `gorm:"index;not null"`
	AccessToken   string `gorm:"size:64;uniqueIndex;not null"`
	CreatedAt     time.Time
}

func (childModel) TableName() string {
	return "children"
}

type measurementModel struct {
	ID               int64          `gorm:"primaryKey;autoIncrement"`
	ChildID          int64          `gorm:"index:idx_measurements_child_date,priority:1;not null"`
	MeasuredOn       datatypes.Date `gorm:"index:idx_measurements_child_date,priority:2;index;not null"`
	WeightKg         float64        `gorm:"not null"`
	HeightCm         float64        `gorm:"not null"`
	ZHeightForAge    *float64
	ZWeightForAge    *float64
	ZWeightForHeight *float64
	Status           string `gorm:"not null"`
	RecordedBy       int64  `gorm:"index"`
	CreatedAt        time.Time

	Child *childModel `gorm:"foreignKey:ChildID;constraint:OnDelete:RESTRICT"`
}

func (measurementModel) TableName() string {
	return "measurements"
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&childModel{}, &measurementModel{})
}

func (r *Repository) CreateChild(ctx context.Context, child models.Child) (models.Child, error) {
	row := childModel{
		Name:          child.Name,
		Gender:        string(child.Gender),
		BirthDate:     toStorageDate(child.BirthDate),
		GuardianName:  child.GuardianName,
		GuardianPhone: child.GuardianPhone,
		FacilityID:    child.FacilityID,
		AccessToken:   child.AccessToken,
		CreatedAt:     time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.Child{}, err
	}
	return mapChildModel(row), nil
}

func (r *Repository) GetChild(ctx context.Context, id int64) (models.Child, error) {
	var row childModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Child{}, ErrChildNotFound
	}
	if err != nil {
		return models.Child{}, err
	}
	return mapChildModel(row), nil
}

func (r *Repository) GetChildByToken(ctx context.Context, token string) (models.Child, error) {
	var row childModel
	err := r.db.WithContext(ctx).Where("access_token = ?", token).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Child{}, ErrChildNotFound
	}
	if err != nil {
		return models.Child{}, err
	}
	return mapChildModel(row), nil
}

// ListChildren returns newest registrations first, optionally for one facility.
func (r *Repository) ListChildren(ctx context.Context, facilityID *int64) ([]models.Child, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if facilityID != nil {
		query = query.Where("facility_id = ?", *facilityID)
	}
	var rows []childModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	children := make([]models.Child, 0, len(rows))
	for _, row := range rows {
		children = append(children, mapChildModel(row))
	}
	return children, nil
}

// ChildChanges lists the columns to overwrite; nil fields are left untouched.
type ChildChanges struct {
	Name          *string
	Gender        *models.Gender
	BirthDate     *models.Date
	GuardianName  *string
	GuardianPhone **string
	FacilityID    *int64
}

func (r *Repository) UpdateChild(ctx context.Context, id int64, changes ChildChanges) (models.Child, error) {
	updates := map[string]interface{}{}
	if changes.Name != nil {
		updates["name"] = *changes.Name
	}
	if changes.Gender != nil {
		updates["gender"] = string(*changes.Gender)
	}
	if changes.BirthDate != nil {
		updates["birth_date"] = toStorageDate(*changes.BirthDate)
	}
	if changes.GuardianName != nil {
		updates["guardian_name"] = *changes.GuardianName
	}
	if changes.GuardianPhone != nil {
		updates["guardian_phone"] = *changes.GuardianPhone
	}
	if changes.FacilityID != nil {
		updates["facility_id"] = *changes.FacilityID
	}

	var row childModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrChildNotFound
			}
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&row).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&row).Error
	})
	if err != nil {
		return models.Child{}, err
	}
	return mapChildModel(row), nil
}

// DeleteChild reports false when no such child exists. Without cascade a
// child that still has measurements is kept and ErrChildHasMeasurements is
// returned.
func (r *Repository) DeleteChild(ctx context.Context, id int64, cascade bool) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&childModel{}).Where("id = ?", id).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return nil
		}

		if cascade {
			if err := tx.Where("child_id = ?", id).Delete(&measurementModel{}).Error; err != nil {
				return err
			}
		} else {
			var dependents int64
			if err := tx.Model(&measurementModel{}).Where("child_id = ?", id).Count(&dependents).Error; err != nil {
				return err
			}
			if dependents > 0 {
				return ErrChildHasMeasurements
			}
		}

		res := tx.Where("id = ?", id).Delete(&childModel{})
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrForeignKeyViolated) {
				return ErrChildHasMeasurements
			}
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// InsertMeasurement re-checks the child inside the write transaction so a
// concurrent delete cannot leave an orphan row.
func (r *Repository) InsertMeasurement(ctx context.Context, m models.Measurement) (models.Measurement, error) {
	row := measurementModel{
		ChildID:          m.ChildID,
		MeasuredOn:       toStorageDate(m.MeasuredOn),
		WeightKg:         m.WeightKg,
		HeightCm:         m.HeightCm,
		ZHeightForAge:    m.ZHeightForAge,
		ZWeightForAge:    m.ZWeightForAge,
		ZWeightForHeight: m.ZWeightForHeight,
		Status:           m.Status,
		RecordedBy:       m.RecordedBy,
		CreatedAt:        time.Now().UTC(),
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&childModel{}).Where("id = ?", m.ChildID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return ErrChildNotFound
		}
		if err := tx.Create(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrForeignKeyViolated) {
				return ErrChildNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return models.Measurement{}, err
	}
	return mapMeasurementModel(row), nil
}

func (r *Repository) GetMeasurement(ctx context.Context, id int64) (models.Measurement, error) {
	var row measurementModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Measurement{}, ErrMeasurementNotFound
	}
	if err != nil {
		return models.Measurement{}, err
	}
	return mapMeasurementModel(row), nil
}

// ListMeasurements orders by measurement date, newest first; rows recorded on
// the same day come most recently inserted first.
func (r *Repository) ListMeasurements(ctx context.Context, childID int64) ([]models.Measurement, error) {
	var rows []measurementModel
	err := r.db.WithContext(ctx).
		Where("child_id = ?", childID).
		Order("measured_on DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return mapMeasurementModels(rows), nil
}

func (r *Repository) LatestMeasurement(ctx context.Context, childID int64) (models.Measurement, error) {
	var row measurementModel
	err := r.db.WithContext(ctx).
		Where("child_id = ?", childID).
		Order("measured_on DESC, id DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Measurement{}, ErrMeasurementNotFound
	}
	if err != nil {
		return models.Measurement{}, err
	}
	return mapMeasurementModel(row), nil
}

// ListMeasurementsBetween covers every facility; both bounds are inclusive.
func (r *Repository) ListMeasurementsBetween(ctx context.Context, start, end models.Date) ([]models.Measurement, error) {
	var rows []measurementModel
	err := r.db.WithContext(ctx).
		Where("measured_on >= ? AND measured_on <= ?", toStorageDate(start), toStorageDate(end)).
		Order("measured_on DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return mapMeasurementModels(rows), nil
}

func (r *Repository) EarliestMeasurementDate(ctx context.Context, childID int64) (models.Date, bool, error) {
	var row measurementModel
	err := r.db.WithContext(ctx).
		Select("measured_on").
		Where("child_id = ?", childID).
		Order("measured_on ASC, id ASC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Date{}, false, nil
	}
	if err != nil {
		return models.Date{}, false, err
	}
	return fromStorageDate(row.MeasuredOn), true, nil
}

func (r *Repository) CountMeasurements(ctx context.Context, childID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&measurementModel{}).Where("child_id = ?", childID).Count(&count).Error
	return count, err
}

func (r *Repository) DeleteMeasurement(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&measurementModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func toStorageDate(d models.Date) datatypes.Date {
	return datatypes.Date(d.Time())
}

func fromStorageDate(d datatypes.Date) models.Date {
	return models.DateOf(time.Time(d))
}

func mapChildModel(row childModel) models.Child {
	return models.Child{
		ID:            row.ID,
		Name:          row.Name,
		Gender:        models.Gender(row.Gender),
		BirthDate:     fromStorageDate(row.BirthDate),
		GuardianName:  row.GuardianName,
		GuardianPhone: row.GuardianPhone,
		FacilityID:    row.FacilityID,
		AccessToken:   row.AccessToken,
		CreatedAt:     row.CreatedAt,
	}
}

func mapMeasurementModel(row measurementModel) models.Measurement {
	return models.Measurement{
		ID:               row.ID,
		ChildID:          row.ChildID,
		MeasuredOn:       fromStorageDate(row.MeasuredOn),
		WeightKg:         row.WeightKg,
		HeightCm:         row.HeightCm,
		ZHeightForAge:    row.ZHeightForAge,
		ZWeightForAge:    row.ZWeightForAge,
		ZWeightForHeight: row.ZWeightForHeight,
		Status:           row.Status,
		RecordedBy:       row.RecordedBy,
		CreatedAt:        row.CreatedAt,
	}
}

func mapMeasurementModels(rows []measurementModel) []models.Measurement {
	measurements := make([]models.Measurement, 0, len(rows))
	for _, row := range rows {
		measurements = append(measurements, mapMeasurementModel(row))
	}
	return measurements
}
