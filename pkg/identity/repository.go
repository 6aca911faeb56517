package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/growthwatch/platform/pkg/common/models"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrEmailAlreadyExists  = errors.New("email already registered")
	ErrBootstrapNotAllowed = errors.New("platform already bootstrapped")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type facilityModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"not null"`
	Location  string
	CreatedAt time.Time
}

func (facilityModel) TableName() string {
	return "facilities"
}

type userModel struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Name         string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	Role         string `gorm:"index;not null"`
	PasswordHash string `gorm:"not null"`
	FacilityID   *int64 `gorm:"index"`
	CreatedAt    time.Time

	Facility *facilityModel `gorm:"foreignKey:FacilityID"`
}

func (userModel) TableName() string {
	return "users"
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&facilityModel{}, &userModel{})
}

type CreateUserInput struct {
	Name         string
	Email        string
	Role         models.Role
	PasswordHash string
	FacilityID   *int64
}

// Bootstrap creates the facilities and the first clinician atomically. It
// refuses once any user exists.
func (r *Repository) Bootstrap(ctx context.Context, facilities []models.CreateFacilityRequest, clinician CreateUserInput) ([]models.Facility, models.User, error) {
	var (
		created []models.Facility
		user    models.User
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&userModel{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrBootstrapNotAllowed
		}

		now := time.Now().UTC()
		for _, f := range facilities {
			row := facilityModel{Name: f.Name, Location: f.Location, CreatedAt: now}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			created = append(created, mapFacilityModel(row))
		}

		row, err := createUser(tx, clinician)
		if err != nil {
			return err
		}
		user = mapUserModel(row)
		return nil
	})
	if err != nil {
		return nil, models.User{}, err
	}
	return created, user, nil
}

func (r *Repository) ListFacilities(ctx context.Context) ([]models.Facility, error) {
	var rows []facilityModel
	if err := r.db.WithContext(ctx).Order("name ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	facilities := make([]models.Facility, 0, len(rows))
	for _, row := range rows {
		facilities = append(facilities, mapFacilityModel(row))
	}
	return facilities, nil
}

func (r *Repository) FacilityExists(ctx context.Context, id int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&facilityModel{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *Repository) CreateUser(ctx context.Context, input CreateUserInput) (models.User, error) {
	row, err := createUser(r.db.WithContext(ctx), input)
	if err != nil {
		return models.User{}, err
	}
	if row.FacilityID != nil {
		return r.GetUserByID(ctx, row.ID)
	}
	return mapUserModel(row), nil
}

func createUser(db *gorm.DB, input CreateUserInput) (userModel, error) {
	normalizedEmail := normalizeEmail(input.Email)

	var existing int64
	if err := db.Model(&userModel{}).Where("email = ?", normalizedEmail).Count(&existing).Error; err != nil {
		return userModel{}, err
	}
	if existing > 0 {
		return userModel{}, ErrEmailAlreadyExists
	}

	user := userModel{
		Name:         strings.TrimSpace(input.Name),
		Email:        normalizedEmail,
		Role:         string(input.Role),
		PasswordHash: input.PasswordHash,
		FacilityID:   input.FacilityID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return userModel{}, ErrEmailAlreadyExists
		}
		return userModel{}, err
	}
	return user, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var user userModel
	err := r.db.WithContext(ctx).Preload("Facility").Where("email = ?", normalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	return mapUserModel(user), nil
}

func (r *Repository) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	var user userModel
	err := r.db.WithContext(ctx).Preload("Facility").Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	return mapUserModel(user), nil
}

func (r *Repository) GetPasswordHash(ctx context.Context, id int64) (string, error) {
	var user userModel
	err := r.db.WithContext(ctx).Select("password_hash").Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", err
	}
	return user.PasswordHash, nil
}

func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&userModel{}).Count(&count).Error
	return count, err
}

func (r *Repository) ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	var rows []userModel
	err := r.db.WithContext(ctx).
		Preload("Facility").
		Where("role = ?", string(role)).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	users := make([]models.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, mapUserModel(row))
	}
	return users, nil
}

// DeleteUserWithRole removes a user only if it holds role. It reports whether
// a row was removed.
func (r *Repository) DeleteUserWithRole(ctx context.Context, id int64, role models.Role) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND role = ?", id, string(role)).Delete(&userModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func mapFacilityModel(f facilityModel) models.Facility {
	return models.Facility{
		ID:       f.ID,
		Name:     f.Name,
		Location: f.Location,
	}
}

func mapUserModel(user userModel) models.User {
	u := models.User{
		ID:         user.ID,
		Name:       user.Name,
		Email:      user.Email,
		Role:       models.Role(user.Role),
		FacilityID: user.FacilityID,
		CreatedAt:  user.CreatedAt,
	}
	if user.Facility != nil {
		u.FacilityName = user.Facility.Name
	}
	return u
}
