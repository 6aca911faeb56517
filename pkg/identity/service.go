package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/growthwatch/platform/pkg/access"
	"github.com/growthwatch/platform/pkg/common/apperr"
	"github.com/growthwatch/platform/pkg/common/logger"
	"github.com/growthwatch/platform/pkg/common/models"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

var ErrInvalidCredentials = errors.New("invalid credentials")

type Service struct {
	repo *Repository
	cost int
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo, cost: bcrypt.DefaultCost}
}

// Bootstrap sets up the facilities and the first clinician on an empty
// installation.
func (s *Service) Bootstrap(ctx context.Context, req models.BootstrapRequest) ([]models.Facility, models.User, error) {
	if len(req.Facilities) == 0 {
		return nil, models.User{}, apperr.Validation("at least one facility is required")
	}
	for i, f := range req.Facilities {
		if strings.TrimSpace(f.Name) == "" {
			return nil, models.User{}, apperr.Validation("facility %d: name is required", i+1)
		}
		req.Facilities[i].Name = strings.TrimSpace(f.Name)
		req.Facilities[i].Location = strings.TrimSpace(f.Location)
	}

	input, err := s.userInput(req.ClinicianName, req.ClinicianEmail, req.ClinicianPassword, models.RoleClinician, nil)
	if err != nil {
		return nil, models.User{}, err
	}

	facilities, user, err := s.repo.Bootstrap(ctx, req.Facilities, input)
	if err != nil {
		return nil, models.User{}, translate(err)
	}
	logger.Log.WithFields(map[string]interface{}{
		"user_id":    user.ID,
		"facilities": len(facilities),
	}).Info("Platform bootstrapped")
	return facilities, user, nil
}

func (s *Service) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	if password == "" {
		return models.User{}, fmt.Errorf("%w: %v", apperr.ErrUnauthenticated, ErrInvalidCredentials)
	}
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return models.User{}, fmt.Errorf("%w: %v", apperr.ErrUnauthenticated, ErrInvalidCredentials)
		}
		return models.User{}, apperr.Internal(err)
	}

	hash, err := s.repo.GetPasswordHash(ctx, user.ID)
	if err != nil {
		return models.User{}, apperr.Internal(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return models.User{}, fmt.Errorf("%w: %v", apperr.ErrUnauthenticated, ErrInvalidCredentials)
	}

	return user, nil
}

// GetUser returns ErrUserNotFound unwrapped so authentication can tell a
// deleted account from a storage failure.
func (s *Service) GetUser(ctx context.Context, id int64) (models.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

func (s *Service) ListFacilities(ctx context.Context, actor *access.Actor) ([]models.Facility, error) {
	if err := access.Authorize(actor, access.ListFacilities, 0); err != nil {
		return nil, err
	}
	facilities, err := s.repo.ListFacilities(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return facilities, nil
}

// FacilityExists lets other services validate facility references.
func (s *Service) FacilityExists(ctx context.Context, id int64) (bool, error) {
	return s.repo.FacilityExists(ctx, id)
}

func (s *Service) ListWorkers(ctx context.Context, actor *access.Actor) ([]models.User, error) {
	if err := access.Authorize(actor, access.ManageWorkers, 0); err != nil {
		return nil, err
	}
	workers, err := s.repo.ListUsersByRole(ctx, models.RoleFacilityWorker)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return workers, nil
}

func (s *Service) RegisterWorker(ctx context.Context, actor *access.Actor, req models.RegisterWorkerRequest) (models.User, error) {
	if err := access.Authorize(actor, access.ManageWorkers, req.FacilityID); err != nil {
		return models.User{}, err
	}
	if req.FacilityID <= 0 {
		return models.User{}, apperr.Validation("facility_id is required")
	}
	exists, err := s.repo.FacilityExists(ctx, req.FacilityID)
	if err != nil {
		return models.User{}, apperr.Internal(err)
	}
	if !exists {
		return models.User{}, apperr.Validation("facility %d does not exist", req.FacilityID)
	}

	facilityID := req.FacilityID
	input, err := s.userInput(req.Name, req.Email, req.Password, models.RoleFacilityWorker, &facilityID)
	if err != nil {
		return models.User{}, err
	}
	user, err := s.repo.CreateUser(ctx, input)
	if err != nil {
		return models.User{}, translate(err)
	}
	logger.Log.WithFields(map[string]interface{}{
		"user_id":     user.ID,
		"facility_id": facilityID,
		"created_by":  actor.UserID,
	}).Info("Facility worker registered")
	return user, nil
}

func (s *Service) DeleteWorker(ctx context.Context, actor *access.Actor, id int64) (bool, error) {
	if err := access.Authorize(actor, access.ManageWorkers, 0); err != nil {
		return false, err
	}
	deleted, err := s.repo.DeleteUserWithRole(ctx, id, models.RoleFacilityWorker)
	if err != nil {
		return false, apperr.Internal(err)
	}
	if !deleted {
		return false, apperr.NotFound("facility worker")
	}
	return true, nil
}

func (s *Service) userInput(name, email, password string, role models.Role, facilityID *int64) (CreateUserInput, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return CreateUserInput{}, apperr.Validation("name is required")
	}
	// only the bare address is stored, even when a display name was given
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return CreateUserInput{}, apperr.Validation("a valid email is required")
	}
	if len(password) < minPasswordLength {
		return CreateUserInput{}, apperr.Validation("password must be at least %d characters", minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return CreateUserInput{}, apperr.Internal(err)
	}
	return CreateUserInput{
		Name:         name,
		Email:        addr.Address,
		Role:         role,
		PasswordHash: string(hash),
		FacilityID:   facilityID,
	}, nil
}

func translate(err error) error {
	switch {
	case errors.Is(err, ErrEmailAlreadyExists):
		return apperr.Validation("%v", err)
	case errors.Is(err, ErrBootstrapNotAllowed):
		return fmt.Errorf("%w: %v", apperr.ErrForbidden, err)
	default:
		return apperr.Internal(err)
	}
}
