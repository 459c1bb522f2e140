package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/knowwell/portal-api/internal/model"
	"github.com/knowwell/portal-api/internal/repository"
	"github.com/knowwell/portal-api/internal/service/audit"
	"github.com/knowwell/portal-api/pkg/auth"
	apperrors "github.com/knowwell/portal-api/pkg/errors"
	"github.com/knowwell/portal-api/pkg/security"
)

// Service authenticates the two portal identities: doctors with email and
// password, patients with fiscal code and secret code. Both yield a scoped
// JWT; nothing else distinguishes the sessions server-side.
type Service struct {
	doctorRepo  repository.DoctorRepository
	patientRepo repository.PatientRepository
	jwtSvc      auth.JWTService
	hasher      security.Hasher
	auditor     *audit.Service
	tokenExpiry time.Duration
}

func NewService(
	doctorRepo repository.DoctorRepository,
	patientRepo repository.PatientRepository,
	jwtSvc auth.JWTService,
	hasher security.Hasher,
	auditor *audit.Service,
	tokenExpiry time.Duration,
) *Service {
	return &Service{
		doctorRepo:  doctorRepo,
		patientRepo: patientRepo,
		jwtSvc:      jwtSvc,
		hasher:      hasher,
		auditor:     auditor,
		tokenExpiry: tokenExpiry,
	}
}

func (s *Service) LoginDoctor(ctx context.Context, email, password string) (*model.TokenResponse, error) {
	doctor, err := s.doctorRepo.GetByEmail(ctx, email)
	if err != nil {
		// Same answer for unknown email and wrong password.
		return nil, apperrors.Unauthorized(errors.New("invalid credentials"))
	}

	if err := s.hasher.Compare(doctor.PasswordHash, password); err != nil {
		return nil, apperrors.Unauthorized(errors.New("invalid credentials"))
	}

	token, err := s.jwtSvc.GenerateToken(doctor.ID, auth.ScopeDoctor, doctor.Email)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	s.auditor.Log(ctx, doctor.ID, "doctor", "login", "doctor", doctor.ID, nil)
	return &model.TokenResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.tokenExpiry.Seconds()),
	}, nil
}

func (s *Service) LoginPatient(ctx context.Context, fiscalCode, secretCode string) (*model.TokenResponse, error) {
	patient, err := s.patientRepo.GetByFiscalCode(ctx, fiscalCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Unauthorized(errors.New("invalid credentials"))
	}
	if err != nil {
		return nil, apperrors.Persistence("get patient", err)
	}

	if err := s.hasher.Compare(patient.SecretCodeHash, secretCode); err != nil {
		return nil, apperrors.Unauthorized(errors.New("invalid credentials"))
	}

	token, err := s.jwtSvc.GenerateToken(patient.ID, auth.ScopePatient, patient.ContactEmail)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	s.auditor.Log(ctx, patient.ID, "patient", "login", "patient", patient.ID, nil)
	return &model.TokenResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.tokenExpiry.Seconds()),
	}, nil
}

func (s *Service) ValidateToken(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}
	return claims, nil
}
