package services

import (
	"context"
	"vitalwatch/models"
	"vitalwatch/repositories"
	"vitalwatch/utils"
)

// AuthService resolves externally issued bearer tokens into the identity the
// rest of the system operates on. Credential issuance (login, password
// hashing, token minting) lives in the external identity provider; this
// service only verifies and loads.
type AuthService struct {
	userRepo   *repositories.UserRepository
	jwtService *utils.JWTService
}

func NewAuthService(userRepo *repositories.UserRepository, jwtService *utils.JWTService) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		jwtService: jwtService,
	}
}

// ResolveToken verifies the token and loads the user's role, capability set
// and assigned patients.
func (as *AuthService) ResolveToken(ctx context.Context, token string) (models.Identity, error) {
	claims, err := as.jwtService.ValidateToken(token)
	if err != nil {
		return models.Identity{}, utils.NewUnauthorizedError("Invalid or expired token")
	}

	user, err := as.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return models.Identity{}, utils.NewUnauthorizedError("User not found")
	}

	if !user.IsActive {
		return models.Identity{}, utils.NewUnauthorizedError("Account is deactivated")
	}

	return user.Identity(), nil
}

// GetUser loads a user by ID.
func (as *AuthService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := as.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, utils.NewUserNotFoundError()
	}
	return user, nil
}

func (as *AuthService) RecordLogin(ctx context.Context, userID string) {
	_ = as.userRepo.UpdateLastLogin(ctx, userID)
}
