package services

import (
	"context"
	"vitalwatch/models"
	"vitalwatch/repositories"
	"vitalwatch/utils"

	"go.mongodb.org/mongo-driver/bson"
)

// UserService covers the admin-facing user management surface: looking up
// observers and wiring the patient assignments the authorization model
// rests on. User creation and credential management live with the identity
// provider, not here.
type UserService struct {
	userRepo    *repositories.UserRepository
	patientRepo *repositories.PatientRepository
}

func NewUserService(userRepo *repositories.UserRepository, patientRepo *repositories.PatientRepository) *UserService {
	return &UserService{
		userRepo:    userRepo,
		patientRepo: patientRepo,
	}
}

// GetUser returns one user. Admins see anyone; others only themselves.
func (us *UserService) GetUser(ctx context.Context, actor models.Identity, userID string) (*models.User, error) {
	if actor.Role != models.RoleAdmin && actor.UserID != userID {
		return nil, utils.NewPermissionDeniedError("manage users")
	}

	user, err := us.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, utils.NewUserNotFoundError()
	}
	return user, nil
}

// ListByRole lists users with a role. Admin only.
func (us *UserService) ListByRole(ctx context.Context, actor models.Identity, role string) ([]models.User, error) {
	if actor.Role != models.RoleAdmin {
		return nil, utils.NewPermissionDeniedError("manage users")
	}
	return us.userRepo.GetByRole(ctx, role)
}

// SearchUsers searches users by name or email. Admin only.
func (us *UserService) SearchUsers(ctx context.Context, actor models.Identity, query string, limit int) ([]models.User, error) {
	if actor.Role != models.RoleAdmin {
		return nil, utils.NewPermissionDeniedError("manage users")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return us.userRepo.SearchUsers(ctx, query, limit)
}

// AssignPatient grants a user observation of a patient.
func (us *UserService) AssignPatient(ctx context.Context, actor models.Identity, userID, patientID string) error {
	if actor.Role != models.RoleAdmin {
		return utils.NewPermissionDeniedError("manage users")
	}

	exists, err := us.patientRepo.Exists(ctx, patientID)
	if err != nil {
		return utils.NewDatabaseError("check patient", err)
	}
	if !exists {
		return utils.NewPatientNotFoundError()
	}

	if _, err := us.userRepo.GetByID(ctx, userID); err != nil {
		return utils.NewUserNotFoundError()
	}

	return us.userRepo.AssignPatient(ctx, userID, patientID)
}

// UnassignPatient revokes a user's assignment to a patient. Active WebSocket
// subscriptions are revoked on the connection's next entitlement refresh.
func (us *UserService) UnassignPatient(ctx context.Context, actor models.Identity, userID, patientID string) error {
	if actor.Role != models.RoleAdmin {
		return utils.NewPermissionDeniedError("manage users")
	}

	if _, err := us.userRepo.GetByID(ctx, userID); err != nil {
		return utils.NewUserNotFoundError()
	}

	return us.userRepo.UnassignPatient(ctx, userID, patientID)
}

// UpdateDeviceToken registers the caller's push notification token.
func (us *UserService) UpdateDeviceToken(ctx context.Context, actor models.Identity, deviceToken string) error {
	return us.userRepo.UpdateDeviceToken(ctx, actor.UserID, deviceToken)
}

// UpdateNotificationPreferences replaces the caller's own preferences.
func (us *UserService) UpdateNotificationPreferences(ctx context.Context, actor models.Identity, prefs models.NotificationPreferences) error {
	return us.userRepo.Update(ctx, actor.UserID, bson.M{
		"notificationPreferences": prefs,
	})
}

// DeactivateUser disables an account. Admin only; deactivated users fail
// token resolution on their next request.
func (us *UserService) DeactivateUser(ctx context.Context, actor models.Identity, userID string) error {
	if actor.Role != models.RoleAdmin {
		return utils.NewPermissionDeniedError("manage users")
	}
	if actor.UserID == userID {
		return utils.NewBadRequestError("Cannot deactivate your own account")
	}

	return us.userRepo.Update(ctx, userID, bson.M{
		"isActive": false,
	})
}
