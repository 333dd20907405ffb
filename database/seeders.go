package database

import (
	"context"
	"fmt"
	"time"
	"vitalwatch/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// Seeder represents a database seeder
type Seeder struct {
	Name        string
	Description string
	Seed        func(*mongo.Database) error
}

// seeders contains all database seeders
var seeders = []Seeder{
	{
		Name:        "demo_patients",
		Description: "Create demo patients for development",
		Seed:        seedDemoPatients,
	},
	{
		Name:        "demo_users",
		Description: "Create demo users for development",
		Seed:        seedDemoUsers,
	},
}

// RunSeeders executes all database seeders
func RunSeeders(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Check if seeders have already been run
	seedersCol := db.Collection("seeders")
	count, err := seedersCol.CountDocuments(ctx, bson.M{})
	if err == nil && count > 0 {
		logrus.Info("🌱 Seeders already run, skipping...")
		return nil
	}

	logrus.Info("🌱 Running database seeders...")

	for _, seeder := range seeders {
		logrus.Infof("🔄 Running seeder: %s", seeder.Name)

		if err := seeder.Seed(db); err != nil {
			logrus.Errorf("❌ Seeder %s failed: %v", seeder.Name, err)
			continue // Continue with other seeders
		}

		// Record successful seeder
		_, err := seedersCol.InsertOne(ctx, bson.M{
			"name":      seeder.Name,
			"createdAt": time.Now(),
		})
		if err != nil {
			logrus.Warnf("Failed to record seeder %s: %v", seeder.Name, err)
		}

		logrus.Infof("✅ Seeder %s completed", seeder.Name)
	}

	logrus.Info("🌱 All seeders completed")
	return nil
}

// demoPatientIDs are fixed so the user seeder can assign them.
var demoPatientIDs = []primitive.ObjectID{
	primitive.NewObjectID(),
	primitive.NewObjectID(),
}

// seedDemoPatients creates demo patients for development
func seedDemoPatients(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	patientsCol := db.Collection("patients")

	count, err := patientsCol.CountDocuments(ctx, bson.M{})
	if err == nil && count > 0 {
		return nil // Patients already exist
	}

	now := time.Now()

	demoPatients := []interface{}{
		models.Patient{
			ID:                  demoPatientIDs[0],
			FirstName:           "Margaret",
			LastName:            "Olsen",
			DateOfBirth:         time.Date(1941, time.March, 12, 0, 0, 0, 0, time.UTC),
			Gender:              "female",
			MedicalRecordNumber: "MRN-000101",
			PhoneNumber:         "+15550100",
			EmergencyContact: models.EmergencyContact{
				Name:         "Erik Olsen",
				Relationship: "son",
				PhoneNumber:  "+15550101",
			},
			Conditions: []models.MedicalCondition{
				{Condition: "Hypertension", DiagnosedDate: time.Date(2015, time.June, 1, 0, 0, 0, 0, time.UTC)},
				{Condition: "Atrial fibrillation", DiagnosedDate: time.Date(2019, time.November, 20, 0, 0, 0, 0, time.UTC)},
			},
			MonitoringSettings: models.DefaultMonitoringSettings(),
			Status:             models.PatientStatusActive,
			CreatedAt:          now,
			UpdatedAt:          now,
		},
		models.Patient{
			ID:                  demoPatientIDs[1],
			FirstName:           "Harold",
			LastName:            "Finch",
			DateOfBirth:         time.Date(1948, time.September, 26, 0, 0, 0, 0, time.UTC),
			Gender:              "male",
			MedicalRecordNumber: "MRN-000102",
			PhoneNumber:         "+15550102",
			EmergencyContact: models.EmergencyContact{
				Name:         "Grace Finch",
				Relationship: "daughter",
				PhoneNumber:  "+15550103",
			},
			Conditions: []models.MedicalCondition{
				{Condition: "Type 2 diabetes", DiagnosedDate: time.Date(2010, time.February, 14, 0, 0, 0, 0, time.UTC)},
			},
			MonitoringSettings: models.DefaultMonitoringSettings(),
			Status:             models.PatientStatusActive,
			CreatedAt:          now,
			UpdatedAt:          now,
		},
	}

	_, err = patientsCol.InsertMany(ctx, demoPatients)
	if err != nil {
		return fmt.Errorf("failed to insert demo patients: %w", err)
	}

	logrus.Infof("Created %d demo patients", len(demoPatients))
	return nil
}

// seedDemoUsers creates one demo user per role
func seedDemoUsers(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	usersCol := db.Collection("users")

	count, err := usersCol.CountDocuments(ctx, bson.M{"email": bson.M{"$regex": "@demo.vitalwatch.health$"}})
	if err == nil && count > 0 {
		return nil // Demo users already exist
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("demo123"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()

	newUser := func(first, last, role string) models.User {
		return models.User{
			ID:        primitive.NewObjectID(),
			Email:     fmt.Sprintf("%s.%s@demo.vitalwatch.health", first, last),
			Password:  string(hashedPassword),
			FirstName: first,
			LastName:  last,
			Role:      role,
			// Every demo user observes both demo patients.
			AssignedPatients: demoPatientIDs,
			Permissions:      models.DefaultPermissions(role),
			NotificationPreferences: models.NotificationPreferences{
				Email:                  true,
				Push:                   true,
				AlertSeverityThreshold: models.SeverityLow,
			},
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	doctor := newUser("sarah", "chen", models.RoleDoctor)
	doctor.LicenseNumber = "MD-48211"
	doctor.Specialization = "Cardiology"
	doctor.Department = "Remote Monitoring"

	nurse := newUser("james", "okafor", models.RoleNurse)
	nurse.LicenseNumber = "RN-90417"
	nurse.Department = "Remote Monitoring"

	family := newUser("erik", "olsen", models.RoleFamily)
	family.RelationshipToPatient = "son"
	family.IsPrimaryContact = true
	family.AssignedPatients = demoPatientIDs[:1]

	caregiver := newUser("lucia", "mendes", models.RoleCaregiver)

	admin := newUser("ops", "admin", models.RoleAdmin)

	demoUsers := []interface{}{doctor, nurse, family, caregiver, admin}

	_, err = usersCol.InsertMany(ctx, demoUsers)
	if err != nil {
		return fmt.Errorf("failed to insert demo users: %w", err)
	}

	logrus.Infof("Created %d demo users", len(demoUsers))
	return nil
}
