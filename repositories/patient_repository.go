package repositories

import (
	"context"
	"errors"
	"time"
	"vitalwatch/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type PatientRepository struct {
	collection *mongo.Collection
}

func NewPatientRepository(db *mongo.Database) *PatientRepository {
	return &PatientRepository{
		collection: db.Collection("patients"),
	}
}

func (pr *PatientRepository) Create(ctx context.Context, patient *models.Patient) error {
	patient.ID = primitive.NewObjectID()
	patient.CreatedAt = time.Now()
	patient.UpdatedAt = time.Now()
	if patient.Status == "" {
		patient.Status = models.PatientStatusActive
	}

	_, err := pr.collection.InsertOne(ctx, patient)
	return err
}

func (pr *PatientRepository) GetByID(ctx context.Context, id string) (*models.Patient, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errors.New("invalid patient ID")
	}

	var patient models.Patient
	err = pr.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&patient)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.New("patient not found")
		}
		return nil, err
	}

	return &patient, nil
}

func (pr *PatientRepository) GetByMRN(ctx context.Context, mrn string) (*models.Patient, error) {
	var patient models.Patient
	err := pr.collection.FindOne(ctx, bson.M{"medicalRecordNumber": mrn}).Decode(&patient)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.New("patient not found")
		}
		return nil, err
	}

	return &patient, nil
}

// Exists reports whether the patient ID refers to a stored patient without
// decoding the document.
func (pr *PatientRepository) Exists(ctx context.Context, id string) (bool, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}

	count, err := pr.collection.CountDocuments(ctx, bson.M{"_id": objectID})
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (pr *PatientRepository) Update(ctx context.Context, id string, update bson.M) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errors.New("invalid patient ID")
	}

	update["updatedAt"] = time.Now()

	result, err := pr.collection.UpdateOne(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": update},
	)

	if err != nil {
		return err
	}

	if result.MatchedCount == 0 {
		return errors.New("patient not found")
	}

	return nil
}

func (pr *PatientRepository) UpdateMonitoringSettings(ctx context.Context, id string, settings models.MonitoringSettings) error {
	return pr.Update(ctx, id, bson.M{"monitoringSettings": settings})
}

func (pr *PatientRepository) GetAll(ctx context.Context, limit, offset int) ([]models.Patient, error) {
	opts := options.Find().
		SetSort(bson.M{"lastName": 1}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := pr.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var patients []models.Patient
	err = cursor.All(ctx, &patients)
	return patients, err
}

func (pr *PatientRepository) GetByIDs(ctx context.Context, ids []string) ([]models.Patient, error) {
	objectIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		objectID, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		objectIDs = append(objectIDs, objectID)
	}

	cursor, err := pr.collection.Find(ctx, bson.M{"_id": bson.M{"$in": objectIDs}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var patients []models.Patient
	err = cursor.All(ctx, &patients)
	return patients, err
}

// GetActivePatients returns patients currently under monitoring. Used by the
// simulator and the device watchdog.
func (pr *PatientRepository) GetActivePatients(ctx context.Context) ([]models.Patient, error) {
	cursor, err := pr.collection.Find(ctx, bson.M{"status": models.PatientStatusActive})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var patients []models.Patient
	err = cursor.All(ctx, &patients)
	return patients, err
}

func (pr *PatientRepository) Count(ctx context.Context) (int64, error) {
	return pr.collection.CountDocuments(ctx, bson.M{})
}

func (pr *PatientRepository) Delete(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errors.New("invalid patient ID")
	}

	result, err := pr.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return err
	}

	if result.DeletedCount == 0 {
		return errors.New("patient not found")
	}

	return nil
}
