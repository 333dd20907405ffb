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

type VitalRepository struct {
	collection *mongo.Collection
}

func NewVitalRepository(db *mongo.Database) *VitalRepository {
	return &VitalRepository{
		collection: db.Collection("vital_readings"),
	}
}

func (vr *VitalRepository) Create(ctx context.Context, reading *models.VitalReading) error {
	reading.ID = primitive.NewObjectID()
	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now()
	}

	_, err := vr.collection.InsertOne(ctx, reading)
	return err
}

func (vr *VitalRepository) CreateMany(ctx context.Context, readings []*models.VitalReading) error {
	if len(readings) == 0 {
		return nil
	}

	docs := make([]interface{}, len(readings))
	for i, reading := range readings {
		reading.ID = primitive.NewObjectID()
		if reading.Timestamp.IsZero() {
			reading.Timestamp = time.Now()
		}
		docs[i] = reading
	}

	_, err := vr.collection.InsertMany(ctx, docs)
	return err
}

func (vr *VitalRepository) GetByID(ctx context.Context, id string) (*models.VitalReading, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errors.New("invalid reading ID")
	}

	var reading models.VitalReading
	err = vr.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&reading)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.New("reading not found")
		}
		return nil, err
	}

	return &reading, nil
}

func (vr *VitalRepository) GetByPatient(ctx context.Context, patientID string, query models.VitalReadingQuery) ([]models.VitalReading, error) {
	objectID, err := primitive.ObjectIDFromHex(patientID)
	if err != nil {
		return nil, errors.New("invalid patient ID")
	}

	filter := bson.M{"patient": objectID}
	if query.Type != "" {
		filter["readingType"] = query.Type
	}

	timeFilter := bson.M{}
	if query.StartDate != nil {
		timeFilter["$gte"] = *query.StartDate
	}
	if query.EndDate != nil {
		timeFilter["$lte"] = *query.EndDate
	}
	if len(timeFilter) > 0 {
		filter["timestamp"] = timeFilter
	}

	limit := int64(query.Limit)
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	opts := options.Find().
		SetSort(bson.M{"timestamp": -1}).
		SetLimit(limit)

	cursor, err := vr.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var readings []models.VitalReading
	err = cursor.All(ctx, &readings)
	return readings, err
}

// GetLatestByType returns the most recent reading of one metric for a patient.
func (vr *VitalRepository) GetLatestByType(ctx context.Context, patientID, readingType string) (*models.VitalReading, error) {
	objectID, err := primitive.ObjectIDFromHex(patientID)
	if err != nil {
		return nil, errors.New("invalid patient ID")
	}

	opts := options.FindOne().SetSort(bson.M{"timestamp": -1})

	var reading models.VitalReading
	err = vr.collection.FindOne(ctx, bson.M{
		"patient":     objectID,
		"readingType": readingType,
	}, opts).Decode(&reading)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.New("reading not found")
		}
		return nil, err
	}

	return &reading, nil
}

// GetLatestPerType returns the most recent reading of each metric for a
// patient, keyed by reading type.
func (vr *VitalRepository) GetLatestPerType(ctx context.Context, patientID string) (map[string]models.VitalReading, error) {
	objectID, err := primitive.ObjectIDFromHex(patientID)
	if err != nil {
		return nil, errors.New("invalid patient ID")
	}

	pipeline := []bson.M{
		{"$match": bson.M{"patient": objectID}},
		{"$sort": bson.M{"timestamp": -1}},
		{"$group": bson.M{
			"_id":     "$readingType",
			"reading": bson.M{"$first": "$$ROOT"},
		}},
	}

	cursor, err := vr.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []struct {
		ID      string              `bson:"_id"`
		Reading models.VitalReading `bson:"reading"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}

	latest := make(map[string]models.VitalReading, len(results))
	for _, result := range results {
		latest[result.ID] = result.Reading
	}

	return latest, nil
}

func (vr *VitalRepository) GetAbnormal(ctx context.Context, patientID string, limit int) ([]models.VitalReading, error) {
	objectID, err := primitive.ObjectIDFromHex(patientID)
	if err != nil {
		return nil, errors.New("invalid patient ID")
	}

	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	opts := options.Find().
		SetSort(bson.M{"timestamp": -1}).
		SetLimit(int64(limit))

	cursor, err := vr.collection.Find(ctx, bson.M{
		"patient":        objectID,
		"alertTriggered": true,
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var readings []models.VitalReading
	err = cursor.All(ctx, &readings)
	return readings, err
}

func (vr *VitalRepository) MarkReviewed(ctx context.Context, id, reviewerID string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errors.New("invalid reading ID")
	}
	reviewerObjectID, err := primitive.ObjectIDFromHex(reviewerID)
	if err != nil {
		return errors.New("invalid user ID")
	}

	now := time.Now()
	result, err := vr.collection.UpdateOne(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{
			"reviewedBy": reviewerObjectID,
			"reviewedAt": now,
		}},
	)

	if err != nil {
		return err
	}

	if result.MatchedCount == 0 {
		return errors.New("reading not found")
	}

	return nil
}

func (vr *VitalRepository) CountByPatient(ctx context.Context, patientID string) (int64, error) {
	objectID, err := primitive.ObjectIDFromHex(patientID)
	if err != nil {
		return 0, errors.New("invalid patient ID")
	}

	return vr.collection.CountDocuments(ctx, bson.M{"patient": objectID})
}

// LastReadingTime returns the timestamp of the most recent reading a device
// reported for a patient and metric. Used by the device watchdog.
func (vr *VitalRepository) LastReadingTime(ctx context.Context, patientID, readingType string) (time.Time, error) {
	reading, err := vr.GetLatestByType(ctx, patientID, readingType)
	if err != nil {
		return time.Time{}, err
	}
	return reading.Timestamp, nil
}
