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

type AlertRepository struct {
	collection *mongo.Collection
}

func NewAlertRepository(db *mongo.Database) *AlertRepository {
	return &AlertRepository{
		collection: db.Collection("alerts"),
	}
}

func (ar *AlertRepository) Create(ctx context.Context, alert *models.Alert) error {
	alert.ID = primitive.NewObjectID()
	alert.CreatedAt = time.Now()
	alert.UpdatedAt = time.Now()
	if alert.Status == "" {
		alert.Status = models.AlertStatusActive
	}

	_, err := ar.collection.InsertOne(ctx, alert)
	return err
}

func (ar *AlertRepository) GetByID(ctx context.Context, id string) (*models.Alert, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errors.New("invalid alert ID")
	}

	var alert models.Alert
	err = ar.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&alert)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.New("alert not found")
		}
		return nil, err
	}

	return &alert, nil
}

func (ar *AlertRepository) Update(ctx context.Context, id string, update bson.M) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errors.New("invalid alert ID")
	}

	update["updatedAt"] = time.Now()

	result, err := ar.collection.UpdateOne(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": update},
	)

	if err != nil {
		return err
	}

	if result.MatchedCount == 0 {
		return errors.New("alert not found")
	}

	return nil
}

func (ar *AlertRepository) GetByPatient(ctx context.Context, patientID string, query models.AlertQuery) ([]models.Alert, error) {
	objectID, err := primitive.ObjectIDFromHex(patientID)
	if err != nil {
		return nil, errors.New("invalid patient ID")
	}

	filter := bson.M{"patient": objectID}
	if query.Status != "" {
		filter["status"] = query.Status
	}
	if query.Severity != "" {
		filter["severity"] = query.Severity
	}

	limit := int64(query.Limit)
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	opts := options.Find().
		SetSort(bson.M{"createdAt": -1}).
		SetLimit(limit)

	cursor, err := ar.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var alerts []models.Alert
	err = cursor.All(ctx, &alerts)
	return alerts, err
}

// GetOpen returns non-resolved alerts, optionally limited to a set of
// patients. A nil patient filter means all patients.
func (ar *AlertRepository) GetOpen(ctx context.Context, patientIDs []string, query models.AlertQuery) ([]models.Alert, error) {
	filter := bson.M{"status": bson.M{"$ne": models.AlertStatusResolved}}
	if query.Status != "" {
		filter["status"] = query.Status
	}
	if query.Severity != "" {
		filter["severity"] = query.Severity
	}

	if patientIDs != nil {
		objectIDs := make([]primitive.ObjectID, 0, len(patientIDs))
		for _, id := range patientIDs {
			objectID, err := primitive.ObjectIDFromHex(id)
			if err != nil {
				continue
			}
			objectIDs = append(objectIDs, objectID)
		}
		filter["patient"] = bson.M{"$in": objectIDs}
	}

	limit := int64(query.Limit)
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	opts := options.Find().
		SetSort(bson.M{"createdAt": -1}).
		SetLimit(limit)

	cursor, err := ar.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var alerts []models.Alert
	err = cursor.All(ctx, &alerts)
	return alerts, err
}

// GetRecentByType returns the newest non-resolved alert of a given type for a
// patient created after the cutoff. Used to dedupe watchdog alerts.
func (ar *AlertRepository) GetRecentByType(ctx context.Context, patientID, alertType string, since time.Time) (*models.Alert, error) {
	objectID, err := primitive.ObjectIDFromHex(patientID)
	if err != nil {
		return nil, errors.New("invalid patient ID")
	}

	opts := options.FindOne().SetSort(bson.M{"createdAt": -1})

	var alert models.Alert
	err = ar.collection.FindOne(ctx, bson.M{
		"patient":   objectID,
		"alertType": alertType,
		"status":    bson.M{"$ne": models.AlertStatusResolved},
		"createdAt": bson.M{"$gte": since},
	}, opts).Decode(&alert)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.New("alert not found")
		}
		return nil, err
	}

	return &alert, nil
}

// AppendNotification pushes one delivery-log entry onto the alert.
func (ar *AlertRepository) AppendNotification(ctx context.Context, id string, notification models.AlertNotification) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errors.New("invalid alert ID")
	}

	result, err := ar.collection.UpdateOne(
		ctx,
		bson.M{"_id": objectID},
		bson.M{
			"$push": bson.M{"notifications": notification},
			"$set":  bson.M{"updatedAt": time.Now()},
		},
	)

	if err != nil {
		return err
	}

	if result.MatchedCount == 0 {
		return errors.New("alert not found")
	}

	return nil
}

func (ar *AlertRepository) MarkNotificationRead(ctx context.Context, id, userID string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errors.New("invalid alert ID")
	}
	userObjectID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return errors.New("invalid user ID")
	}

	now := time.Now()
	_, err = ar.collection.UpdateOne(
		ctx,
		bson.M{"_id": objectID, "notifications.sentTo": userObjectID},
		bson.M{"$set": bson.M{
			"notifications.$.read":   true,
			"notifications.$.readAt": now,
			"updatedAt":              now,
		}},
	)

	return err
}

func (ar *AlertRepository) CountByStatus(ctx context.Context, patientIDs []string) (map[string]int64, error) {
	match := bson.M{}
	if patientIDs != nil {
		objectIDs := make([]primitive.ObjectID, 0, len(patientIDs))
		for _, id := range patientIDs {
			objectID, err := primitive.ObjectIDFromHex(id)
			if err != nil {
				continue
			}
			objectIDs = append(objectIDs, objectID)
		}
		match["patient"] = bson.M{"$in": objectIDs}
	}

	pipeline := []bson.M{
		{"$match": match},
		{"$group": bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
		}},
	}

	cursor, err := ar.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []struct {
		ID    string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(results))
	for _, result := range results {
		counts[result.ID] = result.Count
	}

	return counts, nil
}

func (ar *AlertRepository) CountByType(ctx context.Context, patientIDs []string, since time.Time) ([]models.AlertTypeCount, error) {
	match := bson.M{"createdAt": bson.M{"$gte": since}}
	if patientIDs != nil {
		objectIDs := make([]primitive.ObjectID, 0, len(patientIDs))
		for _, id := range patientIDs {
			objectID, err := primitive.ObjectIDFromHex(id)
			if err != nil {
				continue
			}
			objectIDs = append(objectIDs, objectID)
		}
		match["patient"] = bson.M{"$in": objectIDs}
	}

	pipeline := []bson.M{
		{"$match": match},
		{"$group": bson.M{
			"_id":   "$alertType",
			"count": bson.M{"$sum": 1},
		}},
		{"$sort": bson.M{"count": -1}},
	}

	cursor, err := ar.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []struct {
		ID    string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}

	counts := make([]models.AlertTypeCount, 0, len(results))
	for _, result := range results {
		counts = append(counts, models.AlertTypeCount{AlertType: result.ID, Count: result.Count})
	}

	return counts, nil
}
