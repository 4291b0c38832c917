package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/courier-tracking/internal/core/domain"
	"github.com/99minutos/courier-tracking/internal/core/ports"
)

const collectionDeliveries = "deliveries"

type DeliveryRepository struct {
	col *mongo.Collection
}

func NewDeliveryRepository(db *mongo.Database) *DeliveryRepository {
	return &DeliveryRepository{col: db.Collection(collectionDeliveries)}
}

// Create inserts a new delivery document.
func (r *DeliveryRepository) Create(ctx context.Context, d *domain.Delivery) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.InsertOne(ctx, d)
	return err
}

// FindByID retrieves a delivery by id.
func (r *DeliveryRepository) FindByID(ctx context.Context, id string) (*domain.Delivery, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var d domain.Delivery
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrDeliveryNotFound
		}
		return nil, err
	}
	return &d, nil
}

// List returns the deliveries matching filter, newest first.
func (r *DeliveryRepository) List(ctx context.Context, f ports.DeliveryFilter) ([]*domain.Delivery, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{}
	if f.CustomerID != "" {
		filter["customer_id"] = f.CustomerID
	}
	if f.CourierID != "" {
		filter["courier_id"] = f.CourierID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]*domain.Delivery, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateStatus is a compare-and-set on the status field.
func (r *DeliveryRepository) UpdateStatus(ctx context.Context, id string, from, to domain.DeliveryStatus) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"_id": id, "status": string(from)}
	update := bson.M{"$set": bson.M{
		"status":     string(to),
		"updated_at": time.Now().UTC(),
	}}

	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// Assign sets the courier of a PENDING delivery and moves it to ASSIGNED.
func (r *DeliveryRepository) Assign(ctx context.Context, id, courierID, courierName string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"_id": id, "status": string(domain.StatusPending)}
	update := bson.M{"$set": bson.M{
		"courier_id":   courierID,
		"courier_name": courierName,
		"status":       string(domain.StatusAssigned),
		"updated_at":   time.Now().UTC(),
	}}

	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// EnsureIndexes creates necessary indexes on the deliveries collection.
func (r *DeliveryRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "courier_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
