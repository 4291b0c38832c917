package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/courier-tracking/internal/core/domain"
)

const collectionLocations = "locations"

// LocationRepository stores position reports. It is the only place ids and
// timestamps of location records are assigned.
type LocationRepository struct {
	col *mongo.Collection
}

func NewLocationRepository(db *mongo.Database) *LocationRepository {
	return &LocationRepository{col: db.Collection(collectionLocations)}
}

type locationDoc struct {
	ID         primitive.ObjectID `bson:"_id"`
	DeliveryID string             `bson:"delivery_id"`
	Latitude   float64            `bson:"latitude"`
	Longitude  float64            `bson:"longitude"`
	Timestamp  time.Time          `bson:"timestamp"`
}

func (d locationDoc) toDomain() *domain.Location {
	return &domain.Location{
		ID:         d.ID.Hex(),
		DeliveryID: d.DeliveryID,
		Latitude:   d.Latitude,
		Longitude:  d.Longitude,
		Timestamp:  d.Timestamp.UTC(),
	}
}

// Create inserts a new record and returns it with its assigned id and
// timestamp. The timestamp is truncated to BSON date precision so the
// returned record equals what a later fetch reads back.
func (r *LocationRepository) Create(ctx context.Context, deliveryID string, latitude, longitude float64) (*domain.Location, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := locationDoc{
		ID:         primitive.NewObjectID(),
		DeliveryID: deliveryID,
		Latitude:   latitude,
		Longitude:  longitude,
		Timestamp:  time.Now().UTC().Truncate(time.Millisecond),
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

// ListByDelivery returns every record of a delivery ordered by timestamp,
// ties broken by id.
func (r *LocationRepository) ListByDelivery(ctx context.Context, deliveryID string) ([]*domain.Location, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"delivery_id": deliveryID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []locationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]*domain.Location, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

// EnsureIndexes creates necessary indexes on the locations collection.
func (r *LocationRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "delivery_id", Value: 1}, {Key: "timestamp", Value: 1}},
	})
	return err
}
