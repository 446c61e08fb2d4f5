package mongoorders

import (
	"context"
	"time"

	"github.com/BearBump/OrderBox/internal/models"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type syncDoc struct {
	Type      string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (s *Storage) SyncTimestamps(ctx context.Context) (models.SyncTimestamps, error) {
	var out models.SyncTimestamps

	cur, err := s.db.Collection(syncCollection).Find(ctx, bson.M{})
	if err != nil {
		return out, errors.Wrap(err, "find sync timestamps")
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var d syncDoc
		if err := cur.Decode(&d); err != nil {
			return out, errors.Wrap(err, "decode sync timestamp")
		}
		t := models.SyncType(d.Type)
		if !t.Valid() {
			continue
		}
		v := d.Value
		out.Set(t, &v)
	}
	return out, errors.Wrap(cur.Err(), "cursor err")
}

func (s *Storage) SetSyncTimestamp(ctx context.Context, t models.SyncType, value string) error {
	update := bson.M{"$set": bson.M{"value": value, "updated_at": time.Now().UTC()}}
	_, err := s.db.Collection(syncCollection).UpdateOne(ctx, bson.M{"_id": string(t)}, update, options.Update().SetUpsert(true))
	if err != nil {
		return errors.Wrap(err, "upsert sync timestamp")
	}
	return nil
}
