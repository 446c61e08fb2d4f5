package mongoorders

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BearBump/OrderBox/internal/docstore"
	"github.com/BearBump/OrderBox/internal/models"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (s *Storage) Get(ctx context.Context, coll docstore.Collection, id string) (*models.Order, error) {
	var doc bson.M
	err := s.db.Collection(string(coll)).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find document")
	}
	return decode(doc)
}

func (s *Storage) List(ctx context.Context, coll docstore.Collection, q docstore.Query) ([]*models.Order, error) {
	filter := bson.M{}
	if q.OriginalOrDocID != "" {
		filter["$or"] = bson.A{
			bson.M{"_id": q.OriginalOrDocID},
			bson.M{"originalId": q.OriginalOrDocID},
		}
	}
	if q.ExcludeArchived {
		filter["archived"] = bson.M{"$ne": true}
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := s.db.Collection(string(coll)).Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find documents")
	}
	defer cur.Close(ctx)

	out := make([]*models.Order, 0)
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			slog.Warn("skip undecodable order document", "collection", string(coll), "error", err.Error())
			continue
		}
		id := doc["_id"]
		o, err := decode(doc)
		if err != nil {
			slog.Warn("skip undecodable order document", "collection", string(coll), "id", id, "error", err.Error())
			continue
		}
		out = append(out, o)
	}
	if err := cur.Err(); err != nil {
		return nil, errors.Wrap(err, "cursor err")
	}
	return out, nil
}

// Put replaces the whole document. The order is stored as its JSON shape so
// decimals and timestamps look the same as in the other backends.
func (s *Storage) Put(ctx context.Context, coll docstore.Collection, o *models.Order) error {
	if o.ID == "" {
		return errors.New("put document: empty id")
	}
	doc, err := encode(o)
	if err != nil {
		return err
	}
	_, err = s.db.Collection(string(coll)).ReplaceOne(ctx, bson.M{"_id": o.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Wrap(err, "replace document")
	}
	return nil
}

func (s *Storage) Delete(ctx context.Context, coll docstore.Collection, id string) error {
	res, err := s.db.Collection(string(coll)).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "delete document")
	}
	if res.DeletedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func encode(o *models.Order) (bson.D, error) {
	raw, err := json.Marshal(o)
	if err != nil {
		return nil, errors.Wrap(err, "encode document")
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON(raw, false, &doc); err != nil {
		return nil, errors.Wrap(err, "convert document")
	}
	return append(bson.D{{Key: "_id", Value: o.ID}}, doc...), nil
}

// decode accepts documents written by this package and by other writers:
// native BSON dates, ObjectIDs and Decimal128 are turned into the plain
// values the JSON shape of an order expects.
func decode(doc bson.M) (*models.Order, error) {
	delete(doc, "_id")
	raw, err := json.Marshal(plainValue(doc))
	if err != nil {
		return nil, errors.Wrap(err, "convert document")
	}
	var o models.Order
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, errors.Wrap(err, "decode document")
	}
	return &o, nil
}

func plainValue(v interface{}) interface{} {
	switch x := v.(type) {
	case bson.M:
		out := make(map[string]interface{}, len(x))
		for k, val := range x {
			out[k] = plainValue(val)
		}
		return out
	case map[string]interface{}:
		return plainValue(bson.M(x))
	case bson.D:
		out := make(map[string]interface{}, len(x))
		for _, e := range x {
			out[e.Key] = plainValue(e.Value)
		}
		return out
	case bson.A:
		out := make([]interface{}, len(x))
		for i, val := range x {
			out[i] = plainValue(val)
		}
		return out
	case []interface{}:
		return plainValue(bson.A(x))
	case primitive.DateTime:
		return x.Time().UTC()
	case primitive.Timestamp:
		return time.Unix(int64(x.T), 0).UTC()
	case primitive.ObjectID:
		return x.Hex()
	case primitive.Decimal128:
		return x.String()
	case primitive.Null, primitive.Undefined:
		return nil
	}
	return v
}
