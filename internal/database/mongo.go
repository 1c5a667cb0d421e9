package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const seqField = "_seq"

// MongoStore maps each collection onto a MongoDB collection with _id set to
// the document ID. Filtering and sorting run in process over a scan ordered
// by first-insert sequence, which keeps semantics identical to the other
// backends.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore connects and pings the server before returning.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo URI is required")
	}
	if database == "" {
		database = "civic"
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return &MongoStore{client: client, db: client.Database(database)}, nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) Get(ctx context.Context, collection, id string) (GetResult, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return GetResult{ID: id}, nil
	}
	if err != nil {
		return GetResult{}, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return GetResult{Exists: true, ID: id, Data: fromBSON(raw)}, nil
}

// sequence returns the stored insertion sequence for id, or a fresh one.
func (s *MongoStore) sequence(ctx context.Context, collection, id string) (int64, error) {
	var existing struct {
		Seq int64 `bson:"_seq"`
	}
	opts := options.FindOne().SetProjection(bson.M{seqField: 1})
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}, opts).Decode(&existing)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return time.Now().UnixNano(), nil
	}
	if err != nil {
		return 0, err
	}
	return existing.Seq, nil
}

func (s *MongoStore) replace(ctx context.Context, collection, id string, doc Document) error {
	seq, err := s.sequence(ctx, collection, id)
	if err != nil {
		return fmt.Errorf("failed to load %s/%s: %w", collection, id, err)
	}
	record := bson.M{}
	for k, v := range doc {
		record[k] = v
	}
	record["_id"] = id
	record[seqField] = seq

	_, err = s.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, record,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *MongoStore) Set(ctx context.Context, collection, id string, data Document) error {
	doc, err := normalizeDocument(data)
	if err != nil {
		return err
	}
	doc["id"] = id
	return s.replace(ctx, collection, id, doc)
}

func (s *MongoStore) Update(ctx context.Context, collection, id string, partial Document) error {
	patch, err := normalizeDocument(partial)
	if err != nil {
		return err
	}
	delete(patch, "_id")
	delete(patch, seqField)
	if len(patch) == 0 {
		return nil
	}
	patch["id"] = id
	_, err = s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M(patch)})
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *MongoStore) All(ctx context.Context, collection string) ([]Document, error) {
	cur, err := s.db.Collection(collection).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: seqField, Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	var docs []Document
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode row in %s: %w", collection, err)
		}
		docs = append(docs, fromBSON(raw))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", collection, err)
	}
	return docs, nil
}

func (s *MongoStore) Query(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	docs, err := s.All(ctx, collection)
	if err != nil {
		return nil, err
	}
	return applyQuery(docs, &filter, nil)
}

func (s *MongoStore) QueryWithSort(ctx context.Context, collection string, filter *Filter, order Sort) ([]Document, error) {
	docs, err := s.All(ctx, collection)
	if err != nil {
		return nil, err
	}
	return applyQuery(docs, filter, &order)
}

// fromBSON strips storage fields and converts driver types into plain JSON types.
func fromBSON(raw bson.M) Document {
	doc := Document{}
	for k, v := range raw {
		if k == "_id" || k == seqField {
			continue
		}
		doc[k] = plainValue(v)
	}
	return doc
}

func plainValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = plainValue(val)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = plainValue(e.Value)
		}
		return out
	case primitive.A:
		out := make([]any, len(t))
		for i := range t {
			out[i] = plainValue(t[i])
		}
		return out
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case primitive.DateTime:
		return t.Time().UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}
