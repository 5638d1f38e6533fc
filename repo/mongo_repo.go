package repo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Skryldev/proofing-amp/db"
	"github.com/Skryldev/proofing-amp/models"
)

// MongoUserRepo reads user documents from one MongoDB collection.
type MongoUserRepo struct {
	coll   *mongo.Collection
	ns     Namespace
	schema *models.Schema
	errMap db.ErrorMapper
}

// NewMongoUserRepo returns a store over ns.Database / ns.Collection.
func NewMongoUserRepo(client *mongo.Client, ns Namespace, schema *models.Schema) (*MongoUserRepo, error) {
	if ns.Database == "" || ns.Collection == "" {
		return nil, fmt.Errorf("repo/mongo: database and collection are required, got %q", ns)
	}
	return &MongoUserRepo{
		coll:   client.Database(ns.Database).Collection(ns.Collection),
		ns:     ns,
		schema: schema,
		errMap: db.DefaultErrorMapper(),
	}, nil
}

// idKeys lists the _id values id may be stored under. Central user ids are
// ObjectIDs, so a 24-hex id is tried as one first.
func idKeys(id string) []any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return []any{oid, id}
	}
	return []any{id}
}

// GetByID loads and validates the document stored under id.
func (r *MongoUserRepo) GetByID(ctx context.Context, id string) (models.Record, error) {
	var lastErr error
	for _, key := range idKeys(id) {
		var doc bson.M
		err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: key}}).Decode(&doc)
		if err == nil {
			return validate(r.schema, models.NewRecord(doc))
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("repo/mongo: get %q: %w", id, r.errMap.Map(err))
		}
		lastErr = err
	}
	return nil, notFound(r.ns, id, lastErr)
}

// Save upserts rec under id. A 24-hex id is stored as an ObjectID.
func (r *MongoUserRepo) Save(ctx context.Context, id string, rec models.Record) error {
	key := idKeys(id)[0]
	doc := bson.M{}
	for k, v := range rec {
		doc[k] = v
	}
	doc["_id"] = key

	_, err := r.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: key}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("repo/mongo: save %q: %w", id, r.errMap.Map(err))
	}
	return nil
}

// Delete removes the document stored under id.
func (r *MongoUserRepo) Delete(ctx context.Context, id string) error {
	for _, key := range idKeys(id) {
		res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: key}})
		if err != nil {
			return fmt.Errorf("repo/mongo: delete %q: %w", id, r.errMap.Map(err))
		}
		if res.DeletedCount > 0 {
			return nil
		}
	}
	return notFound(r.ns, id, nil)
}

var _ Store = (*MongoUserRepo)(nil)
