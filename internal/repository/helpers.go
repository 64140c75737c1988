package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names match the ones the existing deployment already uses.
const (
	SubmissionsCollection = "formsubmissions"
	EvaluationsCollection = "projectevaluations"
)

// ErrDuplicate is returned when a write violates a unique index.
var ErrDuplicate = errors.New("duplicate key")

// translateWriteErr maps driver errors onto the package's sentinels.
func translateWriteErr(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return errors.Join(ErrDuplicate, err)
	}
	return err
}

// projection builds a find projection for fields. Nil means "everything".
func projection(fields []string) bson.D {
	if len(fields) == 0 {
		return nil
	}
	p := bson.D{{Key: "_id", Value: 1}}
	for _, f := range fields {
		if f == "_id" {
			continue
		}
		p = append(p, bson.E{Key: f, Value: 1})
	}
	return p
}

// decodeAll drains cur into a slice of T.
func decodeAll[T any](ctx context.Context, cur *mongo.Cursor) ([]T, error) {
	defer cur.Close(ctx)
	out := []T{}
	for cur.Next(ctx) {
		var v T
		if err := cur.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, cur.Err()
}

// ensure creates idx on coll. Creating an index that already exists with the
// same keys and options is a no-op on the server.
func ensure(ctx context.Context, coll *mongo.Collection, idx ...mongo.IndexModel) error {
	_, err := coll.Indexes().CreateMany(ctx, idx)
	return err
}

func uniqueIndex(field string) mongo.IndexModel {
	return mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: 1}},
		Options: options.Index().SetUnique(true),
	}
}

func descIndex(field string) mongo.IndexModel {
	return mongo.IndexModel{Keys: bson.D{{Key: field, Value: -1}}}
}

// listIndexes returns the index specs of coll as plain documents.
func listIndexes(ctx context.Context, coll *mongo.Collection) ([]bson.M, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	return decodeAll[bson.M](ctx, cur)
}
