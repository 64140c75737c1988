package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/db"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/models"
)

type SubmissionRepo struct {
	coll *mongo.Collection
}

func NewSubmissionRepo(d *db.DB) *SubmissionRepo {
	return &SubmissionRepo{coll: d.Collection(SubmissionsCollection)}
}

func (r *SubmissionRepo) EnsureIndexes(ctx context.Context) error {
	return ensure(ctx, r.coll, uniqueIndex("projectId"), descIndex("createdAt"))
}

// Create inserts sub and fills in its _id. A projectId that is already taken
// yields ErrDuplicate.
func (r *SubmissionRepo) Create(ctx context.Context, sub *models.FormSubmission) error {
	if sub.ID.IsZero() {
		sub.ID = primitive.NewObjectID()
	}
	if _, err := r.coll.InsertOne(ctx, sub); err != nil {
		return fmt.Errorf("insert submission: %w", translateWriteErr(err))
	}
	return nil
}

// List returns submissions newest first. When fields is non-empty only _id
// and those fields are loaded.
func (r *SubmissionRepo) List(ctx context.Context, fields []string) ([]models.FormSubmission, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if p := projection(fields); p != nil {
		opts.SetProjection(p)
	}
	cur, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find submissions: %w", err)
	}
	return decodeAll[models.FormSubmission](ctx, cur)
}

// FindByProjectID returns (nil, nil) when no submission has that id.
func (r *SubmissionRepo) FindByProjectID(ctx context.Context, projectID string) (*models.FormSubmission, error) {
	var sub models.FormSubmission
	err := r.coll.FindOne(ctx, bson.D{{Key: "projectId", Value: projectID}}).Decode(&sub)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find submission %s: %w", projectID, err)
	}
	return &sub, nil
}

// FindByProjectIDs loads every submission whose projectId is in ids, keyed
// by projectId. Missing ids are simply absent from the map.
func (r *SubmissionRepo) FindByProjectIDs(ctx context.Context, ids []string) (map[string]*models.FormSubmission, error) {
	out := make(map[string]*models.FormSubmission, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := r.coll.Find(ctx, bson.D{{Key: "projectId", Value: bson.D{{Key: "$in", Value: ids}}}})
	if err != nil {
		return nil, fmt.Errorf("find submissions by project: %w", err)
	}
	subs, err := decodeAll[models.FormSubmission](ctx, cur)
	if err != nil {
		return nil, err
	}
	for i := range subs {
		out[subs[i].ProjectID] = &subs[i]
	}
	return out, nil
}

func (r *SubmissionRepo) Count(ctx context.Context) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.D{})
}

func (r *SubmissionRepo) ListIndexes(ctx context.Context) ([]bson.M, error) {
	return listIndexes(ctx, r.coll)
}
