package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/db"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/evaluation"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/models"
)

type EvaluationRepo struct {
	coll *mongo.Collection
}

func NewEvaluationRepo(d *db.DB) *EvaluationRepo {
	return &EvaluationRepo{coll: d.Collection(EvaluationsCollection)}
}

func (r *EvaluationRepo) EnsureIndexes(ctx context.Context) error {
	return ensure(ctx, r.coll, uniqueIndex("projectId"), descIndex("lastUpdated"))
}

// FindByProjectID returns (nil, nil) when the project has no evaluation.
func (r *EvaluationRepo) FindByProjectID(ctx context.Context, projectID string) (*models.ProjectEvaluation, error) {
	var ev models.ProjectEvaluation
	err := r.coll.FindOne(ctx, bson.D{{Key: "projectId", Value: projectID}}).Decode(&ev)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find evaluation %s: %w", projectID, err)
	}
	ev.Normalize()
	return &ev, nil
}

// Save writes a reconciled evaluation in a single findOneAndUpdate and
// returns the stored document. New notes are pushed rather than rewritten.
func (r *EvaluationRepo) Save(ctx context.Context, res evaluation.Result) (*models.ProjectEvaluation, error) {
	filter := bson.D{{Key: "projectId", Value: res.Evaluation.ProjectID}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var ev models.ProjectEvaluation
	err := r.coll.FindOneAndUpdate(ctx, filter, buildUpsert(res), opts).Decode(&ev)
	// Two racing upserts may both try to insert; the loser retries as an update.
	if mongo.IsDuplicateKeyError(err) {
		err = r.coll.FindOneAndUpdate(ctx, filter, buildUpsert(res), opts).Decode(&ev)
	}
	if err != nil {
		return nil, fmt.Errorf("save evaluation %s: %w", res.Evaluation.ProjectID, translateWriteErr(err))
	}
	ev.Normalize()
	return &ev, nil
}

// buildUpsert renders res as update operators. Wholesale fields go in $set,
// appended notes in $push, and insert-only defaults in $setOnInsert. A round
// never appears in both $push and $setOnInsert. projectId comes from the
// filter equality on insert.
func buildUpsert(res evaluation.Result) bson.D {
	ev := res.Evaluation

	set := bson.D{
		{Key: "projectStatus", Value: ev.ProjectStatus},
		{Key: "additionalDocuments", Value: ev.AdditionalDocuments},
		{Key: "evaluationChecklist", Value: ev.EvaluationChecklist},
		{Key: "lastUpdated", Value: ev.LastUpdated},
		{Key: "updatedAt", Value: ev.UpdatedAt},
	}
	setOnInsert := bson.D{{Key: "createdAt", Value: ev.CreatedAt}}
	push := bson.D{}

	for _, round := range models.Rounds {
		path := "roundNotes." + string(round)
		if notes := res.Appended[round]; len(notes) > 0 {
			push = append(push, bson.E{Key: path, Value: bson.D{{Key: "$each", Value: notes}}})
		} else {
			setOnInsert = append(setOnInsert, bson.E{Key: path, Value: []models.Note{}})
		}
	}

	update := bson.D{
		{Key: "$set", Value: set},
		{Key: "$setOnInsert", Value: setOnInsert},
	}
	if len(push) > 0 {
		update = append(update, bson.E{Key: "$push", Value: push})
	}
	return update
}

// List returns every evaluation, most recently updated first.
func (r *EvaluationRepo) List(ctx context.Context) ([]models.ProjectEvaluation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "lastUpdated", Value: -1}})
	cur, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find evaluations: %w", err)
	}
	evs, err := decodeAll[models.ProjectEvaluation](ctx, cur)
	if err != nil {
		return nil, err
	}
	for i := range evs {
		evs[i].Normalize()
	}
	return evs, nil
}

// CountByStatus groups evaluations by projectStatus.
func (r *EvaluationRepo) CountByStatus(ctx context.Context) (map[models.Status]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$projectStatus"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("count evaluations by status: %w", err)
	}
	rows, err := decodeAll[struct {
		Status models.Status `bson:"_id"`
		Count  int64         `bson:"count"`
	}](ctx, cur)
	if err != nil {
		return nil, err
	}
	out := make(map[models.Status]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

// IsDuplicate reports whether err came from a unique index violation.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

func (r *EvaluationRepo) ListIndexes(ctx context.Context) ([]bson.M, error) {
	return listIndexes(ctx, r.coll)
}
