package student

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"student-management-api/internal/db"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PageFilter bounds a paginated query. Skip and Limit are assumed already
// clamped by the caller.
type PageFilter struct {
	Program   string
	BatchYear int
	Skip      int64
	Limit     int64
}

type Repository interface {
	Insert(ctx context.Context, s *Student) (*Student, error)
	FindAll(ctx context.Context) ([]Student, error)
	FindByStudentID(ctx context.Context, studentID string) (*Student, error)
	FindByProgram(ctx context.Context, program string) ([]Student, error)
	FindPage(ctx context.Context, filter PageFilter) ([]Student, int64, error)
	CountDocuments(ctx context.Context, filter bson.M) int64
	UpdateByStudentID(ctx context.Context, studentID string, patch bson.M) (*Student, error)
	DeleteByStudentID(ctx context.Context, studentID string) (*Student, error)
	CountsByField(ctx context.Context, field string) (map[string]int64, error)
	CountRecentEnrollments(ctx context.Context, window time.Duration) int64
}

type repository struct {
	db     *db.Mongo
	logger *slog.Logger
}

func NewRepository(database *db.Mongo, logger *slog.Logger) Repository {
	return &repository{
		db:     database,
		logger: logger,
	}
}

func (r *repository) Insert(ctx context.Context, s *Student) (*Student, error) {
	coll, err := r.db.Collection()
	if err != nil {
		return nil, err
	}

	result, err := coll.InsertOne(ctx, s)
	if err != nil {
		return nil, err
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		s.ID = oid
	}
	return s, nil
}

func (r *repository) FindAll(ctx context.Context) ([]Student, error) {
	coll, err := r.db.Collection()
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "studentId", Value: 1}})
	cursor, err := coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	return decodeAll(ctx, cursor)
}

func (r *repository) FindByStudentID(ctx context.Context, studentID string) (*Student, error) {
	coll, err := r.db.Collection()
	if err != nil {
		return nil, err
	}

	var s Student
	err = coll.FindOne(ctx, bson.M{"studentId": studentID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrStudentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindByProgram matches the program as a case-insensitive substring; no
// match yields an empty slice, never an error.
func (r *repository) FindByProgram(ctx context.Context, program string) ([]Student, error) {
	coll, err := r.db.Collection()
	if err != nil {
		return nil, err
	}

	filter := bson.M{"program": primitive.Regex{Pattern: program, Options: "i"}}
	cursor, err := coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	return decodeAll(ctx, cursor)
}

func (r *repository) FindPage(ctx context.Context, filter PageFilter) ([]Student, int64, error) {
	coll, err := r.db.Collection()
	if err != nil {
		return nil, 0, err
	}

	query := listFilter(filter.Program, filter.BatchYear)
	total := r.CountDocuments(ctx, query)

	opts := options.Find().
		SetSort(bson.D{{Key: "studentId", Value: 1}}).
		SetSkip(filter.Skip).
		SetLimit(filter.Limit)

	cursor, err := coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	students, err := decodeAll(ctx, cursor)
	if err != nil {
		return nil, 0, err
	}
	return students, total, nil
}

// CountDocuments degrades to 0 on error instead of propagating. Listing a
// page with an unknown total beats failing the whole request; the miss is
// logged so it is not silent.
func (r *repository) CountDocuments(ctx context.Context, filter bson.M) int64 {
	coll, err := r.db.Collection()
	if err != nil {
		r.logger.Error("count skipped, database not ready", "error", err)
		return 0
	}

	count, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		r.logger.Error("count failed, defaulting to 0", "error", err)
		return 0
	}
	return count
}

// UpdateByStudentID applies a partial-field merge. _id and studentId are
// stripped from the patch; neither is ever mutated. Upsert stays disabled:
// update never creates.
func (r *repository) UpdateByStudentID(ctx context.Context, studentID string, patch bson.M) (*Student, error) {
	coll, err := r.db.Collection()
	if err != nil {
		return nil, err
	}

	delete(patch, "_id")
	delete(patch, "studentId")
	patch["updatedAt"] = time.Now().UTC()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated Student
	err = coll.FindOneAndUpdate(ctx,
		bson.M{"studentId": studentID},
		bson.M{"$set": patch},
		opts,
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrStudentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *repository) DeleteByStudentID(ctx context.Context, studentID string) (*Student, error) {
	coll, err := r.db.Collection()
	if err != nil {
		return nil, err
	}

	var removed Student
	err = coll.FindOneAndDelete(ctx, bson.M{"studentId": studentID}).Decode(&removed)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrStudentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &removed, nil
}

// CountsByField groups the collection by a field and returns counts keyed by
// group value, ascending. Documents with a null or missing group value are
// excluded.
func (r *repository) CountsByField(ctx context.Context, field string) (map[string]int64, error) {
	coll, err := r.db.Collection()
	if err != nil {
		return nil, err
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{field: bson.M{"$ne": nil}}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$" + field,
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	counts := make(map[string]int64)
	for cursor.Next(ctx) {
		var row struct {
			ID    interface{} `bson:"_id"`
			Count int64       `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		key, ok := groupKey(row.ID)
		if !ok {
			continue
		}
		counts[key] = row.Count
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *repository) CountRecentEnrollments(ctx context.Context, window time.Duration) int64 {
	since := time.Now().UTC().Add(-window)
	return r.CountDocuments(ctx, bson.M{"createdAt": bson.M{"$gte": since}})
}

func listFilter(program string, batchYear int) bson.M {
	filter := bson.M{}
	if program != "" {
		filter["program"] = primitive.Regex{Pattern: program, Options: "i"}
	}
	if batchYear != 0 {
		filter["batchYear"] = batchYear
	}
	return filter
}

func groupKey(v interface{}) (string, bool) {
	switch key := v.(type) {
	case nil:
		return "", false
	case string:
		return key, true
	case int32:
		return strconv.FormatInt(int64(key), 10), true
	case int64:
		return strconv.FormatInt(key, 10), true
	case float64:
		return strconv.FormatInt(int64(key), 10), true
	default:
		return fmt.Sprintf("%v", key), true
	}
}

func decodeAll(ctx context.Context, cursor *mongo.Cursor) ([]Student, error) {
	students := []Student{}
	if err := cursor.All(ctx, &students); err != nil {
		return nil, err
	}
	return students, nil
}
