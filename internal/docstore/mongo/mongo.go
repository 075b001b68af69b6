// Package mongo is the MongoDB docstore backend. Document ids are stored as
// string _id values.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/utafrali/storefront/internal/docstore"
	"github.com/utafrali/storefront/pkg/database"
)

// Collection is a docstore.Collection over a MongoDB collection.
type Collection[T any] struct {
	coll *mongo.Collection
}

var _ docstore.Collection[struct{}] = (*Collection[struct{}])(nil)

// New wraps coll.
func New[T any](coll *mongo.Collection) *Collection[T] {
	return &Collection[T]{coll: coll}
}

// EnsureUnique creates unique indexes on the given fields.
func (c *Collection[T]) EnsureUnique(ctx context.Context, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	models := make([]mongo.IndexModel, 0, len(fields))
	for _, f := range fields {
		models = append(models, mongo.IndexModel{
			Keys:    bson.D{{Key: fieldName(f), Value: 1}},
			Options: options.Index().SetUnique(true),
		})
	}
	if _, err := c.coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("create indexes on %s: %w", c.coll.Name(), err)
	}
	return nil
}

func (c *Collection[T]) trace(ctx context.Context, op string, filter any) (context.Context, func(error)) {
	statement := ""
	if filter != nil {
		if raw, err := bson.MarshalExtJSON(filter, false, false); err == nil {
			statement = string(raw)
		}
	}
	return database.TraceOp(ctx, database.SystemMongo, c.coll.Name()+"."+op, statement)
}

func (c *Collection[T]) Find(ctx context.Context, filter docstore.Filter, opts docstore.FindOptions) (out []T, err error) {
	q, err := BuildFilter(filter)
	if err != nil {
		return nil, err
	}
	ctx, end := c.trace(ctx, "find", q)
	defer func() { end(err) }()

	findOpts := options.Find()
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}
	if len(opts.Sort) > 0 {
		sort := bson.D{}
		for _, s := range opts.Sort {
			dir := 1
			if s.Desc {
				dir = -1
			}
			sort = append(sort, bson.E{Key: fieldName(s.Field), Value: dir})
		}
		findOpts.SetSort(sort)
	}

	cur, err := c.coll.Find(ctx, q, findOpts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c.coll.Name(), err)
	}
	out = make([]T, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.coll.Name(), err)
	}
	return out, nil
}

func (c *Collection[T]) FindOne(ctx context.Context, filter docstore.Filter) (doc *T, err error) {
	q, err := BuildFilter(filter)
	if err != nil {
		return nil, err
	}
	ctx, end := c.trace(ctx, "find_one", q)
	defer func() { end(ignoreNotFound(err)) }()
	return c.findOne(ctx, q)
}

func (c *Collection[T]) FindByID(ctx context.Context, id string) (doc *T, err error) {
	ctx, end := c.trace(ctx, "find_by_id", nil)
	defer func() { end(ignoreNotFound(err)) }()
	return c.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (c *Collection[T]) findOne(ctx context.Context, q bson.D) (*T, error) {
	var v T
	err := c.coll.FindOne(ctx, q).Decode(&v)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c.coll.Name(), err)
	}
	return &v, nil
}

func (c *Collection[T]) Insert(ctx context.Context, doc *T) (err error) {
	ctx, end := c.trace(ctx, "insert", nil)
	defer func() { end(err) }()

	if _, err := c.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return docstore.ErrDuplicate
		}
		return fmt.Errorf("insert %s: %w", c.coll.Name(), err)
	}
	return nil
}

func (c *Collection[T]) UpdateByID(ctx context.Context, id string, patch docstore.Patch, opts docstore.UpdateOptions) (doc *T, err error) {
	patch, keys, err := docstore.Prepare(patch)
	if err != nil {
		return nil, err
	}
	if opts.Validate {
		if err := docstore.ValidatePatch[T](patch, keys); err != nil {
			return nil, err
		}
	}

	set := bson.D{}
	for _, k := range keys {
		set = append(set, bson.E{Key: k, Value: patch[k]})
	}
	update := bson.D{
		{Key: "$set", Value: set},
		{Key: "$inc", Value: bson.D{{Key: docstore.FieldVersion, Value: int64(1)}}},
	}
	q := bson.D{{Key: "_id", Value: id}}
	if opts.IfVersion != 0 {
		q = append(q, bson.E{Key: docstore.FieldVersion, Value: opts.IfVersion})
	}

	ctx, end := c.trace(ctx, "update", q)
	defer func() { end(err) }()
	return c.findOneAndUpdate(ctx, id, q, update, docstore.ErrConflict)
}

func (c *Collection[T]) IncrementByID(ctx context.Context, id, field string, delta int64, opts docstore.IncrementOptions) (doc *T, err error) {
	if err := docstore.CheckField(field); err != nil {
		return nil, err
	}
	q := bson.D{{Key: "_id", Value: id}}
	if opts.Floor != nil {
		q = append(q, bson.E{Key: field, Value: bson.D{{Key: "$gte", Value: *opts.Floor - delta}}})
	}
	update := bson.D{{Key: "$inc", Value: bson.D{
		{Key: field, Value: delta},
		{Key: docstore.FieldVersion, Value: int64(1)},
	}}}

	ctx, end := c.trace(ctx, "increment", q)
	defer func() { end(err) }()
	return c.findOneAndUpdate(ctx, id, q, update, docstore.ErrBelowFloor)
}

// findOneAndUpdate applies update to the document matching q. When nothing
// matches, it tells a missing document apart from a failed precondition.
func (c *Collection[T]) findOneAndUpdate(ctx context.Context, id string, q, update bson.D, precondition error) (*T, error) {
	var v T
	err := c.coll.FindOneAndUpdate(ctx, q, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&v)
	switch {
	case err == nil:
		return &v, nil
	case mongo.IsDuplicateKeyError(err):
		return nil, docstore.ErrDuplicate
	case !errors.Is(err, mongo.ErrNoDocuments):
		return nil, fmt.Errorf("update %s: %w", c.coll.Name(), err)
	}

	if len(q) == 1 {
		return nil, docstore.ErrNotFound
	}
	n, err := c.coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: id}}, options.Count().SetLimit(1))
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", c.coll.Name(), err)
	}
	if n == 0 {
		return nil, docstore.ErrNotFound
	}
	return nil, precondition
}

func (c *Collection[T]) DeleteByID(ctx context.Context, id string) (err error) {
	ctx, end := c.trace(ctx, "delete", nil)
	defer func() { end(err) }()

	res, err := c.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("delete %s: %w", c.coll.Name(), err)
	}
	if res.DeletedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (c *Collection[T]) DeleteMany(ctx context.Context, filter docstore.Filter) (n int64, err error) {
	q, err := BuildFilter(filter)
	if err != nil {
		return 0, err
	}
	ctx, end := c.trace(ctx, "delete_many", q)
	defer func() { end(err) }()

	res, err := c.coll.DeleteMany(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", c.coll.Name(), err)
	}
	return res.DeletedCount, nil
}

func (c *Collection[T]) Count(ctx context.Context, filter docstore.Filter) (n int64, err error) {
	q, err := BuildFilter(filter)
	if err != nil {
		return 0, err
	}
	ctx, end := c.trace(ctx, "count", q)
	defer func() { end(err) }()

	n, err = c.coll.CountDocuments(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", c.coll.Name(), err)
	}
	return n, nil
}

// BuildFilter translates f into a MongoDB query document.
func BuildFilter(f docstore.Filter) (bson.D, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if f.MatchesNothing() {
		return bson.D{{Key: "$expr", Value: false}}, nil
	}
	clauses := make(bson.A, 0, len(f))
	for _, c := range f {
		clauses = append(clauses, bson.D{{Key: fieldName(c.Field), Value: condition(c)}})
	}
	switch len(clauses) {
	case 0:
		return bson.D{}, nil
	case 1:
		return clauses[0].(bson.D), nil
	default:
		return bson.D{{Key: "$and", Value: clauses}}, nil
	}
}

func condition(c docstore.Cond) any {
	v := normalize(c.Value)
	switch c.Op {
	case docstore.OpContains:
		return bson.D{
			{Key: "$regex", Value: regexp.QuoteMeta(c.Value.(string))},
			{Key: "$options", Value: "i"},
		}
	case docstore.OpGt:
		return bson.D{{Key: "$gt", Value: v}}
	case docstore.OpGte:
		return bson.D{{Key: "$gte", Value: v}}
	case docstore.OpLt:
		return bson.D{{Key: "$lt", Value: v}}
	case docstore.OpLte:
		return bson.D{{Key: "$lte", Value: v}}
	default:
		return bson.D{{Key: "$eq", Value: v}}
	}
}

func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case time.Time:
		return x.UTC()
	}
	return v
}

func fieldName(f string) string {
	if f == docstore.FieldID {
		return "_id"
	}
	return f
}

func ignoreNotFound(err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return nil
	}
	return err
}
