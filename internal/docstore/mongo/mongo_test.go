package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/utafrali/storefront/internal/docstore"
)

type item struct {
	ID      string `json:"id" bson:"_id"`
	Name    string `json:"name" bson:"name" validate:"required"`
	Stock   int64  `json:"stock" bson:"stock"`
	Version int64  `json:"version" bson:"version"`
}

func TestBuildFilter(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))

	tests := []struct {
		name   string
		filter docstore.Filter
		want   bson.D
	}{
		{"empty", nil, bson.D{}},
		{
			"single eq on id",
			docstore.Filter{docstore.Eq("id", "p1")},
			bson.D{{Key: "_id", Value: bson.D{{Key: "$eq", Value: "p1"}}}},
		},
		{
			"contains is a quoted case-insensitive regex",
			docstore.Filter{docstore.Contains("name", "usb (2m)")},
			bson.D{{Key: "name", Value: bson.D{
				{Key: "$regex", Value: `usb \(2m\)`},
				{Key: "$options", Value: "i"},
			}}},
		},
		{
			"range becomes $and",
			docstore.Filter{docstore.Gte("price", 10.0), docstore.Lt("price", 20)},
			bson.D{{Key: "$and", Value: bson.A{
				bson.D{{Key: "price", Value: bson.D{{Key: "$gte", Value: 10.0}}}},
				bson.D{{Key: "price", Value: bson.D{{Key: "$lt", Value: int64(20)}}}},
			}}},
		},
		{
			"times are compared in UTC",
			docstore.Filter{docstore.Gt("created_at", at)},
			bson.D{{Key: "created_at", Value: bson.D{{Key: "$gt", Value: at.UTC()}}}},
		},
		{
			"none short-circuits",
			docstore.Filter{docstore.Eq("category", "Laptops"), docstore.None()},
			bson.D{{Key: "$expr", Value: false}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildFilter(tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildFilter_RejectsBadField(t *testing.T) {
	_, err := BuildFilter(docstore.Filter{docstore.Eq("$where", "1")})
	assert.Error(t, err)
}

func ns(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

func TestCollection(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("find by id", func(mt *mtest.T) {
		c := New[item](mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "p1"},
			{Key: "name", Value: "Desk Lamp"},
			{Key: "stock", Value: int64(4)},
			{Key: "version", Value: int64(2)},
		}))

		got, err := c.FindByID(ctx, "p1")
		require.NoError(mt, err)
		assert.Equal(mt, item{ID: "p1", Name: "Desk Lamp", Stock: 4, Version: 2}, *got)
	})

	mt.Run("find by id missing", func(mt *mtest.T) {
		c := New[item](mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch))

		_, err := c.FindByID(ctx, "nope")
		assert.ErrorIs(mt, err, docstore.ErrNotFound)
	})

	mt.Run("find decodes every batch", func(mt *mtest.T) {
		c := New[item](mt.Coll)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, ns(mt), mtest.FirstBatch,
				bson.D{{Key: "_id", Value: "a"}, {Key: "name", Value: "A"}}),
			mtest.CreateCursorResponse(0, ns(mt), mtest.NextBatch,
				bson.D{{Key: "_id", Value: "b"}, {Key: "name", Value: "B"}}),
		)

		got, err := c.Find(ctx, nil, docstore.FindOptions{Limit: 4, Sort: []docstore.Sort{{Field: "id"}}})
		require.NoError(mt, err)
		require.Len(mt, got, 2)
		assert.Equal(mt, "b", got[1].ID)
	})

	mt.Run("insert duplicate", func(mt *mtest.T) {
		c := New[item](mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "E11000 duplicate key error",
		}))

		err := c.Insert(ctx, &item{ID: "p1", Name: "Lamp", Version: 1})
		assert.ErrorIs(mt, err, docstore.ErrDuplicate)
	})

	mt.Run("update returns new document", func(mt *mtest.T) {
		c := New[item](mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: "p1"},
			{Key: "name", Value: "Lamp v2"},
			{Key: "version", Value: int64(3)},
		}}))

		got, err := c.UpdateByID(ctx, "p1", docstore.Patch{"name": "Lamp v2", "version": 99},
			docstore.UpdateOptions{Validate: true, IfVersion: 2})
		require.NoError(mt, err)
		assert.Equal(mt, int64(3), got.Version)
	})

	mt.Run("update rejects invalid patch before writing", func(mt *mtest.T) {
		c := New[item](mt.Coll)
		_, err := c.UpdateByID(ctx, "p1", docstore.Patch{"name": ""}, docstore.UpdateOptions{Validate: true})
		assert.Error(mt, err)
	})

	mt.Run("stale version is a conflict", func(mt *mtest.T) {
		c := New[item](mt.Coll)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bson.D{{Key: "n", Value: int32(1)}}),
		)

		_, err := c.UpdateByID(ctx, "p1", docstore.Patch{"name": "x"}, docstore.UpdateOptions{IfVersion: 1})
		assert.ErrorIs(mt, err, docstore.ErrConflict)
	})

	mt.Run("versioned update of missing document", func(mt *mtest.T) {
		c := New[item](mt.Coll)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch),
		)

		_, err := c.UpdateByID(ctx, "p1", docstore.Patch{"name": "x"}, docstore.UpdateOptions{IfVersion: 1})
		assert.ErrorIs(mt, err, docstore.ErrNotFound)
	})

	mt.Run("increment below floor", func(mt *mtest.T) {
		c := New[item](mt.Coll)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bson.D{{Key: "n", Value: int32(1)}}),
		)

		_, err := c.IncrementByID(ctx, "p1", "stock", -5, docstore.IncrementOptions{Floor: docstore.Floor(0)})
		assert.ErrorIs(mt, err, docstore.ErrBelowFloor)
	})

	mt.Run("delete missing", func(mt *mtest.T) {
		c := New[item](mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(0)}))

		err := c.DeleteByID(ctx, "p1")
		assert.ErrorIs(mt, err, docstore.ErrNotFound)
	})

	mt.Run("count", func(mt *mtest.T) {
		c := New[item](mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch,
			bson.D{{Key: "n", Value: int32(7)}}))

		n, err := c.Count(ctx, docstore.Filter{docstore.Contains("name", "lamp")})
		require.NoError(mt, err)
		assert.Equal(mt, int64(7), n)
	})
}
