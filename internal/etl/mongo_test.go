package etl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/BartekS5/ida/pkg/models"
)

func TestMongoReader(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	mapping := models.DefaultMapping()
	ctx := context.Background()

	mt.Run("count", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "mydb.MeasureSheetItem", mtest.FirstBatch,
			bson.D{{Key: "n", Value: int32(42)}}))

		n, err := NewMongoReader(mt.Client, mapping).Count(ctx, models.SourceItems, sourceCompany)
		require.NoError(mt, err)
		assert.Equal(mt, 42, n)
	})

	mt.Run("query page", func(mt *mtest.T) {
		oid := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, "mydb.PriceGuide", mtest.FirstBatch,
				bson.D{{Key: "_id", Value: "p1"}, {Key: "displayTitle", Value: "Vinyl"}},
				bson.D{{Key: "_id", Value: oid}, {Key: "displayTitle", Value: "Wood"}},
			),
			mtest.CreateCursorResponse(0, "mydb.PriceGuide", mtest.NextBatch),
		)

		docs, err := NewMongoReader(mt.Client, mapping).QueryPage(ctx, models.SourceOptions, sourceCompany, 0, 2)
		require.NoError(mt, err)
		require.Len(mt, docs, 2)

		tr := NewTransformer(mapping)
		assert.Equal(mt, "p1", tr.SourceID(docs[0]))
		assert.Equal(mt, oid.Hex(), tr.SourceID(docs[1]))
	})

	mt.Run("query by ids", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, "mydb.MeasureSheetItem", mtest.FirstBatch,
				bson.D{{Key: "_id", Value: "i1"}, {Key: "itemName", Value: "Door"}},
			),
			mtest.CreateCursorResponse(0, "mydb.MeasureSheetItem", mtest.NextBatch),
		)

		docs, err := NewMongoReader(mt.Client, mapping).QueryByIDs(ctx, models.SourceItems, sourceCompany, []string{"i1", "i2"})
		require.NoError(mt, err)
		require.Len(mt, docs, 1)
		assert.Equal(mt, "Door", docs[0]["itemName"])
	})

	mt.Run("query error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Name:    "BadValue",
			Message: "bad filter",
		}))

		_, err := NewMongoReader(mt.Client, mapping).QueryPage(ctx, models.SourceItems, sourceCompany, 0, 10)
		assert.True(mt, models.IsKind(err, models.ErrSourceQueryFailed), "got %v", err)
	})

	mt.Run("network error", func(mt *mtest.T) {
		netErr := mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    6,
			Name:    "HostUnreachable",
			Message: "connection reset",
			Labels:  []string{"NetworkError"},
		})
		// the read is retried once
		mt.AddMockResponses(netErr, netErr)

		_, err := NewMongoReader(mt.Client, mapping).Count(ctx, models.SourceOptions, sourceCompany)
		assert.True(mt, models.IsKind(err, models.ErrSourceConnectionFailed), "got %v", err)
	})

	mt.Run("lookup company by email", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "mydb._User", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "u1"}, {Key: "_p_company", Value: "Company$" + sourceCompany}},
		))

		id, err := NewMongoReader(mt.Client, mapping).LookupCompanyIDByEmail(ctx, "Owner@Legacy.example")
		require.NoError(mt, err)
		assert.Equal(mt, sourceCompany, id)
	})

	mt.Run("lookup unknown email", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "mydb._User", mtest.FirstBatch))

		_, err := NewMongoReader(mt.Client, mapping).LookupCompanyIDByEmail(ctx, "nobody@legacy.example")
		assert.True(mt, models.IsKind(err, models.ErrSourceCompanyNotFound), "got %v", err)
	})

	mt.Run("unmapped kind", func(mt *mtest.T) {
		m := models.DefaultMapping()
		delete(m.Collections, models.SourceOffices)

		_, err := NewMongoReader(mt.Client, m).Count(ctx, models.SourceOffices, sourceCompany)
		assert.True(mt, models.IsKind(err, models.ErrInvalidMapping), "got %v", err)
	})
}

func TestTenantFilter(t *testing.T) {
	r := NewMongoReader(nil, models.DefaultMapping())
	c, err := r.Mapping.Collection(models.SourceUpCharges)
	require.NoError(t, err)

	filter := r.tenantFilter(c, "abc")
	assert.Equal(t, "Company$abc", filter["_p_company"])
	assert.Equal(t, true, filter["isAccessory"])
}
