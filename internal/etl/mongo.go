package etl

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/BartekS5/ida/pkg/logger"
	"github.com/BartekS5/ida/pkg/models"
	"github.com/BartekS5/ida/pkg/utils"
)

// MongoReader reads legacy records. The client is owned by the caller.
type MongoReader struct {
	Client  *mongo.Client
	Mapping *models.SourceMapping
}

func NewMongoReader(client *mongo.Client, mapping *models.SourceMapping) *MongoReader {
	return &MongoReader{Client: client, Mapping: mapping}
}

func (m *MongoReader) coll(name string) *mongo.Collection {
	return m.Client.Database(m.Mapping.Database).Collection(name)
}

// tenantFilter scopes the collection filter to one legacy company.
func (m *MongoReader) tenantFilter(c models.CollectionConfig, companyID string) bson.M {
	filter := bson.M{}
	for k, v := range c.Filter {
		filter[k] = v
	}
	filter[m.Mapping.TenantField] = m.Mapping.TenantValue(companyID)
	return filter
}

func queryErr(err error, kind models.SourceKind, op string) error {
	if isConnectionError(err) {
		return models.WrapError(models.ErrSourceConnectionFailed, err, "%s %s", op, kind)
	}
	return models.WrapError(models.ErrSourceQueryFailed, err, "%s %s", op, kind)
}

func isConnectionError(err error) bool {
	return mongo.IsNetworkError(err) || mongo.IsTimeout(err) || strings.Contains(err.Error(), "server selection")
}

func (m *MongoReader) Count(ctx context.Context, kind models.SourceKind, companyID string) (int, error) {
	c, err := m.Mapping.Collection(kind)
	if err != nil {
		return 0, err
	}
	n, err := m.coll(c.Collection).CountDocuments(ctx, m.tenantFilter(c, companyID))
	if err != nil {
		return 0, queryErr(err, kind, "count")
	}
	return int(n), nil
}

// QueryPage reads limit documents at skip, sorted by id for stable paging.
func (m *MongoReader) QueryPage(ctx context.Context, kind models.SourceKind, companyID string, skip, limit int) ([]models.Document, error) {
	c, err := m.Mapping.Collection(kind)
	if err != nil {
		return nil, err
	}
	findOpts := options.Find().
		SetSkip(int64(skip)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: m.Mapping.IDField, Value: 1}})
	return m.find(ctx, kind, c, m.tenantFilter(c, companyID), findOpts)
}

// QueryByIDs reads exactly the given records, in id order. Unknown ids are
// ignored.
func (m *MongoReader) QueryByIDs(ctx context.Context, kind models.SourceKind, companyID string, ids []string) ([]models.Document, error) {
	c, err := m.Mapping.Collection(kind)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	values := make(bson.A, 0, len(ids)*2)
	for _, id := range ids {
		values = append(values, id)
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			values = append(values, oid)
		}
	}
	filter := m.tenantFilter(c, companyID)
	filter[m.Mapping.IDField] = bson.M{"$in": values}
	findOpts := options.Find().SetSort(bson.D{{Key: m.Mapping.IDField, Value: 1}})
	return m.find(ctx, kind, c, filter, findOpts)
}

func (m *MongoReader) find(ctx context.Context, kind models.SourceKind, c models.CollectionConfig, filter bson.M, findOpts *options.FindOptions) ([]models.Document, error) {
	cursor, err := m.coll(c.Collection).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, queryErr(err, kind, "query")
	}
	defer cursor.Close(ctx)

	var results []models.Document
	for cursor.Next(ctx) {
		var doc models.Document
		if err := cursor.Decode(&doc); err != nil {
			logger.Errorf("Error decoding %s document: %v", kind, err)
			continue
		}
		results = append(results, doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, queryErr(err, kind, "read")
	}
	return results, nil
}

// LookupCompanyIDByEmail resolves the legacy company of a user account.
func (m *MongoReader) LookupCompanyIDByEmail(ctx context.Context, email string) (string, error) {
	u := m.Mapping.Users
	var doc bson.M
	filter := bson.M{u.EmailField: strings.ToLower(strings.TrimSpace(email))}
	findOpts := options.FindOne().SetProjection(bson.M{m.Mapping.TenantField: 1})
	err := m.coll(u.Collection).FindOne(ctx, filter, findOpts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return "", models.NewError(models.ErrSourceCompanyNotFound, "no legacy user with email %s", email)
	}
	if err != nil {
		return "", queryErr(err, models.SourceKind(u.Collection), "lookup")
	}
	company := utils.PointerID(utils.IDString(doc[m.Mapping.TenantField]))
	if company == "" {
		return "", models.NewError(models.ErrSourceCompanyNotFound, "legacy user %s has no company", email)
	}
	return company, nil
}
