// internal/output/mongodb.go
package output

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/valpere/LeadScrapexter/internal/errors"
	"github.com/valpere/LeadScrapexter/pkg/types"
)

const mongoTimeout = 30 * time.Second

// contactDocument is the stored form of a contact
type contactDocument struct {
	Key          string    `bson:"contact_key"`
	BusinessName string    `bson:"business_name"`
	Website      string    `bson:"website"`
	Address      string    `bson:"address"`
	Email        string    `bson:"email"`
	Phone        string    `bson:"phone"`
	Source       string    `bson:"source"`
	ScrapedAt    time.Time `bson:"scraped_at"`
}

func newContactDocument(r types.ContactRecord) contactDocument {
	return contactDocument{
		Key:          ContactKey(r),
		BusinessName: r.BusinessName,
		Website:      r.Website,
		Address:      NormalizeAddress(r.Address),
		Email:        r.Email,
		Phone:        types.FormatPhone(r.Phone),
		Source:       string(r.Source),
		ScrapedAt:    r.ScrapedAt.UTC(),
	}
}

// MongoStore mirrors contact records into a MongoDB collection, upserting
// by ContactKey
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// OpenMongoStore connects to uri and prepares database.collection
func OpenMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.Config("open mongo store", fmt.Errorf("connection URI is required"))
	}
	if database == "" {
		database = "leadscrapexter"
	}
	if collection == "" {
		collection = "contacts"
	}

	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(10 * time.Second).
		SetMaxPoolSize(10)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, errors.Persistence("connect", "mongodb", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, errors.Persistence("ping", "mongodb", err)
	}

	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "contact_key", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("contact_key_unique"),
	})
	if err != nil {
		client.Disconnect(context.Background())
		return nil, errors.Persistence("create index", collection, err)
	}

	return &MongoStore{client: client, collection: coll}, nil
}

// Save upserts records and returns how many were new
func (s *MongoStore) Save(ctx context.Context, records []types.ContactRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	models := make([]mongo.WriteModel, 0, len(records))
	for _, r := range records {
		doc := newContactDocument(r)
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"contact_key": doc.Key}).
			SetReplacement(doc).
			SetUpsert(true))
	}

	res, err := s.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, errors.Persistence("bulk upsert", s.collection.Name(), err)
	}
	return int(res.UpsertedCount), nil
}

// Ping checks the connection
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
