package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/mmeshcher/storefront/internal/model"
)

const (
	homepageCollection = "content"
	homepageID         = "homepage"
)

type collection interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	ReplaceOne(ctx context.Context, filter, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
}

type homepageDoc struct {
	ID                    string `bson:"_id"`
	model.HomepageContent `bson:",inline"`
}

// MongoStore хранит содержимое главной страницы в MongoDB.
type MongoStore struct {
	client *mongo.Client
	coll   collection
	now    func() time.Time
}

// NewMongoStore подключается к MongoDB и проверяет соединение.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(homepageCollection),
		now:    time.Now,
	}, nil
}

// GetHomepage возвращает сохранённое содержимое или содержимое по умолчанию.
func (s *MongoStore) GetHomepage(ctx context.Context) (*model.HomepageContent, error) {
	var doc homepageDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": homepageID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c := DefaultHomepage()
			return &c, nil
		}
		return nil, fmt.Errorf("find homepage: %w", err)
	}
	return &doc.HomepageContent, nil
}

// SaveHomepage заменяет содержимое главной страницы.
func (s *MongoStore) SaveHomepage(ctx context.Context, c model.HomepageContent) (*model.HomepageContent, error) {
	if err := Normalize(&c); err != nil {
		return nil, err
	}
	c.UpdatedAt = s.now().UTC().Truncate(time.Millisecond)

	_, err := s.coll.ReplaceOne(ctx,
		bson.M{"_id": homepageID},
		homepageDoc{ID: homepageID, HomepageContent: c},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return nil, fmt.Errorf("save homepage: %w", err)
	}
	return &c, nil
}

// Close закрывает соединение с MongoDB.
func (s *MongoStore) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}
