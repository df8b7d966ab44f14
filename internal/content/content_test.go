package content

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mmeshcher/storefront/internal/model"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		content model.HomepageContent
		valid   bool
	}{
		{
			name:    "valid",
			content: model.HomepageContent{HeroTitle: " Summer sale ", Sections: []model.HomepageSection{{Key: "Featured"}}},
			valid:   true,
		},
		{name: "missing title", content: model.HomepageContent{HeroTitle: "  "}},
		{
			name:    "duplicate keys",
			content: model.HomepageContent{HeroTitle: "x", Sections: []model.HomepageSection{{Key: "new"}, {Key: " NEW "}}},
		},
		{
			name:    "empty key",
			content: model.HomepageContent{HeroTitle: "x", Sections: []model.HomepageSection{{Title: "No key"}}},
		},
		{
			name:    "too many sections",
			content: model.HomepageContent{HeroTitle: "x", Sections: make([]model.HomepageSection, maxSections+1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.content
			err := Normalize(&c)
			if !tt.valid {
				assert.ErrorIs(t, err, ErrInvalidContent)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Summer sale", c.HeroTitle)
			assert.Equal(t, "featured", c.Sections[0].Key)
		})
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	got, err := store.GetHomepage(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultHomepage(), *got)

	_, err = store.SaveHomepage(ctx, model.HomepageContent{})
	assert.ErrorIs(t, err, ErrInvalidContent)

	saved, err := store.SaveHomepage(ctx, model.HomepageContent{
		HeroTitle: "Autumn",
		Sections:  []model.HomepageSection{{Key: "picks", Title: "Our picks", ProductIDs: []int64{1, 2}, Visible: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, fixed, saved.UpdatedAt)

	saved.Sections[0].ProductIDs[0] = 99

	got, err = store.GetHomepage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Autumn", got.HeroTitle)
	assert.Equal(t, []int64{1, 2}, got.Sections[0].ProductIDs)
}

type stubCollection struct {
	doc        interface{}
	findErr    error
	replaced   interface{}
	upsert     bool
	replaceErr error
}

func (c *stubCollection) FindOne(_ context.Context, _ interface{}, _ ...*options.FindOneOptions) *mongo.SingleResult {
	if c.findErr != nil {
		return mongo.NewSingleResultFromDocument(bson.D{}, c.findErr, nil)
	}
	return mongo.NewSingleResultFromDocument(c.doc, nil, nil)
}

func (c *stubCollection) ReplaceOne(_ context.Context, _ interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error) {
	if c.replaceErr != nil {
		return nil, c.replaceErr
	}
	c.replaced = replacement
	for _, o := range opts {
		if o.Upsert != nil {
			c.upsert = *o.Upsert
		}
	}
	return &mongo.UpdateResult{UpsertedCount: 1}, nil
}

func TestMongoStore_GetHomepage(t *testing.T) {
	t.Run("missing document yields default", func(t *testing.T) {
		s := &MongoStore{coll: &stubCollection{findErr: mongo.ErrNoDocuments}, now: time.Now}
		got, err := s.GetHomepage(context.Background())
		require.NoError(t, err)
		assert.Equal(t, DefaultHomepage().HeroTitle, got.HeroTitle)
	})

	t.Run("stored document", func(t *testing.T) {
		doc := bson.M{
			"_id":        homepageID,
			"hero_title": "From mongo",
			"sections":   bson.A{bson.M{"key": "featured", "title": "Featured", "product_ids": bson.A{int64(3)}, "visible": true}},
		}
		s := &MongoStore{coll: &stubCollection{doc: doc}, now: time.Now}

		got, err := s.GetHomepage(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "From mongo", got.HeroTitle)
		require.Len(t, got.Sections, 1)
		assert.Equal(t, []int64{3}, got.Sections[0].ProductIDs)
	})

	t.Run("driver error", func(t *testing.T) {
		s := &MongoStore{coll: &stubCollection{findErr: errors.New("timeout")}, now: time.Now}
		_, err := s.GetHomepage(context.Background())
		assert.Error(t, err)
	})
}

func TestMongoStore_SaveHomepage(t *testing.T) {
	coll := &stubCollection{}
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := &MongoStore{coll: coll, now: func() time.Time { return fixed }}

	saved, err := s.SaveHomepage(context.Background(), model.HomepageContent{HeroTitle: " New hero "})
	require.NoError(t, err)
	assert.Equal(t, "New hero", saved.HeroTitle)
	assert.Equal(t, fixed, saved.UpdatedAt)
	assert.True(t, coll.upsert)

	doc, ok := coll.replaced.(homepageDoc)
	require.True(t, ok)
	assert.Equal(t, homepageID, doc.ID)
	assert.Equal(t, "New hero", doc.HeroTitle)

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	assert.Equal(t, "New hero", bson.Raw(raw).Lookup("hero_title").StringValue())

	_, err = s.SaveHomepage(context.Background(), model.HomepageContent{})
	assert.ErrorIs(t, err, ErrInvalidContent)
}

func TestMongoStore_CloseWithoutClient(t *testing.T) {
	assert.NoError(t, (&MongoStore{}).Close(context.Background()))
}
