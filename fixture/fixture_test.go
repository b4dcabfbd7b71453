package fixture

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Conversia-AI/craftable-projection/dtox"
	"github.com/Conversia-AI/craftable-projection/entity"
	"github.com/Conversia-AI/craftable-projection/errx"
	"github.com/Conversia-AI/craftable-projection/storex/providers/storexinmemory"
)

func TestSeed_OnlyWhenEmpty(t *testing.T) {
	ctx := context.Background()
	coll := storexinmemory.NewMemoryCollection[entity.Post]("posts")

	first, err := Seed(ctx, coll)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.False(t, first[0].ID.IsZero())
	assert.Equal(t, "post1", first[0].Title)
	assert.Equal(t, "category1", first[0].Category.Name)
	require.Len(t, first[0].Comments, 1)
	assert.Equal(t, "test", first[0].Comments[0].Text)
	assert.NotNil(t, first[1].Comments)
	assert.Empty(t, first[1].Comments)

	second, err := Seed(ctx, coll)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	n, err := coll.Count(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestCheckIdentifiers(t *testing.T) {
	parent := primitive.NewObjectID()
	shared := primitive.NewObjectID()

	tests := []struct {
		name string
		post entity.Post
		path string
	}{
		{
			"zero category id",
			entity.Post{Category: &entity.EmbeddedCategory{Name: "c"}},
			"Category._id",
		},
		{
			"comment reuses the parent id",
			entity.Post{ID: parent, Comments: []entity.EmbeddedComment{{ID: parent}}},
			"Comments.0._id",
		},
		{
			"comment reuses the category id",
			entity.Post{
				Category: &entity.EmbeddedCategory{ID: shared},
				Comments: []entity.EmbeddedComment{{ID: primitive.NewObjectID()}, {ID: shared}},
			},
			"Comments.1._id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckIdentifiers(tt.post)
			require.Error(t, err)
			assert.True(t, IsIdentifierReuse(err))
			path, _ := errx.Detail(err, "path")
			assert.Equal(t, tt.path, path)
		})
	}

	for _, p := range Posts() {
		assert.NoError(t, CheckIdentifiers(p))
	}
}

func TestSeed_RejectsReusedIdentifiers(t *testing.T) {
	coll := storexinmemory.NewMemoryCollection[entity.Post]("posts")
	id := primitive.NewObjectID()

	_, err := Seed(context.Background(), coll, entity.Post{
		Title:    "bad",
		Comments: []entity.EmbeddedComment{{ID: id}, {ID: id}},
	})
	require.Error(t, err)
	assert.True(t, IsIdentifierReuse(err))

	n, err := coll.Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSeed_RunsValidationRules(t *testing.T) {
	coll := storexinmemory.NewMemoryCollection[entity.Post]("posts")

	_, err := Seed(context.Background(), coll, entity.Post{
		Category: &entity.EmbeddedCategory{ID: primitive.NewObjectID()},
	})
	require.Error(t, err)
	assert.True(t, dtox.IsValidationFailed(err))
	assert.False(t, IsIdentifierReuse(err))

	fields, _ := errx.Detail(err, "fields")
	assert.Equal(t, []string{"Title: field is required"}, fields)

	post := Posts()[0]
	post.Comments = append(post.Comments, entity.EmbeddedComment{ID: post.Category.ID, Text: "dup"})
	err = dtox.Validate(post, Rules())
	require.Error(t, err)
	assert.True(t, dtox.IsValidationFailed(err))
	assert.True(t, IsIdentifierReuse(err))
	reused, _ := errx.Detail(err, "reused")
	assert.Equal(t, "Category._id", reused)
}

func TestSeed_AssignedIDCollides(t *testing.T) {
	id := primitive.NewObjectID()
	coll := storexinmemory.NewMemoryCollection("posts",
		storexinmemory.WithIDGenerator[entity.Post](func() primitive.ObjectID { return id }))

	_, err := Seed(context.Background(), coll, entity.Post{
		Title:    "collides",
		Category: &entity.EmbeddedCategory{ID: id},
	})
	require.Error(t, err)
	assert.True(t, IsIdentifierReuse(err))
}

func TestClose_Nil(t *testing.T) {
	var m *Mongo
	assert.NoError(t, m.Close(context.Background()))
}
