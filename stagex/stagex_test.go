package stagex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/Conversia-AI/craftable-projection/dtox"
	"github.com/Conversia-AI/craftable-projection/entity"
	"github.com/Conversia-AI/craftable-projection/queryx"
)

func registry(t *testing.T) *dtox.Registry {
	t.Helper()

	reg := dtox.NewRegistry()
	_, err := dtox.Register[entity.Post, entity.PostDto](reg)
	require.NoError(t, err)
	_, err = dtox.Register[entity.EmbeddedCategory, entity.CategoryDto](reg)
	require.NoError(t, err)
	_, err = dtox.Register[entity.EmbeddedComment, entity.CommentDto](reg)
	require.NoError(t, err)
	_, err = dtox.Register[entity.Post, entity.PostComments](reg,
		dtox.WithElementFilter("Comments", queryx.TextContains("Text", "test")))
	require.NoError(t, err)
	return reg
}

func TestFor_PostDto(t *testing.T) {
	p, err := For[entity.Post, entity.PostDto](registry(t))
	require.NoError(t, err)

	doc, err := p.Document()
	require.NoError(t, err)

	want := bson.D{
		{Key: "Id", Value: "$_id"},
		{Key: "Title", Value: "$Title"},
		{Key: "Category", Value: bson.D{{Key: "$cond", Value: bson.D{
			{Key: "if", Value: bson.D{{Key: "$eq", Value: bson.A{
				bson.D{{Key: "$ifNull", Value: bson.A{"$Category", nil}}},
				nil,
			}}}},
			{Key: "then", Value: nil},
			{Key: "else", Value: bson.D{
				{Key: "Id", Value: "$Category._id"},
				{Key: "Name", Value: "$Category.Name"},
			}},
		}}}},
		{Key: "Comments", Value: bson.D{{Key: "$map", Value: bson.D{
			{Key: "input", Value: "$Comments"},
			{Key: "as", Value: "item"},
			{Key: "in", Value: bson.D{
				{Key: "Id", Value: "$$item._id"},
				{Key: "Text", Value: "$$item.Text"},
			}},
		}}}},
		{Key: "_id", Value: 0},
	}
	assert.Equal(t, want, doc)
}

func TestFor_FilteredComments(t *testing.T) {
	p, err := For[entity.Post, entity.PostComments](registry(t))
	require.NoError(t, err)

	stage, err := p.Stage()
	require.NoError(t, err)

	contains, err := queryx.Expr(queryx.TextContains("Text", "test"), "$$item")
	require.NoError(t, err)

	want := bson.D{{Key: "$project", Value: bson.D{
		{Key: "Id", Value: "$_id"},
		{Key: "Comments", Value: bson.D{{Key: "$filter", Value: bson.D{
			{Key: "input", Value: "$Comments"},
			{Key: "as", Value: "item"},
			{Key: "cond", Value: contains},
		}}}},
		{Key: "_id", Value: 0},
	}}}
	assert.Equal(t, want, stage)
}

func TestFor_Unregistered(t *testing.T) {
	_, err := For[entity.Post, entity.PostDto](dtox.NewRegistry())
	assert.True(t, dtox.IsUnregisteredMapping(err))

	reg := dtox.NewRegistry()
	_, err = dtox.Register[entity.Post, entity.PostDto](reg)
	require.NoError(t, err)
	_, err = For[entity.Post, entity.PostDto](reg)
	assert.True(t, dtox.IsUnregisteredMapping(err))
}

func TestProjection_Literal(t *testing.T) {
	p := Projection{Fields: Fields{
		{Key: "Kind", Rule: Literal{Value: "post"}},
		{Key: "Meta", Rule: Embed{Fields: Fields{{Key: "Title", Rule: Copy{From: "Title"}}}}},
	}}

	doc, err := p.Document()
	require.NoError(t, err)
	assert.Equal(t, bson.D{
		{Key: "Kind", Value: bson.D{{Key: "$literal", Value: "post"}}},
		{Key: "Meta", Value: bson.D{{Key: "Title", Value: "$Title"}}},
	}, doc)
}

func TestProjection_OpaqueWhere(t *testing.T) {
	p := Projection{Fields: Fields{{Key: "Comments", Rule: MapEach{
		From:  "Comments",
		Where: queryx.InProcess("short", func(bson.M) bool { return true }),
	}}}}

	_, err := p.Document()
	assert.True(t, queryx.IsTranslationUnsupported(err))
}

func TestParseProjection(t *testing.T) {
	p, err := ParseProjection(`{"$project": {"Id": "$_id", "Title": 1, "_id": 0}}`)
	require.NoError(t, err)
	assert.True(t, p.IsRaw())

	doc, err := p.Document()
	require.NoError(t, err)
	assert.Equal(t, bson.D{
		{Key: "Id", Value: "$_id"},
		{Key: "Title", Value: int32(1)},
		{Key: "_id", Value: int32(0)},
	}, doc)

	_, err = ParseProjection(`{"Id": `)
	assert.ErrorContains(t, err, string(ErrInvalidProjection))

	_, err = ParseProjection(`{}`)
	assert.Error(t, err)
}

func TestMatchAndDocuments(t *testing.T) {
	stage, err := Match(nil)
	require.NoError(t, err)
	assert.Nil(t, stage)

	stage, err = Match(queryx.FieldEq("Title", "a"))
	require.NoError(t, err)
	assert.Equal(t, "$match", stage[0].Key)

	docs := Documents([]bson.M{{"a": 1}})
	assert.Equal(t, bson.D{{Key: "$documents", Value: bson.A{bson.D{{Key: "$literal", Value: bson.M{"a": 1}}}}}}, docs)

	out, err := ExtJSON(Limit(2))
	require.NoError(t, err)
	assert.Contains(t, out, `"$limit": 2`)
}
