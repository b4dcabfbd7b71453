package bsonx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type sample struct {
	ID    primitive.ObjectID `bson:"_id"`
	Name  string             `bson:"Name"`
	Inner *struct {
		Value int `bson:"Value"`
	} `bson:"Inner"`
	Tags []string `bson:"Tags"`
}

func TestToDocument(t *testing.T) {
	id := primitive.NewObjectID()
	doc, err := ToDocument(sample{ID: id, Name: "n", Tags: []string{"a", "b"}})
	require.NoError(t, err)

	assert.Equal(t, id, doc["_id"])
	assert.Equal(t, "n", doc["Name"])
	assert.Nil(t, doc["Inner"])
	assert.Equal(t, []any{"a", "b"}, doc["Tags"])
}

func TestNormalize(t *testing.T) {
	in := bson.D{
		{Key: "a", Value: bson.D{{Key: "b", Value: bson.A{bson.D{{Key: "c", Value: 1}}}}}},
	}
	assert.Equal(t, bson.M{"a": bson.M{"b": []any{bson.M{"c": 1}}}}, Normalize(in))
}

func TestLookup(t *testing.T) {
	doc := bson.M{"Category": bson.M{"Name": "c1"}, "Comments": []any{bson.M{"Text": "x"}}}

	v, ok := Lookup(doc, "Category.Name")
	require.True(t, ok)
	assert.Equal(t, "c1", v)

	_, ok = Lookup(doc, "Category.Missing")
	assert.False(t, ok)

	_, ok = Lookup(doc, "Comments.Text")
	assert.False(t, ok, "lookup does not traverse arrays")
}

func TestCandidates(t *testing.T) {
	doc := bson.M{
		"Comments": []any{bson.M{"Text": "a"}, bson.M{"Text": "b"}, bson.M{}},
		"Tags":     []any{"x", "y"},
	}

	assert.Equal(t, []any{"a", "b"}, Candidates(doc, "Comments.Text"))
	assert.Equal(t, []any{[]any{"x", "y"}, "x", "y"}, Candidates(doc, "Tags"))
	assert.Empty(t, Candidates(doc, "Missing"))
}

func TestEqual(t *testing.T) {
	id := primitive.NewObjectID()

	assert.True(t, Equal(int32(1), int64(1)))
	assert.True(t, Equal(1, 1.0))
	assert.False(t, Equal(1, "1"))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(nil, 0))
	assert.True(t, Equal(id, id))
	assert.False(t, Equal(id, primitive.NewObjectID()))
	assert.True(t, Equal(bson.D{{Key: "a", Value: int32(1)}}, bson.M{"a": 1}))
	assert.False(t, Equal([]any{1, 2}, []any{2, 1}))
}

func TestCompare(t *testing.T) {
	assert.Equal(t, -1, Compare(nil, 0))
	assert.Equal(t, -1, Compare(int32(1), 2.5))
	assert.Equal(t, 0, Compare(int64(3), 3.0))
	assert.Equal(t, 1, Compare("b", "a"))
	assert.Equal(t, -1, Compare(10, "a"), "numbers sort before strings")
	assert.Equal(t, -1, Compare(false, true))

	lo := primitive.ObjectID{0x01}
	hi := primitive.ObjectID{0x02}
	assert.Equal(t, -1, Compare(lo, hi))
}
