// Package entity declares the stored post shape and the projected shapes
// read back from it. The types carry data only.
package entity

import "go.mongodb.org/mongo-driver/bson/primitive"

// Post is the stored document
type Post struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	Title    string             `bson:"Title" json:"title"`
	Category *EmbeddedCategory  `bson:"Category" json:"category"`
	Comments []EmbeddedComment  `bson:"Comments" json:"comments"`
}

// EmbeddedCategory is owned by exactly one Post
type EmbeddedCategory struct {
	ID   primitive.ObjectID `bson:"_id" json:"id"`
	Name string             `bson:"Name" json:"name"`
}

// EmbeddedComment is owned by exactly one Post
type EmbeddedComment struct {
	ID   primitive.ObjectID `bson:"_id" json:"id"`
	Text string             `bson:"Text" json:"text"`
}

// PostDto mirrors Post with independent nested types and no _id key
type PostDto struct {
	ID       primitive.ObjectID `bson:"Id" json:"id"`
	Title    string             `bson:"Title" json:"title"`
	Category *CategoryDto       `bson:"Category" json:"category"`
	Comments []CommentDto       `bson:"Comments" json:"comments"`
}

type CategoryDto struct {
	ID   primitive.ObjectID `bson:"Id" json:"id"`
	Name string             `bson:"Name" json:"name"`
}

type CommentDto struct {
	ID   primitive.ObjectID `bson:"Id" json:"id"`
	Text string             `bson:"Text" json:"text"`
}

// PostComments is the id-plus-comments shape read by the embedded collection queries
type PostComments struct {
	ID       primitive.ObjectID `bson:"Id" json:"id"`
	Comments []EmbeddedComment  `bson:"Comments" json:"comments"`
}
