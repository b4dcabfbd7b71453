// Package fixture seeds the post collection the projection scenarios run
// against and owns the lifecycle of an ephemeral MongoDB.
package fixture

import (
	"context"
	"net/http"
	"strconv"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Conversia-AI/craftable-projection/dtox"
	"github.com/Conversia-AI/craftable-projection/entity"
	"github.com/Conversia-AI/craftable-projection/errx"
	"github.com/Conversia-AI/craftable-projection/logx"
	"github.com/Conversia-AI/craftable-projection/storex"
)

var ErrorRegistry = errx.NewRegistry("FIXTURE")

var (
	ErrIdentifierReuse = ErrorRegistry.Register("IDENTIFIER_REUSE", errx.TypeValidation, http.StatusUnprocessableEntity, "Sub-document identifier is missing or reused")
	ErrContainerFailed = ErrorRegistry.Register("CONTAINER_FAILED", errx.TypeUnavailable, http.StatusServiceUnavailable, "Ephemeral database could not be started")
)

func IsIdentifierReuse(err error) bool {
	return errx.IsCode(err, ErrIdentifierReuse)
}

// Posts returns the two seed documents with fresh sub-document ids. Top-level
// ids are left zero for the store to assign.
func Posts() []entity.Post {
	return []entity.Post{
		{
			Title:    "post1",
			Category: &entity.EmbeddedCategory{ID: primitive.NewObjectID(), Name: "category1"},
			Comments: []entity.EmbeddedComment{
				{ID: primitive.NewObjectID(), Text: "test"},
			},
		},
		{
			Title:    "post2",
			Category: &entity.EmbeddedCategory{ID: primitive.NewObjectID(), Name: "category2"},
			Comments: []entity.EmbeddedComment{},
		},
	}
}

// CheckIdentifiers rejects a post whose embedded documents carry a zero id,
// the parent's id, or an id already used within the post
func CheckIdentifiers(post entity.Post) error {
	seen := map[primitive.ObjectID]string{}
	if !post.ID.IsZero() {
		seen[post.ID] = "_id"
	}

	check := func(path string, id primitive.ObjectID) error {
		if id.IsZero() {
			return ErrorRegistry.New(ErrIdentifierReuse).
				WithDetail("title", post.Title).
				WithDetail("path", path).
				WithDetail("reason", "zero identifier")
		}
		if prev, ok := seen[id]; ok {
			return ErrorRegistry.New(ErrIdentifierReuse).
				WithDetail("title", post.Title).
				WithDetail("path", path).
				WithDetail("reused", prev).
				WithDetail("id", id.Hex())
		}
		seen[id] = path
		return nil
	}

	if post.Category != nil {
		if err := check("Category._id", post.Category.ID); err != nil {
			return err
		}
	}
	for i, c := range post.Comments {
		if err := check("Comments."+strconv.Itoa(i)+"._id", c.ID); err != nil {
			return err
		}
	}
	return nil
}

// Rules are the checks every seed post passes before it is stored or mapped
func Rules() []dtox.ValidationRule {
	return []dtox.ValidationRule{
		{FieldName: "Title", Validator: dtox.Required},
		{FieldName: "Title", Validator: dtox.MaxLength(256)},
		{Validator: func(v any) error {
			post, ok := v.(entity.Post)
			if !ok {
				return ErrorRegistry.New(ErrIdentifierReuse).WithDetail("reason", "not a post")
			}
			return CheckIdentifiers(post)
		}},
	}
}

// Seed inserts posts when the collection is empty and returns what is stored
func Seed(ctx context.Context, coll storex.Collection[entity.Post], posts ...entity.Post) ([]entity.Post, error) {
	if len(posts) == 0 {
		posts = Posts()
	}

	for _, p := range posts {
		if err := dtox.Validate(p, Rules()); err != nil {
			return nil, err
		}
	}

	exists, err := coll.Any(ctx, nil)
	if err != nil {
		return nil, err
	}
	if exists {
		logx.Info("fixture: %s already seeded", coll.Name())
		return coll.All(ctx)
	}

	stored := make([]entity.Post, 0, len(posts))
	for _, p := range posts {
		s, err := coll.InsertOne(ctx, p)
		if err != nil {
			return nil, err
		}
		// the store may have assigned an id equal to an embedded one
		if err := CheckIdentifiers(s); err != nil {
			return nil, err
		}
		stored = append(stored, s)
	}

	logx.Info("fixture: seeded %d posts into %s", len(stored), coll.Name())
	return stored, nil
}
