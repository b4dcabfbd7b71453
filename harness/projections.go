package harness

import (
	"strings"

	"github.com/samber/lo"

	"github.com/Conversia-AI/craftable-projection/entity"
	"github.com/Conversia-AI/craftable-projection/stagex"
)

// CommentFilter is the substring the embedded-contains scenario filters on
const CommentFilter = "test"

// PostDtoJSON is the hand-written $project for PostDto
const PostDtoJSON = `{
	"Category": {
		"$cond": [
			{"$eq": ["$Category", null]},
			null,
			{"Id": "$Category._id", "Name": "$Category.Name"}
		]
	},
	"Comments": {
		"$map": {
			"input": "$Comments",
			"as": "dtoEmbeddedComment",
			"in": {
				"Id": "$$dtoEmbeddedComment._id",
				"Text": "$$dtoEmbeddedComment.Text"
			}
		}
	},
	"Id": "$_id",
	"Title": "$Title",
	"_id": 0
}`

// ManualPostDto is the field-by-field PostDto projection
func ManualPostDto(p entity.Post) entity.PostDto {
	dto := entity.PostDto{ID: p.ID, Title: p.Title}
	if p.Category != nil {
		dto.Category = &entity.CategoryDto{ID: p.Category.ID, Name: p.Category.Name}
	}
	if p.Comments != nil {
		dto.Comments = lo.Map(p.Comments, func(c entity.EmbeddedComment, _ int) entity.CommentDto {
			return entity.CommentDto{ID: c.ID, Text: c.Text}
		})
	}
	return dto
}

// ManualMatchingComments keeps the comments containing CommentFilter
func ManualMatchingComments(p entity.Post) entity.PostComments {
	out := entity.PostComments{ID: p.ID}
	if p.Comments != nil {
		out.Comments = lo.Filter(p.Comments, func(c entity.EmbeddedComment, _ int) bool {
			return strings.Contains(c.Text, CommentFilter)
		})
	}
	return out
}

// ManualAllComments copies the comments as they are stored
func ManualAllComments(p entity.Post) entity.PostComments {
	out := entity.PostComments{ID: p.ID}
	if p.Comments != nil {
		out.Comments = append([]entity.EmbeddedComment{}, p.Comments...)
	}
	return out
}

// AllComments projects the id and the stored comments unchanged
func AllComments() stagex.Projection {
	return stagex.Projection{
		Fields: stagex.Fields{
			{Key: "Id", Rule: stagex.Copy{From: "_id"}},
			{Key: "Comments", Rule: stagex.Copy{From: "Comments"}},
		},
		ExcludeID: true,
	}
}
