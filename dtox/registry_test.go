package dtox

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Conversia-AI/craftable-projection/entity"
	"github.com/Conversia-AI/craftable-projection/errx"
	"github.com/Conversia-AI/craftable-projection/queryx"
)

func postRegistry(t *testing.T) *Registry {
	t.Helper()

	reg := NewRegistry()
	_, err := Register[entity.Post, entity.PostDto](reg)
	require.NoError(t, err)
	_, err = Register[entity.EmbeddedCategory, entity.CategoryDto](reg)
	require.NoError(t, err)
	_, err = Register[entity.EmbeddedComment, entity.CommentDto](reg)
	require.NoError(t, err)
	require.NoError(t, reg.Validate())
	return reg
}

func TestNormalizeName(t *testing.T) {
	tests := map[string]string{
		"ID":        "id",
		"Id":        "id",
		"id":        "id",
		"PostID":    "postid",
		"post_id":   "postid",
		"XMLParser": "xmlparser",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeName(in), in)
	}
	assert.Equal(t, []string{"http", "status", "code"}, Tokens("HTTPStatusCode"))
}

func TestRegister_CompilesPostTable(t *testing.T) {
	reg := postRegistry(t)

	table, err := Resolve[entity.Post, entity.PostDto](reg)
	require.NoError(t, err)
	require.Len(t, table.Rules, 4)

	id, ok := table.Rule("ID")
	require.True(t, ok)
	assert.Equal(t, Assign, id.Conversion)
	assert.Equal(t, "_id", id.SourceKey)
	assert.Equal(t, "Id", id.TargetKey)

	cat, _ := table.Rule("Category")
	assert.Equal(t, Nested, cat.Conversion)
	assert.Equal(t, PairOf[entity.EmbeddedCategory, entity.CategoryDto](), cat.Element)

	comments, _ := table.Rule("Comments")
	assert.Equal(t, Each, comments.Conversion)
	assert.Equal(t, PairOf[entity.EmbeddedComment, entity.CommentDto](), comments.Element)
}

func TestRegister_Idempotent(t *testing.T) {
	reg := postRegistry(t)

	before, err := Resolve[entity.Post, entity.PostDto](reg)
	require.NoError(t, err)

	again, err := Register[entity.Post, entity.PostDto](reg)
	require.NoError(t, err)
	assert.Same(t, before, again)

	after, err := Resolve[entity.Post, entity.PostDto](reg)
	require.NoError(t, err)
	assert.Same(t, before, after)
}

func TestRegister_ConflictingOptions(t *testing.T) {
	reg := postRegistry(t)

	_, err := Register[entity.Post, entity.PostDto](reg, WithIgnoreField("Title"))
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
}

func TestRegister_ConfigurationErrors(t *testing.T) {
	type ambiguous struct {
		ID string
		Id string
	}
	type idTarget struct {
		ID string
	}
	type missingTarget struct {
		Title   string
		Subject string
	}
	type wrongType struct {
		Title int
	}
	type scalarTarget struct {
		Title []string
	}

	tests := []struct {
		name   string
		run    func(r *Registry) error
		reason string
	}{
		{
			name: "ambiguous source names",
			run: func(r *Registry) error {
				_, err := Register[ambiguous, idTarget](r)
				return err
			},
			reason: "ambiguous source fields",
		},
		{
			name: "missing correspondent",
			run: func(r *Registry) error {
				_, err := Register[entity.Post, missingTarget](r)
				return err
			},
			reason: "target field has no source correspondent",
		},
		{
			name: "incompatible types",
			run: func(r *Registry) error {
				_, err := Register[entity.Post, wrongType](r)
				return err
			},
			reason: "incompatible field types",
		},
		{
			name: "explicit mapping to a missing field",
			run: func(r *Registry) error {
				_, err := Register[entity.Post, entity.PostDto](r, WithFieldMapping("Headline", "Title"))
				return err
			},
			reason: "mapped source field does not exist",
		},
		{
			name: "element filter on a scalar",
			run: func(r *Registry) error {
				_, err := Register[entity.Post, entity.PostDto](r, WithElementFilter("Title", queryx.FieldEq("x", 1)))
				return err
			},
			reason: "element filter on a non-collection field",
		},
		{
			name: "non struct pair",
			run: func(r *Registry) error {
				_, err := Register[string, entity.PostDto](r)
				return err
			},
			reason: "source and target must be struct types",
		},
		{
			name: "default of the wrong type",
			run: func(r *Registry) error {
				_, err := Register[entity.Post, scalarTarget](r, WithDefault("Title", 3))
				return err
			},
			reason: "default is not assignable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(NewRegistry())
			require.Error(t, err)
			assert.True(t, IsConfigurationError(err))
			reason, _ := errx.Detail(err, "reason")
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestRegister_MissingCorrespondentWithDefault(t *testing.T) {
	type withVersion struct {
		Title   string
		Version int
	}

	reg := NewRegistry()
	_, err := Register[entity.Post, withVersion](reg, WithDefault("Version", 2))
	require.NoError(t, err)

	out, err := Map[entity.Post, withVersion](reg, entity.Post{Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, withVersion{Title: "t", Version: 2}, out)
}

func TestResolve_Unregistered(t *testing.T) {
	_, err := Resolve[entity.Post, entity.PostDto](NewRegistry())
	require.Error(t, err)
	assert.True(t, IsUnregisteredMapping(err))
}

func TestValidate_MissingNestedPair(t *testing.T) {
	reg := NewRegistry()
	_, err := Register[entity.Post, entity.PostDto](reg)
	require.NoError(t, err)

	err = reg.Validate()
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
	missing, _ := errx.Detail(err, "missing")
	assert.Contains(t, missing, "entity.CategoryDto")
	assert.Contains(t, missing, "entity.CommentDto")
}

func TestRegister_ConcurrentReaders(t *testing.T) {
	reg := postRegistry(t)
	post := entity.Post{ID: primitive.NewObjectID(), Title: "p"}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := Map[entity.Post, entity.PostDto](reg, post)
			assert.NoError(t, err)
			assert.Equal(t, post.ID, out.ID)
		}()
	}
	wg.Wait()
}

func TestRegister_ScalarConversions(t *testing.T) {
	type scores struct {
		Score float64
		Small int64
	}
	type truncated struct {
		Score int
		Small int64
	}
	type wrapped struct {
		Score float64
		Small int8
	}
	type widened struct {
		Score float64
		Small float64
	}
	type narrowSource struct {
		Score float32
		Small int32
	}
	type wideTarget struct {
		Score float64
		Small int64
	}
	type unsignedSource struct {
		Score float64
		Small uint32
	}
	type signedTarget struct {
		Score float64
		Small int32
	}
	type label string
	type named struct {
		Score float64
		Small int64
		Label label
	}
	type plain struct {
		Score float64
		Small int64
		Label string
	}

	refused := map[string]func(r *Registry) error{
		"float to int": func(r *Registry) error {
			_, err := Register[scores, truncated](r)
			return err
		},
		"int64 to int8": func(r *Registry) error {
			_, err := Register[scores, wrapped](r)
			return err
		},
		"int64 to float64": func(r *Registry) error {
			_, err := Register[scores, widened](r)
			return err
		},
		"uint32 to int32": func(r *Registry) error {
			_, err := Register[unsignedSource, signedTarget](r)
			return err
		},
	}
	for name, run := range refused {
		t.Run(name, func(t *testing.T) {
			err := run(NewRegistry())
			require.Error(t, err)
			assert.True(t, IsConfigurationError(err))
			reason, _ := errx.Detail(err, "reason")
			assert.Equal(t, "incompatible field types", reason)
		})
	}

	reg := NewRegistry()
	_, err := Register[narrowSource, wideTarget](reg)
	require.NoError(t, err)
	out, err := Map[narrowSource, wideTarget](reg, narrowSource{Score: 1.5, Small: 300})
	require.NoError(t, err)
	assert.Equal(t, wideTarget{Score: 1.5, Small: 300}, out)

	_, err = Register[named, plain](reg)
	require.NoError(t, err)
}

func TestRegister_DefaultsMustKeepTheirValue(t *testing.T) {
	type named struct {
		Name string
	}
	type labelled struct {
		Name  string
		Label string
	}
	type counted struct {
		Name  string
		Count int8
		Ratio float64
		Size  uint16
	}

	counts := func(opt Option) []Option {
		return []Option{WithDefault("Count", int8(0)), WithDefault("Ratio", 0.0), WithDefault("Size", uint16(0)), opt}
	}

	tests := []struct {
		name string
		run  func(r *Registry) error
	}{
		{"int into string", func(r *Registry) error {
			_, err := Register[named, labelled](r, WithDefault("Label", 65))
			return err
		}},
		{"overflowing int8", func(r *Registry) error {
			_, err := Register[named, counted](r, counts(WithDefault("Count", 300))...)
			return err
		}},
		{"fraction into int8", func(r *Registry) error {
			_, err := Register[named, counted](r, counts(WithDefault("Count", 1.5))...)
			return err
		}},
		{"negative into uint", func(r *Registry) error {
			_, err := Register[named, counted](r, counts(WithDefault("Size", -1))...)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(NewRegistry())
			require.Error(t, err)
			assert.True(t, IsConfigurationError(err))
			reason, _ := errx.Detail(err, "reason")
			assert.Equal(t, "default is not assignable", reason)
		})
	}

	reg := NewRegistry()
	_, err := Register[named, counted](reg, WithDefault("Count", 7), WithDefault("Ratio", 2), WithDefault("Size", 2.0))
	require.NoError(t, err)
	out, err := Map[named, counted](reg, named{Name: "x"})
	require.NoError(t, err)
	assert.Equal(t, counted{Name: "x", Count: 7, Ratio: 2, Size: 2}, out)
}
