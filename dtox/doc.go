// Package dtox projects source structs into target-shaped structs through a
// registry of compiled correspondence tables.
//
// A pair is registered once. Target fields are matched to source fields by
// normalized name ("ID", "Id" and "id" are the same name), and every failure
// to establish a correspondence is reported at registration time:
//
//	reg := dtox.NewRegistry()
//
//	_, err := dtox.Register[entity.Post, entity.PostDto](reg)
//	_, err = dtox.Register[entity.EmbeddedCategory, entity.CategoryDto](reg)
//	_, err = dtox.Register[entity.EmbeddedComment, entity.CommentDto](reg)
//	err = reg.Validate() // every nested pair is registered
//
//	dtos, err := dtox.MapAll[entity.Post, entity.PostDto](reg, posts)
//
// Options adjust a registration:
//
//	dtox.WithFieldMapping("Name", "FirstName")   // explicit source for a target field
//	dtox.WithIgnoreField("Audit")                // leave the target at zero
//	dtox.WithDefault("Version", 1)               // constant target value
//	dtox.WithElementFilter("Comments",           // keep matching collection elements
//		queryx.TextContains("Text", "test"))
//
// Scalar fields convert only when no value can change: identical kinds and
// widening (int32 to int64, float32 to float64, int16 to float32). Defaults
// must survive the conversion to their target field.
//
// Mapping semantics: a nil pointer maps to nil, a nil slice to nil and an
// empty slice to an empty slice. Identifiers are copied verbatim and the
// source is never mutated; slices and pointees are copied.
//
// Mapper wraps the same registry behind a typed builder:
//
//	m, err := dtox.NewMapper[entity.Post, entity.PostComments](reg).
//		WithElementFilter("Comments", queryx.TextContains("Text", "test")).
//		WithRules([]dtox.ValidationRule{{FieldName: "Title", Validator: dtox.Required}}).
//		Register()
//	out, err := m.MapAll(posts) // DTOX_VALIDATION_FAILED when a rule fails
package dtox
