// Package storex defines the document store the projections read from.
//
// A Collection is a typed set of stored documents that can also run
// aggregation pipelines over itself. A Pipeline runs stages without a
// backing collection, which is how in-process items are projected: they
// are shipped in a leading $documents stage.
//
// Two providers implement both interfaces:
//
//   - storexmongo wraps a driver collection and database.
//   - storexinmemory keeps documents in their BSON form and interprets the
//     subset of the aggregation language the projections use ($documents,
//     $match, $project, $limit, $skip and the expressions they contain).
//
// Basic usage:
//
//	client, err := storexmongo.Connect(ctx, "mongodb://localhost:27017")
//	if err != nil {
//		return err
//	}
//	posts := storexmongo.NewMongoCollection[entity.Post](client.Database("MongoTestDb").Collection("posts"))
//
//	stored, err := posts.InsertOne(ctx, entity.Post{Title: "post1"})
//	// stored.ID was assigned because it was zero
//
//	for post, err := range posts.Sequence(ctx) {
//		if err != nil {
//			return err
//		}
//		fmt.Println(post.Title)
//	}
//
// Aggregation results come back as raw documents and are decoded into the
// target shape:
//
//	raws, err := posts.Aggregate(ctx, mongo.Pipeline{stage})
//	dtos, err := storex.Decode[entity.PostDto](raws)
//
// Errors:
//
// Every failure is an *errx.Error from the STORE registry. Use the helpers
// to branch on the cases callers usually care about:
//
//	if storex.IsDuplicateID(err) { ... }
//	if storex.IsUnsupportedStage(err) { ... }
package storex
