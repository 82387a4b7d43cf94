// Package schema materializes a declared tag hierarchy into a navigable
// tree of tag constructors.
//
// A schema is declared from Static and Wild definition nodes and compiled
// with Build. Navigation over the resulting tree yields tag paths; paths
// the schema does not authorize are unreachable (navigation returns nil,
// which propagates safely through a chain):
//
//	t, err := schema.Build(
//		schema.At("posts",
//			schema.Wild(
//				schema.At("comments", schema.Wild()),
//			),
//			schema.At("recent"),
//		),
//		schema.At("users", schema.Wild()),
//	)
//
//	t.Root().At("posts").Arg("1").At("comments").Path() // ["posts","1","comments"]
//	t.Root().At("posts").At("recent").Path()            // ["posts","recent"]
//	t.Root().At("nope")                                 // nil
package schema
