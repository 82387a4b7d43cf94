// Package tag provides the hierarchical tag path value type used to
// express cache dependencies.
//
// A Path is an ordered sequence of string segments. Paths serialize to an
// injective string form used as the invalidation-timestamp key in storage
// backends, and support prefix testing for hierarchical invalidation.
package tag
