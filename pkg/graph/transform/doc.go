// Package transform derives filtered views of an attack graph.
//
// # Path Filter
//
// [FilterThrough] keeps only the paths that flow through a set of focus
// nodes. For each focus node f it computes two cones:
//
//   - ancestors(f): every node that can reach f by following edges forward,
//     including f itself
//   - descendants(f): every node reachable from f, including f itself
//
// The retained node set is the union of both cones over all focus nodes, and
// an edge survives exactly when both of its endpoints survive. Endpoint
// membership is the only test, so an edge between two nodes kept by
// unrelated cones is retained as well.
//
// Traversal always follows the semantic prerequisite -> dependent
// direction; an edge's Backwards flag is a drawing hint and never changes
// reachability.
//
// An empty focus list is the identity: the input graph is returned as is.
package transform
