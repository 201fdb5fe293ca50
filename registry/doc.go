// Package registry implements the hierarchical command namespace tree and
// the algorithm that resolves an inbound signature to the single command
// that should handle it.
//
// A tree is made of nodes. Each node is a namespace holding its own
// commands, child namespaces, an optional prefix, an enabled flag, and a
// chain of context-check predicates; prefix, enablement and context checks
// inherit downward. Independently developed modules attach sub-registries
// under a shared root and register commands into whichever node fits, while
// inbound signatures are resolved from the root top-down.
//
// Placeholders preserve structure across deletion and recreation: removing
// a node non-destructively leaves a placeholder holding its children, and
// creating a real node at that name absorbs the placeholder again. A
// Directory maps opaque client identities to their roots, one tree per
// client.
//
// Resolution never blocks on administration: read paths take per-node read
// locks only, and the rare cross-node mutations (placeholder absorption,
// subtree transfer, command transfer, registration with its tree-wide
// uniqueness scan) serialize on a single structural lock the lookup path
// never touches. Command records are tracked by identity, so Command
// implementations are expected to be pointers.
package registry
