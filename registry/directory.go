package registry

import (
	"log/slog"
	"slices"
	"sync"
)

// Directory is the top-level index of registry trees, one root per client
// identity. Keys are opaque; a root's name never appears in path strings.
// Roots are created on first use and are essential, so a whole tree cannot
// be disabled at its root.
type Directory struct {
	mu       sync.RWMutex
	roots    map[string]*Node
	logger   *slog.Logger
	metrics  *Metrics
	rootOpts []Option
	seed     func(client string, root *Node)
}

// DirectoryOption configures a Directory at construction.
type DirectoryOption func(*Directory)

// WithDirectoryLogger sets the logger handed to every root.
func WithDirectoryLogger(logger *slog.Logger) DirectoryOption {
	return func(d *Directory) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithDirectoryMetrics instruments every tree created by the directory.
func WithDirectoryMetrics(m *Metrics) DirectoryOption {
	return func(d *Directory) { d.metrics = m }
}

// WithRootOptions appends options applied to each new root, after the
// directory's logger and metrics.
func WithRootOptions(opts ...Option) DirectoryOption {
	return func(d *Directory) { d.rootOpts = append(d.rootOpts, opts...) }
}

// WithRootSeed runs fn on every root the directory creates, before the
// root becomes visible to other callers. The daemon uses it to install
// the administration commands into each tree it serves. fn must not call
// back into the Directory.
func WithRootSeed(fn func(client string, root *Node)) DirectoryOption {
	return func(d *Directory) { d.seed = fn }
}

// NewDirectory creates an empty directory.
func NewDirectory(opts ...DirectoryOption) *Directory {
	d := &Directory{
		roots:  make(map[string]*Node),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the root for the client, creating it on first use.
// Repeated calls with the same key return the same root until it is
// removed.
func (d *Directory) Registry(client string) *Node {
	d.mu.RLock()
	root := d.roots[client]
	d.mu.RUnlock()
	if root != nil {
		return root
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if root := d.roots[client]; root != nil {
		return root
	}
	opts := append([]Option{
		WithLogger(d.logger.With("client", client)),
		WithMetrics(d.metrics),
		WithEssential(),
	}, d.rootOpts...)
	root = newNode(client, false, opts...)
	if d.seed != nil {
		d.seed(client, root)
	}
	d.roots[client] = root

	d.metrics.addRoots(1)
	d.metrics.addNodes(1)
	d.logger.Debug("registry tree created", "client", client)
	return root
}

// HasRegistry reports whether a root exists for the client without
// creating one.
func (d *Directory) HasRegistry(client string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.roots[client] != nil
}

// RemoveRegistry drops the client's tree entirely and reports whether one
// existed. The detached tree stays functional for holders of its nodes but
// the directory will build a fresh root on the next Registry call.
func (d *Directory) RemoveRegistry(client string) bool {
	d.mu.Lock()
	root := d.roots[client]
	delete(d.roots, client)
	d.mu.Unlock()
	if root == nil {
		return false
	}

	nodes, placeholders, commands := root.subtreeCounts()
	d.metrics.addRoots(-1)
	d.metrics.addNodes(-nodes)
	d.metrics.addPlaceholders(-placeholders)
	d.metrics.addCommands(-commands)
	d.logger.Debug("registry tree removed", "client", client)
	return true
}

// Clients returns the known client keys, sorted.
func (d *Directory) Clients() []string {
	d.mu.RLock()
	keys := make([]string, 0, len(d.roots))
	for k := range d.roots {
		keys = append(keys, k)
	}
	d.mu.RUnlock()
	slices.Sort(keys)
	return keys
}

// Len returns the number of registry trees.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.roots)
}
