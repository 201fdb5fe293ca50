package registry

import (
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/cmdtree/command"
	"github.com/c360/cmdtree/errors"
)

const (
	// DefaultPrefix applies when no registry on the path to the root has
	// an explicit prefix of its own.
	DefaultPrefix = "?"

	// PathSeparator joins node names in path strings. Node names must not
	// contain it.
	PathSeparator = "/"
)

// structuralMu serializes cross-node mutations: placeholder absorption,
// subtree transfer and demotion, sub-registry attach/detach, and command
// (un)registration with its tree-wide uniqueness scan. Resolution and the
// other read paths never take it. While it is held, node locks are only
// acquired parent before child, which keeps multi-node critical sections
// deadlock-free against readers holding a single node lock.
var structuralMu sync.Mutex

// Check is a predicate evaluated against an invocation before commands
// under a registry may run. The registry threads the invocation through
// without inspecting it.
type Check func(inv *command.Invocation) bool

// Node is one namespace in a command registry tree. A node owns its
// children; the parent reference is non-owning and used only for upward
// traversal. Placeholder nodes are structural anchors: they hold children
// but reject commands, prefixes, context checks, and enablement changes.
//
// All methods are safe for concurrent use.
type Node struct {
	name        string
	essential   bool
	placeholder bool

	parent      atomic.Pointer[Node]
	enabled     atomic.Bool
	lastChanged atomic.Int64

	mu             sync.RWMutex
	prefix         string
	checks         []Check
	commands       map[string]command.Command
	signatureIndex map[string]*bucket
	aliasIndex     map[string]*bucket
	children       map[string]*Node
	placeholders   map[string]*Node

	logger  *slog.Logger
	metrics *Metrics
}

var _ command.Owner = (*Node)(nil)

// Option configures a Node at construction.
type Option func(*Node)

// WithPrefix gives the node an explicit prefix instead of inheriting one.
func WithPrefix(prefix string) Option {
	return func(n *Node) { n.prefix = prefix }
}

// WithLogger sets the logger for structural events. Children created under
// the node inherit it.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Node) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithMetrics installs registry metrics. Children created under the node
// inherit them. A nil Metrics disables instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(n *Node) { n.metrics = m }
}

// WithEssential protects the node from ever being disabled.
func WithEssential() Option {
	return func(n *Node) { n.essential = true }
}

// New creates a detached registry root. The name must be non-empty and
// free of the path separator.
func New(name string, opts ...Option) (*Node, error) {
	if err := validateName(name); err != nil {
		return nil, errors.WrapInvalid(err, "registry", "New", "validate registry name")
	}
	return newNode(name, false, opts...), nil
}

// newNode builds a node without name validation. Directory roots take
// arbitrary client identities as names; the name of a root never appears in
// a path string.
func newNode(name string, placeholder bool, opts ...Option) *Node {
	n := &Node{
		name:           name,
		placeholder:    placeholder,
		commands:       make(map[string]command.Command),
		signatureIndex: make(map[string]*bucket),
		aliasIndex:     make(map[string]*bucket),
		children:       make(map[string]*Node),
		placeholders:   make(map[string]*Node),
		logger:         slog.Default(),
	}
	n.enabled.Store(true)
	n.lastChanged.Store(time.Now().UnixNano())
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// newChild builds a detached node inheriting the receiver's logger and
// metrics. The caller links it under the structural lock.
func (n *Node) newChild(name string, placeholder bool) *Node {
	child := newNode(name, placeholder)
	child.logger = n.logger
	child.metrics = n.metrics
	return child
}

func validateName(name string) error {
	if name == "" {
		return errors.ErrEmptyName
	}
	if strings.Contains(name, PathSeparator) {
		return errors.ErrSeparatorInName
	}
	return nil
}

// Name returns the node's name, unique among its siblings.
func (n *Node) Name() string { return n.name }

// IsPlaceholder reports whether the node is a structural placeholder.
func (n *Node) IsPlaceholder() bool { return n.placeholder }

// Essential reports whether the node is protected from being disabled.
func (n *Node) Essential() bool { return n.essential }

// Parent returns the registry the node is attached under, or nil for a
// root or a detached node.
func (n *Node) Parent() *Node { return n.parent.Load() }

// Root returns the topmost registry above the node, which may be the node
// itself.
func (n *Node) Root() *Node {
	x := n
	for p := x.parent.Load(); p != nil; p = x.parent.Load() {
		x = p
	}
	return x
}

// Path returns the node names from the root joined by the path separator.
// A root's path is "/".
func (n *Node) Path() string {
	parent := n.parent.Load()
	if parent == nil {
		return PathSeparator
	}
	base := parent.Path()
	if base == PathSeparator {
		return base + n.name
	}
	return base + PathSeparator + n.name
}

// LastChanged returns the time of the latest mutation in the subtree
// rooted at this node. Mutations bubble upward, so a root's LastChanged
// covers its whole tree; callers may key derived caches on it.
func (n *Node) LastChanged() time.Time {
	return time.Unix(0, n.lastChanged.Load())
}

// touch stamps the node and every ancestor with the current time.
func (n *Node) touch() {
	now := time.Now().UnixNano()
	for x := n; x != nil; x = x.parent.Load() {
		x.lastChanged.Store(now)
	}
}
