package registry

import (
	"fmt"
	"slices"
	"strings"

	"github.com/c360/cmdtree/errors"
)

// SubRegistry returns the named child, creating it when absent. A
// placeholder already standing at the name is absorbed: its subtree moves
// onto the new node and the placeholder is discarded. Get-or-create is
// idempotent; two calls with no removal in between return the same node.
func (n *Node) SubRegistry(name string) (*Node, error) {
	if err := validateName(name); err != nil {
		return nil, errors.WrapInvalid(err, "registry", "SubRegistry",
			fmt.Sprintf("validate name %q", name))
	}

	n.mu.RLock()
	child := n.children[name]
	n.mu.RUnlock()
	if child != nil {
		return child, nil
	}

	structuralMu.Lock()
	defer structuralMu.Unlock()
	return n.createChildLocked(name), nil
}

// SubRegistryOrPlaceholder returns the named real child when one exists,
// else the named placeholder, creating the placeholder when needed. Read
// and administrative paths use it to address structure by name without
// forcing a functional node into existence.
func (n *Node) SubRegistryOrPlaceholder(name string) (*Node, error) {
	if err := validateName(name); err != nil {
		return nil, errors.WrapInvalid(err, "registry", "SubRegistryOrPlaceholder",
			fmt.Sprintf("validate name %q", name))
	}

	n.mu.RLock()
	child := n.children[name]
	if child == nil {
		child = n.placeholders[name]
	}
	n.mu.RUnlock()
	if child != nil {
		return child, nil
	}

	structuralMu.Lock()
	defer structuralMu.Unlock()

	n.mu.Lock()
	if child := n.children[name]; child != nil {
		n.mu.Unlock()
		return child, nil
	}
	if ph := n.placeholders[name]; ph != nil {
		n.mu.Unlock()
		return ph, nil
	}
	ph := n.newChild(name, true)
	ph.parent.Store(n)
	n.placeholders[name] = ph
	n.mu.Unlock()

	n.touch()
	n.metrics.addPlaceholders(1)
	n.logger.Debug("placeholder created", "path", ph.Path())
	return ph, nil
}

// createChildLocked builds and links a real child, absorbing any standing
// placeholder of the same name. Caller holds structuralMu.
func (n *Node) createChildLocked(name string) *Node {
	child := n.newChild(name, false)

	n.mu.Lock()
	if existing := n.children[name]; existing != nil {
		n.mu.Unlock()
		return existing
	}
	ph := n.placeholders[name]
	if ph != nil {
		delete(n.placeholders, name)
		ph.mu.Lock()
		child.adopt(ph)
		ph.mu.Unlock()
		ph.parent.Store(nil)
	}
	child.parent.Store(n)
	n.children[name] = child
	n.mu.Unlock()

	n.touch()
	n.metrics.addNodes(1)
	if ph != nil {
		n.metrics.addPlaceholders(-1)
		n.logger.Debug("placeholder absorbed", "path", child.Path())
	}
	n.logger.Debug("sub-registry created", "path", child.Path())
	return child
}

// HasSubRegistry reports whether a real child with the name exists.
// Placeholders do not count.
func (n *Node) HasSubRegistry(name string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.children[name] != nil
}

// SubRegistries returns the real children sorted by name. The slice is a
// snapshot.
func (n *Node) SubRegistries() []*Node {
	n.mu.RLock()
	subs := make([]*Node, 0, len(n.children))
	for _, c := range n.children {
		subs = append(subs, c)
	}
	n.mu.RUnlock()
	slices.SortFunc(subs, compareNodes)
	return subs
}

// Descend walks the path parts from the node through existing children and
// placeholders only, returning the node at the end or nil when any part is
// missing. Nothing is created.
func (n *Node) Descend(parts ...string) *Node {
	x := n
	for _, part := range parts {
		x.mu.RLock()
		next := x.children[part]
		if next == nil {
			next = x.placeholders[part]
		}
		x.mu.RUnlock()
		if next == nil {
			return nil
		}
		x = next
	}
	return x
}

// RegisterSubRegistry attaches an externally built registry as a child,
// detaching it from any prior parent first. A placeholder standing at the
// same name is absorbed into sub. Attaching a node to itself or to its own
// subtree is rejected, as is a name collision with a different existing
// child.
func (n *Node) RegisterSubRegistry(sub *Node) error {
	const op = "RegisterSubRegistry"
	if sub == nil {
		return errors.WrapInvalid(errors.ErrNilRegistry, "registry", op, "validate sub-registry")
	}
	if sub.placeholder {
		return errors.WrapInvalid(errors.ErrPlaceholder, "registry", op, "attach placeholder")
	}
	if sub == n {
		return errors.WrapInvalid(errors.ErrSelfRegistry, "registry", op, "attach registry to itself")
	}

	structuralMu.Lock()
	defer structuralMu.Unlock()

	// Finding sub above n means the attach would close a cycle.
	for x := n.parent.Load(); x != nil; x = x.parent.Load() {
		if x == sub {
			return errors.WrapInvalid(errors.ErrSelfRegistry, "registry", op, "attach ancestor registry")
		}
	}

	prev := sub.parent.Load()
	if prev == n {
		return nil
	}

	n.mu.RLock()
	existing := n.children[sub.name]
	n.mu.RUnlock()
	if existing != nil {
		return errors.WrapConflict(errors.ErrDuplicateRegistry, "registry", op,
			fmt.Sprintf("attach %q under %s", sub.name, n.Path()))
	}

	if prev != nil {
		prev.mu.Lock()
		delete(prev.children, sub.name)
		prev.mu.Unlock()
		sub.parent.Store(nil)
		prev.touch()
		cascadePlaceholderCleanup(prev)
	}

	// Counted before any placeholder subtree is adopted: an absorbed
	// placeholder's former children are already in the gauges.
	var addNodes, addPlaceholders, addCommands int
	if prev == nil {
		addNodes, addPlaceholders, addCommands = sub.subtreeCounts()
	}

	n.mu.Lock()
	ph := n.placeholders[sub.name]
	if ph != nil {
		delete(n.placeholders, sub.name)
		ph.mu.Lock()
		sub.mu.Lock()
		sub.adopt(ph)
		sub.mu.Unlock()
		ph.mu.Unlock()
		ph.parent.Store(nil)
	}
	if sub.metrics == nil {
		sub.metrics = n.metrics
	}
	sub.parent.Store(n)
	n.children[sub.name] = sub
	n.mu.Unlock()

	sub.touch()
	if ph != nil {
		n.metrics.addPlaceholders(-1)
		n.logger.Debug("placeholder absorbed", "path", sub.Path())
	}
	n.metrics.addNodes(addNodes)
	n.metrics.addPlaceholders(addPlaceholders)
	n.metrics.addCommands(addCommands)
	n.logger.Debug("sub-registry attached", "path", sub.Path())
	return nil
}

// RemoveSubRegistry removes the named child but preserves structure: when
// the child still has children or placeholders beneath it, a placeholder
// holding them is left at its name, so recreating a node there later
// restores them. The removed node keeps its commands but is detached from
// the tree.
func (n *Node) RemoveSubRegistry(name string) error {
	return n.removeSubRegistry(name, false)
}

// RemoveSubRegistryFull removes the named child and its entire subtree
// unconditionally. A bare placeholder standing at the name is removed the
// same way.
func (n *Node) RemoveSubRegistryFull(name string) error {
	return n.removeSubRegistry(name, true)
}

func (n *Node) removeSubRegistry(name string, full bool) error {
	op := "RemoveSubRegistry"
	if full {
		op = "RemoveSubRegistryFull"
	}

	structuralMu.Lock()
	defer structuralMu.Unlock()

	n.mu.Lock()
	child := n.children[name]
	if child == nil && full {
		child = n.placeholders[name]
		if child != nil {
			delete(n.placeholders, name)
		}
	}
	if child == nil {
		n.mu.Unlock()
		return errors.WrapInvalid(errors.ErrNotRegistered, "registry", op,
			fmt.Sprintf("remove sub-registry %q from %s", name, n.Path()))
	}

	demoted := false
	if full {
		delete(n.children, name)
	} else {
		child.mu.Lock()
		if len(child.children) > 0 || len(child.placeholders) > 0 {
			ph := n.newChild(name, true)
			ph.adopt(child)
			ph.parent.Store(n)
			n.placeholders[name] = ph
			demoted = true
		}
		delete(n.children, name)
		child.mu.Unlock()
	}
	n.mu.Unlock()
	child.parent.Store(nil)

	n.touch()
	cascadePlaceholderCleanup(n)

	nodes, placeholders, commands := child.subtreeCounts()
	n.metrics.addNodes(-nodes)
	n.metrics.addPlaceholders(-placeholders)
	n.metrics.addCommands(-commands)
	if demoted {
		n.metrics.addPlaceholders(1)
	}
	n.logger.Debug("sub-registry removed",
		"path", n.Path(), "name", name, "full", full, "demoted", demoted)
	return nil
}

// adopt moves every child and placeholder of from onto n, re-parenting
// each. On a name collision n's entry wins and the colliding entry is
// detached with a warning. Caller holds structuralMu and from's write
// lock; n is either unpublished or write-locked by the caller.
func (n *Node) adopt(from *Node) {
	for name, c := range from.children {
		delete(from.children, name)
		if n.children[name] != nil || n.placeholders[name] != nil {
			c.parent.Store(nil)
			n.logger.Warn("dropping colliding sub-registry during absorption",
				"name", name, "path", n.Path())
			continue
		}
		c.parent.Store(n)
		n.children[name] = c
	}
	for name, p := range from.placeholders {
		delete(from.placeholders, name)
		if n.children[name] != nil || n.placeholders[name] != nil {
			p.parent.Store(nil)
			n.logger.Warn("dropping colliding placeholder during absorption",
				"name", name, "path", n.Path())
			continue
		}
		p.parent.Store(n)
		n.placeholders[name] = p
	}
}

// cascadePlaceholderCleanup removes x when it is a placeholder left with
// nothing beneath it, then repeats at its parent, stopping at the first
// real or non-empty node. Caller holds structuralMu and no node locks.
func cascadePlaceholderCleanup(x *Node) {
	for x != nil && x.placeholder {
		parent := x.parent.Load()
		if parent == nil {
			return
		}
		x.mu.RLock()
		empty := len(x.children) == 0 && len(x.placeholders) == 0
		x.mu.RUnlock()
		if !empty {
			return
		}
		parent.mu.Lock()
		if parent.placeholders[x.name] != x {
			parent.mu.Unlock()
			return
		}
		delete(parent.placeholders, x.name)
		parent.mu.Unlock()
		x.parent.Store(nil)
		x.metrics.addPlaceholders(-1)
		x.logger.Debug("empty placeholder removed", "name", x.name)
		parent.touch()
		x = parent
	}
}

// subtreeCounts tallies real nodes, placeholders and registered commands
// in the subtree, including the receiver.
func (n *Node) subtreeCounts() (nodes, placeholders, commands int) {
	if n.placeholder {
		placeholders++
	} else {
		nodes++
	}
	n.mu.RLock()
	commands += len(n.commands)
	kids := n.childSnapshotLocked()
	n.mu.RUnlock()
	for _, k := range kids {
		kn, kp, kc := k.subtreeCounts()
		nodes += kn
		placeholders += kp
		commands += kc
	}
	return nodes, placeholders, commands
}

// childSnapshot returns the children and placeholders in a stable order:
// real children by name, then placeholders by name. Resolution iterates it
// so ties among equal-priority descendants break deterministically.
func (n *Node) childSnapshot() []*Node {
	n.mu.RLock()
	reals := make([]*Node, 0, len(n.children))
	for _, c := range n.children {
		reals = append(reals, c)
	}
	phs := make([]*Node, 0, len(n.placeholders))
	for _, p := range n.placeholders {
		phs = append(phs, p)
	}
	n.mu.RUnlock()
	slices.SortFunc(reals, compareNodes)
	slices.SortFunc(phs, compareNodes)
	return append(reals, phs...)
}

// childSnapshotLocked copies the child and placeholder pointers without
// ordering. Caller holds n.mu.
func (n *Node) childSnapshotLocked() []*Node {
	kids := make([]*Node, 0, len(n.children)+len(n.placeholders))
	for _, c := range n.children {
		kids = append(kids, c)
	}
	for _, p := range n.placeholders {
		kids = append(kids, p)
	}
	return kids
}

func compareNodes(a, b *Node) int { return strings.Compare(a.name, b.name) }
