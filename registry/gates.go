package registry

import (
	"fmt"

	"github.com/c360/cmdtree/command"
	"github.com/c360/cmdtree/errors"
)

// Enabled reports the node's own flag. Placeholders carry no flag of their
// own and always report true.
func (n *Node) Enabled() bool { return n.enabled.Load() }

// SetEnabled toggles the node. Essential nodes cannot be disabled and
// placeholders cannot be toggled at all; both fail with a state error and
// change nothing.
func (n *Node) SetEnabled(enabled bool) error {
	const op = "SetEnabled"
	if n.placeholder {
		return errors.WrapState(errors.ErrPlaceholder, "registry", op, "toggle placeholder")
	}
	if !enabled && n.essential {
		return errors.WrapState(errors.ErrEssential, "registry", op,
			fmt.Sprintf("disable registry %s", n.Path()))
	}
	n.enabled.Store(enabled)
	n.touch()
	n.logger.Debug("registry toggled", "path", n.Path(), "enabled", enabled)
	return nil
}

// EffectivelyEnabled reports whether the node and every registry above it
// are enabled. Disabling an ancestor disables the whole subtree beneath it
// no matter the descendants' own flags.
func (n *Node) EffectivelyEnabled() bool {
	for x := n; x != nil; x = x.parent.Load() {
		if !x.enabled.Load() {
			return false
		}
	}
	return true
}

// Prefix returns the node's explicit prefix, or "" when it inherits.
func (n *Node) Prefix() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.prefix
}

// SetPrefix sets the node's explicit prefix; an empty prefix returns the
// node to inheriting. The change is visible to the very next resolution.
func (n *Node) SetPrefix(prefix string) error {
	if n.placeholder {
		return errors.WrapState(errors.ErrPlaceholder, "registry", "SetPrefix", "set prefix on placeholder")
	}
	n.mu.Lock()
	n.prefix = prefix
	n.mu.Unlock()
	n.touch()
	n.logger.Debug("registry prefix changed", "path", n.Path(), "prefix", prefix)
	return nil
}

// EffectivePrefix walks from the node toward the root and returns the
// first explicit prefix found, or DefaultPrefix when nothing on the path
// has one. It is recomputed from the live tree on every call; nothing is
// cached, so an ancestor prefix change is visible immediately.
func (n *Node) EffectivePrefix() string {
	for x := n; x != nil; x = x.parent.Load() {
		x.mu.RLock()
		prefix := x.prefix
		x.mu.RUnlock()
		if prefix != "" {
			return prefix
		}
	}
	return DefaultPrefix
}

// AddContextCheck appends a predicate that must pass before commands under
// this registry may run. Checks combine by AND with every ancestor's
// checks.
func (n *Node) AddContextCheck(check Check) error {
	const op = "AddContextCheck"
	if n.placeholder {
		return errors.WrapState(errors.ErrPlaceholder, "registry", op, "add check to placeholder")
	}
	if check == nil {
		return errors.WrapInvalid(fmt.Errorf("check is nil"), "registry", op, "validate check")
	}
	n.mu.Lock()
	n.checks = append(n.checks, check)
	n.mu.Unlock()
	n.touch()
	return nil
}

// ContextCheck evaluates the node's predicates and every ancestor's, ANDed
// together, against inv. The chain is walked live on each call; no
// composed predicate is cached.
func (n *Node) ContextCheck(inv *command.Invocation) bool {
	for x := n; x != nil; x = x.parent.Load() {
		x.mu.RLock()
		checks := x.checks
		x.mu.RUnlock()
		for _, check := range checks {
			if !check(inv) {
				return false
			}
		}
	}
	return true
}
