package registry

import (
	"strings"

	"github.com/c360/cmdtree/command"
)

// Resolve maps a raw signature, prefix included, to a command. The search
// starts at this node and descends the whole subtree, placeholders too:
//
//  1. The signature verbatim against commands registered here with an
//     explicit prefix.
//  2. When the signature starts with this node's effective prefix, the
//     remainder against the bare aliases registered here. The alias match
//     replaces the verbatim one only at a strictly better priority.
//  3. A non-overrideable local match wins outright and the subtree below
//     is not consulted.
//  4. Otherwise every child is searched and the best-priority descendant
//     match is kept, children in name order before placeholders in name
//     order, first match winning a priority tie.
//  5. Any descendant match beats an overrideable local one, whatever the
//     priorities.
//
// The effective prefix is read live at each node, so a prefix change
// applies to the next call without re-registration. Resolution ignores
// enablement and context gates; callers gate the returned command
// themselves, which keeps "unknown signature" distinguishable from
// "known but unavailable".
func (n *Node) Resolve(signature string) (command.Command, bool) {
	if signature == "" {
		return nil, false
	}
	cmd := n.resolve(signature)
	return cmd, cmd != nil
}

func (n *Node) resolve(signature string) command.Command {
	candidate := n.lookupSignature(signature)

	if alias, ok := strings.CutPrefix(signature, n.EffectivePrefix()); ok {
		if alt := n.lookupAlias(alias); alt != nil {
			if candidate == nil || alt.Priority() < candidate.Priority() {
				candidate = alt
			}
		}
	}

	if candidate != nil && !candidate.Overrideable() {
		return candidate
	}

	var best command.Command
	for _, child := range n.childSnapshot() {
		match := child.resolve(signature)
		if match == nil {
			continue
		}
		if best == nil || match.Priority() < best.Priority() {
			best = match
		}
	}
	if best != nil {
		return best
	}
	return candidate
}

func (n *Node) lookupSignature(signature string) command.Command {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if b := n.signatureIndex[signature]; b != nil {
		return b.peek()
	}
	return nil
}

func (n *Node) lookupAlias(alias string) command.Command {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if b := n.aliasIndex[alias]; b != nil {
		return b.peek()
	}
	return nil
}
