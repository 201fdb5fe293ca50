package registry

import (
	"github.com/c360/cmdtree/command"
)

// bucket is the priority-ordered candidate set behind one signature or
// alias. Entries are kept sorted by ascending priority number; among equal
// priorities the earlier registration stays in front, so the tie-break is
// first-registered-wins and deterministic.
type bucket struct {
	entries []command.Command
}

// add inserts cmd behind every entry with the same or better priority.
func (b *bucket) add(cmd command.Command) {
	p := cmd.Priority()
	i := len(b.entries)
	for j, e := range b.entries {
		if e.Priority() > p {
			i = j
			break
		}
	}
	b.entries = append(b.entries, nil)
	copy(b.entries[i+1:], b.entries[i:])
	b.entries[i] = cmd
}

// remove drops cmd by identity and reports whether it was present.
func (b *bucket) remove(cmd command.Command) bool {
	for i, e := range b.entries {
		if e == cmd {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			return true
		}
	}
	return false
}

// peek returns the highest-precedence entry, or nil.
func (b *bucket) peek() command.Command {
	if len(b.entries) == 0 {
		return nil
	}
	return b.entries[0]
}

func (b *bucket) empty() bool { return len(b.entries) == 0 }

// addLocked inserts cmd into the node-local command map and whichever
// index its prefix selects: full signatures for an explicit prefix, bare
// aliases otherwise. Caller holds n.mu.
func (n *Node) addLocked(cmd command.Command) {
	n.commands[cmd.Name()] = cmd
	if prefix := cmd.Prefix(); prefix != "" {
		for _, alias := range cmd.Aliases() {
			signature := prefix + alias
			b := n.signatureIndex[signature]
			if b == nil {
				b = &bucket{}
				n.signatureIndex[signature] = b
			}
			b.add(cmd)
		}
	} else {
		for _, alias := range cmd.Aliases() {
			b := n.aliasIndex[alias]
			if b == nil {
				b = &bucket{}
				n.aliasIndex[alias] = b
			}
			b.add(cmd)
		}
	}
}

// removeLocked removes cmd from the node-local command map and indices,
// dropping emptied buckets. Caller holds n.mu.
func (n *Node) removeLocked(cmd command.Command) {
	delete(n.commands, cmd.Name())
	if prefix := cmd.Prefix(); prefix != "" {
		for _, alias := range cmd.Aliases() {
			signature := prefix + alias
			if b := n.signatureIndex[signature]; b != nil {
				b.remove(cmd)
				if b.empty() {
					delete(n.signatureIndex, signature)
				}
			}
		}
	} else {
		for _, alias := range cmd.Aliases() {
			if b := n.aliasIndex[alias]; b != nil {
				b.remove(cmd)
				if b.empty() {
					delete(n.aliasIndex, alias)
				}
			}
		}
	}
}
