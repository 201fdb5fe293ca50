package registry

import (
	stderrors "errors"
	"fmt"
	"slices"
	"strings"

	"github.com/c360/cmdtree/command"
	"github.com/c360/cmdtree/errors"
)

// RegisterCommand registers cmd into this node. The command's name must be
// unique across the whole tree of this node's root, placeholders included;
// on failure nothing changes and any previous ownership is kept. A command
// owned by another registry is transferred inside one critical section, so
// it is never observable as registered twice or not at all. Sub-command
// records are rejected.
func (n *Node) RegisterCommand(cmd command.Command) error {
	const op = "RegisterCommand"
	if cmd == nil {
		return errors.WrapInvalid(errors.ErrNilCommand, "registry", op, "validate command")
	}
	if n.placeholder {
		return errors.WrapState(errors.ErrPlaceholder, "registry", op,
			fmt.Sprintf("register %q", cmd.Name()))
	}
	if cmd.SubCommand() {
		n.metrics.recordRegistration("sub_command")
		return errors.WrapConflict(errors.ErrSubCommand, "registry", op,
			fmt.Sprintf("register %q", cmd.Name()))
	}
	name := cmd.Name()
	if name == "" {
		return errors.WrapInvalid(errors.ErrEmptyName, "registry", op, "validate command name")
	}

	structuralMu.Lock()
	defer structuralMu.Unlock()

	if existing := n.Root().Command(name); existing != nil && existing != cmd {
		n.metrics.recordRegistration("duplicate_name")
		n.logger.Warn("command name collision", "name", name, "path", n.Path())
		return errors.WrapConflict(errors.ErrDuplicateName, "registry", op,
			fmt.Sprintf("register %q at %s", name, n.Path()))
	}

	prev, _ := cmd.Owner().(*Node)
	if prev == n {
		n.mu.RLock()
		already := n.commands[name] == cmd
		n.mu.RUnlock()
		if already {
			return nil
		}
	}

	if prev != nil && prev != n {
		prev.mu.Lock()
		n.mu.Lock()
		prev.removeLocked(cmd)
		n.addLocked(cmd)
		n.mu.Unlock()
		prev.mu.Unlock()
		prev.touch()
	} else {
		n.mu.Lock()
		n.addLocked(cmd)
		n.mu.Unlock()
	}
	cmd.SetOwner(n)

	n.touch()
	if prev == nil {
		n.metrics.addCommands(1)
	}
	n.metrics.recordRegistration("ok")
	n.logger.Debug("command registered", "name", name, "path", n.Path())
	return nil
}

// UnregisterCommand removes cmd from this node. The exact command value
// must be registered here; a name match alone does not qualify.
func (n *Node) UnregisterCommand(cmd command.Command) error {
	const op = "UnregisterCommand"
	if cmd == nil {
		return errors.WrapInvalid(errors.ErrNilCommand, "registry", op, "validate command")
	}

	structuralMu.Lock()
	defer structuralMu.Unlock()

	n.mu.Lock()
	if n.commands[cmd.Name()] != cmd {
		n.mu.Unlock()
		return errors.WrapInvalid(errors.ErrNotRegistered, "registry", op,
			fmt.Sprintf("unregister %q from %s", cmd.Name(), n.Path()))
	}
	n.removeLocked(cmd)
	n.mu.Unlock()
	cmd.SetOwner(nil)

	n.touch()
	n.metrics.addCommands(-1)
	n.logger.Debug("command unregistered", "name", cmd.Name(), "path", n.Path())
	return nil
}

// RegisterAll registers each command independently. A failing entry is
// skipped without aborting or rolling back the others; the returned error
// joins every per-command failure.
func (n *Node) RegisterAll(cmds ...command.Command) error {
	var errs []error
	for _, cmd := range cmds {
		if err := n.RegisterCommand(cmd); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Clear unregisters every command registered directly on this node.
// Commands in sub-registries are untouched.
func (n *Node) Clear() {
	structuralMu.Lock()
	defer structuralMu.Unlock()

	n.mu.Lock()
	if len(n.commands) == 0 {
		n.mu.Unlock()
		return
	}
	removed := make([]command.Command, 0, len(n.commands))
	for _, c := range n.commands {
		removed = append(removed, c)
	}
	n.commands = make(map[string]command.Command)
	n.signatureIndex = make(map[string]*bucket)
	n.aliasIndex = make(map[string]*bucket)
	n.mu.Unlock()

	for _, c := range removed {
		c.SetOwner(nil)
	}
	n.touch()
	n.metrics.addCommands(-len(removed))
	n.logger.Debug("registry cleared", "path", n.Path(), "commands", len(removed))
}

// RegisteredCommand returns the command registered directly on this node
// under name, or nil.
func (n *Node) RegisteredCommand(name string) command.Command {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.commands[name]
}

// RegisteredCommands returns the commands registered directly on this
// node, sorted by name.
func (n *Node) RegisteredCommands() []command.Command {
	n.mu.RLock()
	cmds := make([]command.Command, 0, len(n.commands))
	for _, c := range n.commands {
		cmds = append(cmds, c)
	}
	n.mu.RUnlock()
	slices.SortFunc(cmds, compareCommands)
	return cmds
}

// Command finds the command named name anywhere in the subtree, descending
// through placeholders, or returns nil. Name uniqueness within a tree
// makes the result unambiguous.
func (n *Node) Command(name string) command.Command {
	n.mu.RLock()
	if c, ok := n.commands[name]; ok {
		n.mu.RUnlock()
		return c
	}
	kids := n.childSnapshotLocked()
	n.mu.RUnlock()
	for _, k := range kids {
		if c := k.Command(name); c != nil {
			return c
		}
	}
	return nil
}

// Commands collects every command in the subtree, descending through
// placeholders, sorted by name.
func (n *Node) Commands() []command.Command {
	var out []command.Command
	n.collectCommands(&out)
	slices.SortFunc(out, compareCommands)
	return out
}

func (n *Node) collectCommands(out *[]command.Command) {
	n.mu.RLock()
	for _, c := range n.commands {
		*out = append(*out, c)
	}
	kids := n.childSnapshotLocked()
	n.mu.RUnlock()
	for _, k := range kids {
		k.collectCommands(out)
	}
}

func compareCommands(a, b command.Command) int { return strings.Compare(a.Name(), b.Name()) }
