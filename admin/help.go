package admin

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/c360/cmdtree/command"
	"github.com/c360/cmdtree/registry"
)

// NewHelp builds the help command. Without arguments it lists every
// signature that currently resolves, one line per command; the listing is
// cached and rebuilt only when the root's LastChanged moves. With an
// argument it details the named command.
func NewHelp(dir *registry.Directory) command.Command {
	h := &helpCache{dir: dir}
	return command.NewBuilder("help").
		Description("Lists available commands, or details one command.").
		Usage("{}help [command name]").
		Handler(h.run).
		MustBuild()
}

// helpCache holds the rendered listing for one root between tree changes.
type helpCache struct {
	dir *registry.Directory

	mu      sync.Mutex
	builtAt time.Time
	listing string
}

func (h *helpCache) run(ctx context.Context, inv *command.Invocation) error {
	root := h.dir.Registry(inv.Client)
	if len(inv.Args) > 0 {
		return inv.Reply(ctx, detail(root, inv.Args[0]))
	}
	return inv.Reply(ctx, h.render(root))
}

// render returns the cached listing, rebuilding when the tree changed.
// builtAt records the LastChanged value read before the rebuild, so a
// mutation landing mid-build forces another rebuild on the next call.
func (h *helpCache) render(root *registry.Node) string {
	changed := root.LastChanged()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listing == "" || changed.After(h.builtAt) {
		h.listing = buildListing(root)
		h.builtAt = changed
	}
	return h.listing
}

// buildListing renders one line per command reachable from root, sorted by
// name. A signature appears only when resolution actually returns that
// command, so shadowed entries stay hidden.
func buildListing(root *registry.Node) string {
	var b strings.Builder
	b.WriteString("Available commands:")
	for _, cmd := range root.Commands() {
		sigs := resolvableSignatures(root, cmd)
		if len(sigs) == 0 {
			continue
		}
		b.WriteString("\n`")
		b.WriteString(strings.Join(sigs, "`, `"))
		b.WriteString("`")
		if desc := cmd.Description(); desc != "" {
			b.WriteString(" - ")
			b.WriteString(firstLine(desc))
		}
		if !effectivelyEnabled(cmd) {
			b.WriteString(" (disabled)")
		}
	}
	return b.String()
}

// detail renders one command's full help, with "{}" in the usage replaced
// by the prefix the command currently answers to.
func detail(root *registry.Node, name string) string {
	cmd := root.Command(name)
	if cmd == nil {
		return fmt.Sprintf("Command `%s` not found!", name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Command `%s`", cmd.Name())
	if sigs := resolvableSignatures(root, cmd); len(sigs) > 0 {
		fmt.Fprintf(&b, "\nSignatures: `%s`", strings.Join(sigs, "`, `"))
	}
	if usage := cmd.Usage(); usage != "" {
		fmt.Fprintf(&b, "\nUsage: %s", strings.ReplaceAll(usage, "{}", signaturePrefix(cmd)))
	}
	if desc := cmd.Description(); desc != "" {
		fmt.Fprintf(&b, "\n%s", desc)
	}
	if subs := cmd.SubCommands(); len(subs) > 0 {
		names := make([]string, 0, len(subs))
		for _, sub := range subs {
			names = append(names, strings.Join(sub.Aliases(), "|"))
		}
		fmt.Fprintf(&b, "\nSub-commands: %s", strings.Join(names, ", "))
	}
	if !effectivelyEnabled(cmd) {
		b.WriteString("\nCurrently disabled.")
	}
	return b.String()
}

// resolvableSignatures returns the signatures of cmd that resolve back to
// cmd from root.
func resolvableSignatures(root *registry.Node, cmd command.Command) []string {
	prefix := signaturePrefix(cmd)
	var sigs []string
	for _, alias := range cmd.Aliases() {
		sig := prefix + alias
		if got, ok := root.Resolve(sig); ok && got == cmd {
			sigs = append(sigs, sig)
		}
	}
	return sigs
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
