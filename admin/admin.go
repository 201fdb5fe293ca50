package admin

import (
	"math"
	"strings"

	"github.com/c360/cmdtree/command"
	"github.com/c360/cmdtree/errors"
	"github.com/c360/cmdtree/registry"
)

// pinnedPriority ranks disable and enable ahead of any same-signature
// registration in the same registry. Lower values win ties.
const pinnedPriority = math.MinInt

// Commands builds one fresh administration set bound to dir. Commands
// track their owning registry, so every root needs its own instances.
func Commands(dir *registry.Directory) []command.Command {
	return []command.Command{
		NewDisable(dir),
		NewEnable(dir),
		NewPrefix(dir),
		NewHelp(dir),
		NewPing(),
	}
}

// Install registers a fresh administration set into root. A failing entry
// does not stop the rest; the returned error joins all failures.
func Install(dir *registry.Directory, root *registry.Node) error {
	if root == nil {
		return errors.WrapInvalid(errors.ErrNilRegistry, "admin", "Install", "validate root")
	}
	return root.RegisterAll(Commands(dir)...)
}

// pathString renders path arguments the way Node.Path renders node paths.
func pathString(parts []string) string {
	if len(parts) == 0 {
		return registry.PathSeparator
	}
	return registry.PathSeparator + strings.Join(parts, registry.PathSeparator)
}

// signaturePrefix returns the prefix under which cmd's aliases resolve.
func signaturePrefix(cmd command.Command) string {
	if p := cmd.Prefix(); p != "" {
		return p
	}
	if owner, ok := cmd.Owner().(*registry.Node); ok && owner != nil {
		return owner.EffectivePrefix()
	}
	return registry.DefaultPrefix
}

// effectivelyEnabled reports whether cmd would pass the enablement gate.
func effectivelyEnabled(cmd command.Command) bool {
	if !cmd.Enabled() {
		return false
	}
	if owner, ok := cmd.Owner().(*registry.Node); ok && owner != nil {
		return owner.EffectivelyEnabled()
	}
	return true
}
