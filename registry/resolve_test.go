package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/cmdtree/command"
)

func TestResolve_BareAlias(t *testing.T) {
	root := mustNode(t, "root")
	cmd := testCommand(t, "ping", "ping", "p")
	require.NoError(t, root.RegisterCommand(cmd))

	for _, signature := range []string{"?ping", "?p"} {
		got, ok := root.Resolve(signature)
		require.True(t, ok, "signature %q", signature)
		assert.Same(t, cmd, got)
	}

	_, ok := root.Resolve("ping")
	assert.False(t, ok, "bare aliases answer only with the prefix")
	_, ok = root.Resolve("?pong")
	assert.False(t, ok)
	_, ok = root.Resolve("")
	assert.False(t, ok)
}

func TestResolve_ExplicitPrefix(t *testing.T) {
	root := mustNode(t, "root")
	cmd, err := command.NewBuilder("deploy").
		Prefix("!").
		Handler(nopHandler).
		Build()
	require.NoError(t, err)
	require.NoError(t, root.RegisterCommand(cmd))

	got, ok := root.Resolve("!deploy")
	require.True(t, ok)
	assert.Same(t, cmd, got)

	// The explicit prefix pins the signature: the registry prefix does not
	// apply, before or after it changes.
	_, ok = root.Resolve("?deploy")
	assert.False(t, ok)
	require.NoError(t, root.SetPrefix("$"))
	got, ok = root.Resolve("!deploy")
	require.True(t, ok)
	assert.Same(t, cmd, got)
	_, ok = root.Resolve("$deploy")
	assert.False(t, ok)
}

func TestResolve_LivePrefix(t *testing.T) {
	root := mustNode(t, "root")
	require.NoError(t, root.RegisterCommand(testCommand(t, "ping")))

	_, ok := root.Resolve("?ping")
	require.True(t, ok)

	// A prefix change applies to the next resolution, no re-registration.
	require.NoError(t, root.SetPrefix("!"))
	_, ok = root.Resolve("!ping")
	assert.True(t, ok)
	_, ok = root.Resolve("?ping")
	assert.False(t, ok, "the old prefix must stop matching")
}

func TestResolve_MidTreePrefix(t *testing.T) {
	root := mustNode(t, "root")
	a := mustSub(t, root, "a")
	cmd := testCommand(t, "ping")
	require.NoError(t, a.RegisterCommand(cmd))

	_, ok := root.Resolve("?ping")
	require.True(t, ok, "inherited default prefix")

	require.NoError(t, a.SetPrefix("$"))
	got, ok := root.Resolve("$ping")
	require.True(t, ok, "the owning node's effective prefix decides")
	assert.Same(t, cmd, got)
	_, ok = root.Resolve("?ping")
	assert.False(t, ok)
}

func TestResolve_PriorityWithinNode(t *testing.T) {
	root := mustNode(t, "root")
	low := prioCommand(t, "low", 5, "x")
	high := prioCommand(t, "high", 1, "x")
	require.NoError(t, root.RegisterCommand(low))
	require.NoError(t, root.RegisterCommand(high))

	got, ok := root.Resolve("?x")
	require.True(t, ok)
	assert.Same(t, high, got, "lower priority value wins within a node")
}

func TestResolve_PriorityTieFirstRegistered(t *testing.T) {
	root := mustNode(t, "root")
	first := prioCommand(t, "first", 3, "x")
	second := prioCommand(t, "second", 3, "x")
	require.NoError(t, root.RegisterCommand(first))
	require.NoError(t, root.RegisterCommand(second))

	got, ok := root.Resolve("?x")
	require.True(t, ok)
	assert.Same(t, first, got, "equal priorities keep registration order")
}

func TestResolve_AliasBeatsExplicitOnlyWhenStrictlyBetter(t *testing.T) {
	root := mustNode(t, "root", WithPrefix("!"))

	explicit, err := command.NewBuilder("explicit").
		Aliases("x").
		Prefix("!").
		Priority(5).
		Handler(nopHandler).
		Build()
	require.NoError(t, err)
	require.NoError(t, root.RegisterCommand(explicit))

	bareBetter, err := command.NewBuilder("bare-better").
		Aliases("x").
		Priority(3).
		Handler(nopHandler).
		Build()
	require.NoError(t, err)
	require.NoError(t, root.RegisterCommand(bareBetter))

	got, ok := root.Resolve("!x")
	require.True(t, ok)
	assert.Same(t, bareBetter, got, "strictly better alias match replaces the verbatim one")

	require.NoError(t, root.UnregisterCommand(bareBetter))
	bareEqual, err := command.NewBuilder("bare-equal").
		Aliases("x").
		Priority(5).
		Handler(nopHandler).
		Build()
	require.NoError(t, err)
	require.NoError(t, root.RegisterCommand(bareEqual))

	got, ok = root.Resolve("!x")
	require.True(t, ok)
	assert.Same(t, explicit, got, "an equal-priority alias match must not replace the verbatim one")
}

func TestResolve_DescendantPrecedence(t *testing.T) {
	root := mustNode(t, "root")
	child := mustSub(t, root, "child")

	parentCmd := prioCommand(t, "parent-cmd", 0, "x")
	childCmd := prioCommand(t, "child-cmd", 9, "x")
	require.NoError(t, root.RegisterCommand(parentCmd))
	require.NoError(t, child.RegisterCommand(childCmd))

	got, ok := root.Resolve("?x")
	require.True(t, ok)
	assert.Same(t, childCmd, got, "a descendant match beats the local one whatever the priorities")

	// Resolution started at the child never sees the parent's command.
	got, ok = child.Resolve("?x")
	require.True(t, ok)
	assert.Same(t, childCmd, got)
}

func TestResolve_NonOverrideableBlocksSubtree(t *testing.T) {
	root := mustNode(t, "root")
	child := mustSub(t, root, "child")

	blocker, err := command.NewBuilder("blocker").
		Aliases("x").
		Priority(9).
		NotOverrideable().
		Handler(nopHandler).
		Build()
	require.NoError(t, err)
	require.NoError(t, root.RegisterCommand(blocker))
	require.NoError(t, child.RegisterCommand(prioCommand(t, "shadowed", 0, "x")))

	got, ok := root.Resolve("?x")
	require.True(t, ok)
	assert.Same(t, blocker, got, "a non-overrideable match pre-empts everything beneath its owner")

	// Other signatures are not affected by the blocker.
	require.NoError(t, child.RegisterCommand(testCommand(t, "other")))
	got, ok = root.Resolve("?other")
	require.True(t, ok)
	assert.Equal(t, "other", got.Name())
}

func TestResolve_SiblingPriorityAndOrder(t *testing.T) {
	root := mustNode(t, "root")
	alpha := mustSub(t, root, "alpha")
	beta := mustSub(t, root, "beta")

	t.Run("best priority among siblings", func(t *testing.T) {
		a := prioCommand(t, "a-cmd", 5, "x")
		b := prioCommand(t, "b-cmd", 1, "x")
		require.NoError(t, alpha.RegisterCommand(a))
		require.NoError(t, beta.RegisterCommand(b))

		got, ok := root.Resolve("?x")
		require.True(t, ok)
		assert.Same(t, b, got)

		require.NoError(t, alpha.UnregisterCommand(a))
		require.NoError(t, beta.UnregisterCommand(b))
	})

	t.Run("name order breaks ties", func(t *testing.T) {
		a := prioCommand(t, "a-cmd", 2, "x")
		b := prioCommand(t, "b-cmd", 2, "x")
		require.NoError(t, beta.RegisterCommand(b))
		require.NoError(t, alpha.RegisterCommand(a))

		got, ok := root.Resolve("?x")
		require.True(t, ok)
		assert.Same(t, a, got, "children are searched in name order")
	})
}

func TestResolve_ThroughPlaceholder(t *testing.T) {
	root := mustNode(t, "root")
	ph := mustPlaceholder(t, root, "ghost")
	held := mustSub(t, ph, "held")
	cmd := testCommand(t, "hidden")
	require.NoError(t, held.RegisterCommand(cmd))

	got, ok := root.Resolve("?hidden")
	require.True(t, ok, "resolution descends through placeholders")
	assert.Same(t, cmd, got)
}

func TestResolve_IgnoresGates(t *testing.T) {
	root := mustNode(t, "root")
	a := mustSub(t, root, "a")
	cmd := testCommand(t, "ping")
	require.NoError(t, a.RegisterCommand(cmd))

	require.NoError(t, a.SetEnabled(false))
	require.NoError(t, cmd.SetEnabled(false))
	require.NoError(t, root.AddContextCheck(func(*command.Invocation) bool { return false }))

	got, ok := root.Resolve("?ping")
	require.True(t, ok, "resolution reports what matched, not what may run")
	assert.Same(t, cmd, got)
	assert.False(t, got.Enabled())
	assert.False(t, a.EffectivelyEnabled())
}

func TestResolve_EmptyTree(t *testing.T) {
	root := mustNode(t, "root")
	_, ok := root.Resolve("?anything")
	assert.False(t, ok)
}
