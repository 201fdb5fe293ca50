package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/c360/cmdtree/command"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestConcurrent_SubRegistrySameName(t *testing.T) {
	root := mustNode(t, "root")

	const workers = 16
	nodes := make([]*Node, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := root.SubRegistry("shared")
			assert.NoError(t, err)
			nodes[i] = n
		}()
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		assert.Same(t, nodes[0], nodes[i], "every caller must get the same child")
	}
}

func TestConcurrent_DirectoryRegistry(t *testing.T) {
	d := NewDirectory()

	const workers = 16
	roots := make([]*Node, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			roots[i] = d.Registry("bot-a")
		}()
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		assert.Same(t, roots[0], roots[i])
	}
	assert.Equal(t, 1, d.Len())
}

func TestConcurrent_ResolveDuringMutation(t *testing.T) {
	root := mustNode(t, "root")
	stable := mustSub(t, root, "stable")
	require.NoError(t, root.RegisterCommand(testCommand(t, "ping")))
	require.NoError(t, stable.RegisterCommand(testCommand(t, "deep")))

	const (
		readers  = 4
		mutators = 4
		rounds   = 200
	)
	errCh := make(chan error, mutators*rounds*2)
	var wg sync.WaitGroup

	for range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range rounds {
				root.Resolve("?ping")
				root.Resolve("?deep")
				root.Resolve("?nothing")
				root.Commands()
				root.Command("deep")
				stable.EffectivePrefix()
				stable.EffectivelyEnabled()
			}
		}()
	}

	for id := range mutators {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range rounds {
				name := fmt.Sprintf("churn-%d-%d", id, i)
				if _, err := root.SubRegistry(name); err != nil {
					errCh <- err
					continue
				}
				if err := root.RemoveSubRegistryFull(name); err != nil {
					errCh <- err
				}

				cmd := command.NewBuilder(fmt.Sprintf("tmp-%d-%d", id, i)).
					Handler(nopHandler).
					MustBuild()
				if err := stable.RegisterCommand(cmd); err != nil {
					errCh <- err
					continue
				}
				if err := stable.UnregisterCommand(cmd); err != nil {
					errCh <- err
				}

				if err := stable.SetEnabled(i%2 == 0); err != nil {
					errCh <- err
				}
			}
		}()
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	// The storm leaves the seeded state intact.
	_, ok := root.Resolve("?ping")
	assert.True(t, ok)
	_, ok = root.Resolve("?deep")
	assert.True(t, ok)
	assert.Len(t, root.Commands(), 2)
	assert.Equal(t, []*Node{stable}, root.SubRegistries())
}

func TestConcurrent_TransferEndsInOnePlace(t *testing.T) {
	root := mustNode(t, "root")
	a := mustSub(t, root, "a")
	b := mustSub(t, root, "b")
	cmd := testCommand(t, "mover")
	require.NoError(t, a.RegisterCommand(cmd))

	var wg sync.WaitGroup
	errCh := make(chan error, 200)
	for i := range 2 {
		target := a
		if i == 1 {
			target = b
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				if err := target.RegisterCommand(cmd); err != nil {
					errCh <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	atA := a.RegisteredCommand("mover")
	atB := b.RegisteredCommand("mover")
	assert.True(t, (atA == nil) != (atB == nil), "the record must live in exactly one registry")
	owner := cmd.Owner()
	require.NotNil(t, owner)
	if atA != nil {
		assert.Same(t, a, owner)
	} else {
		assert.Same(t, b, owner)
	}
}
