package resolver

import (
	"context"
	"errors"
	"testing"

	"tagsync/internal/model"
	"tagsync/internal/model/modeltest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTier struct {
	name string
	fn   func(v model.View, iface *model.Symbol) ([]*model.Symbol, error)
}

func (f fakeTier) Name() string { return f.name }
func (f fakeTier) Find(v model.View, iface *model.Symbol) ([]*model.Symbol, error) {
	return f.fn(v, iface)
}

func runChain(t *testing.T, m *modeltest.Memory, c *ImplementationChain, iface *model.Symbol) ([]*model.Symbol, []TierResult) {
	t.Helper()
	var found []*model.Symbol
	var results []TierResult
	require.NoError(t, m.RunInReadScope(context.Background(), func(v model.View) error {
		found, results = c.Run(v, iface)
		return nil
	}))
	return found, results
}

func TestImplementationChain_Run(t *testing.T) {
	m := modeltest.New()
	iface := m.Interface("com.acme.pay.service.PaymentService")
	impl := m.Class("com.acme.pay.service.impl.PaymentServiceImpl", modeltest.Implements(iface))
	stranger := m.Class("com.acme.pay.service.impl.RefundServiceImpl")

	var calls []string
	tier := func(name string, out ...*model.Symbol) Tier {
		return fakeTier{name: name, fn: func(model.View, *model.Symbol) ([]*model.Symbol, error) {
			calls = append(calls, name)
			return out, nil
		}}
	}

	chain := NewImplementationChain(nil,
		tier("empty"),
		tier("wrong", stranger, iface),
		tier("right", impl, impl),
		tier("never", impl),
	)
	found, results := runChain(t, m, chain, iface)

	assert.Equal(t, []string{impl.ID}, modeltest.IDs(found))
	assert.Equal(t, []string{"empty", "wrong", "right"}, calls)
	require.Len(t, results, 3)
	assert.Equal(t, []string{stranger.QualifiedName, iface.QualifiedName}, results[1].Rejected)
	assert.Equal(t, 2, results[2].Candidates)
	assert.Equal(t, 1, results[2].Accepted)
}

func TestImplementationChain_TierFailures(t *testing.T) {
	m := modeltest.New()
	iface := m.Interface("com.acme.pay.service.PaymentService")
	impl := m.Class("com.acme.pay.service.impl.PaymentServiceImpl", modeltest.Unindexed(), modeltest.Implements(iface))

	chain := NewImplementationChain(nil,
		fakeTier{name: "panics", fn: func(model.View, *model.Symbol) ([]*model.Symbol, error) {
			panic("index corrupted")
		}},
		fakeTier{name: "errors", fn: func(model.View, *model.Symbol) ([]*model.Symbol, error) {
			return nil, errors.New("timeout")
		}},
		namingTier{suffix: "Impl"},
	)
	found, results := runChain(t, m, chain, iface)

	assert.Equal(t, []string{impl.ID}, modeltest.IDs(found))
	require.Len(t, results, 3)
	assert.ErrorContains(t, results[0].Err, "panicked")
	assert.EqualError(t, results[1].Err, "timeout")
	assert.NoError(t, results[2].Err)
}

func TestImplementationChain_NonInterface(t *testing.T) {
	m := modeltest.New()
	class := m.Class("com.acme.pay.service.PaymentService")
	found, results := runChain(t, m, NewImplementationChain(nil, DefaultTiers("")...), class)
	assert.Nil(t, found)
	assert.Nil(t, results)
}

func TestPackageTier(t *testing.T) {
	m := modeltest.New()
	iface := m.Interface("com.acme.pay.service.PaymentService")
	nested := m.Class("com.acme.pay.service.impl.PaymentServiceImpl")
	flat := m.Class("com.acme.pay.service.PaymentServiceImpl")

	var got []*model.Symbol
	require.NoError(t, m.RunInReadScope(context.Background(), func(v model.View) error {
		var err error
		got, err = packageTier{suffix: "Impl"}.Find(v, iface)
		return err
	}))
	require.Len(t, got, 2)
	assert.Equal(t, nested.ID, got[0].ID)
	assert.Equal(t, flat.ID, got[1].ID)
}
