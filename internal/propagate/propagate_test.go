package propagate

import (
	"context"
	"errors"
	"testing"

	"tagsync/internal/model"
	"tagsync/internal/model/modeltest"
	"tagsync/internal/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, m *modeltest.Memory, p *Propagator, targets []*model.Symbol, tagText string) *Result {
	t.Helper()
	var res *Result
	require.NoError(t, m.RunInWriteTransaction(context.Background(), "Update API message tag", func(tx model.Tx) error {
		res = p.Propagate(tx, targets, tagText)
		return nil
	}))
	return res
}

func actions(res *Result) []Action {
	out := make([]Action, 0, len(res.Entries))
	for _, e := range res.Entries {
		out = append(out, e.Action)
	}
	return out
}

func TestPropagate_AddsThenSkips(t *testing.T) {
	m := modeltest.New()
	svc := m.Interface("com.acme.bank.service.AccountService")
	impl := m.Class("com.acme.bank.service.impl.AccountServiceImpl", modeltest.Implements(svc))
	p := New(nil, nil)

	first := write(t, m, p, []*model.Symbol{svc, impl}, "ACC-Q-001 Get account")
	assert.Equal(t, 2, first.Count)
	assert.Equal(t, []Action{Added, Added}, actions(first))
	assert.Equal(t, "AccountService", first.Entries[0].Symbol)

	before := m.DocOf(impl)
	assert.Equal(t, "/**\n * ACC-Q-001 Get account\n */", before)

	second := write(t, m, p, []*model.Symbol{svc, impl}, "ACC-Q-001 Get account")
	assert.Zero(t, second.Count)
	assert.Equal(t, []Action{Skipped, Skipped}, actions(second))
	assert.Equal(t, DetailSameTag, second.Entries[1].Detail)
	assert.Equal(t, before, m.DocOf(impl))
}

func TestPropagate_ReplacesWholeBlock(t *testing.T) {
	m := modeltest.New()
	svc := m.Interface("com.acme.pay.service.PaymentService",
		modeltest.Doc("/**\n * PAY-A-001 old text\n * some free text\n */"))

	res := write(t, m, New(nil, nil), []*model.Symbol{svc}, "PAY-A-002 new text")
	require.Len(t, res.Entries, 1)
	assert.Equal(t, Updated, res.Entries[0].Action)
	assert.Equal(t, "was PAY-A-001 old text", res.Entries[0].Detail)
	assert.Equal(t, "/**\n * PAY-A-002 new text\n */", m.DocOf(svc))
}

func TestPropagate_MarksReplacementFromOtherFamily(t *testing.T) {
	m := modeltest.New()
	svc := m.Interface("com.acme.pay.service.PaymentService", modeltest.Doc("/** ACC-Q-001 Get account */"))

	res := write(t, m, New(nil, nil), []*model.Symbol{svc}, "PAY-A-002 Pay")
	require.Len(t, res.Entries, 1)
	assert.Equal(t, Updated, res.Entries[0].Action)
	assert.Equal(t, "was ACC-Q-001 Get account (other family)", res.Entries[0].Detail)
}

func TestPropagate_PlainDocIsUpdated(t *testing.T) {
	m := modeltest.New()
	svc := m.Interface("com.acme.pay.service.PaymentService", modeltest.Doc("/** Payments. */"))

	res := write(t, m, New(nil, nil), []*model.Symbol{svc}, "PAY-A-001 Pay")
	assert.Equal(t, []Action{Updated}, actions(res))
	assert.Empty(t, res.Entries[0].Detail)
}

func TestPropagate_PartialFailure(t *testing.T) {
	m := modeltest.New()
	a := m.Interface("com.acme.pay.service.PaymentService")
	b := m.Class("com.acme.pay.service.impl.PaymentServiceImpl")
	c := m.Class("com.acme.pay.service.impl.LegacyPaymentServiceImpl")
	m.FailWrites(b, model.ErrStaleSymbol)

	res := write(t, m, New(nil, nil), []*model.Symbol{a, b, c}, "PAY-A-001 Pay")

	assert.Equal(t, 2, res.Count)
	assert.Equal(t, []Action{Added, Failed, Added}, actions(res))
	require.Len(t, res.Failures(), 1)
	assert.Equal(t, "file changed since it was read", res.Failures()[0].Detail)
	assert.True(t, res.HasFailures())
	assert.Empty(t, m.DocOf(b))
}

func TestPropagate_UnknownAndDuplicateTargets(t *testing.T) {
	m := modeltest.New()
	svc := m.Interface("com.acme.pay.service.PaymentService")
	ghost := &model.Symbol{ID: "com.acme.Gone", Name: "Gone", Kind: model.KindType}

	res := write(t, m, New(nil, nil), []*model.Symbol{svc, ghost, svc}, "PAY-A-001 Pay")
	assert.Equal(t, []Action{Added, Failed}, actions(res))
	assert.Equal(t, 1, res.Count)
}

func TestTargets(t *testing.T) {
	m := modeltest.New()
	svc := m.Interface("com.acme.bank.service.AccountService")
	ctl := m.Class("com.acme.bank.controller.AccountController")
	get := m.Method(ctl, "getAccount")
	list := m.Method(ctl, "list")

	rs := &resolver.RelationSet{
		Types:  []*model.Symbol{svc},
		Groups: []resolver.Group{{Type: ctl, Methods: []*model.Symbol{get, list}}},
	}
	got := Targets(rs)
	require.Len(t, got, 3)
	assert.Equal(t, []string{svc.ID, get.ID, list.ID}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.Nil(t, Targets(nil))
}

func TestAuditEntry_String(t *testing.T) {
	assert.Equal(t, "Added: AccountService", AuditEntry{Symbol: "AccountService", Action: Added}.String())
	assert.Equal(t, "Failed: A.b (boom)", AuditEntry{Symbol: "A.b", Action: Failed, Detail: errors.New("boom").Error()}.String())
}
