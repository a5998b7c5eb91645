package inspect

import (
	"context"
	"testing"

	"tagsync/internal/layer"
	"tagsync/internal/model"
	"tagsync/internal/model/modeltest"
	"tagsync/internal/syncer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	m          *modeltest.Memory
	controller *model.Symbol
	getAccount *model.Symbol
	close      *model.Symbol
	health     *model.Symbol
	service    *model.Symbol
	impl       *model.Symbol
}

func newFixture() *fixture {
	m := modeltest.New()
	f := &fixture{m: m}
	f.service = m.Interface("com.acme.bank.service.AccountService")
	fetch := m.Method(f.service, "fetch", modeltest.Params("Long"))
	f.impl = m.Class("com.acme.bank.service.impl.AccountServiceImpl", modeltest.Implements(f.service))
	m.Method(f.impl, "fetch", modeltest.Params("Long"))

	f.controller = m.Class("com.acme.bank.controller.AccountController")
	field := m.Field(f.controller, "accountService", f.service)
	f.getAccount = m.Method(f.controller, "getAccount", modeltest.Params("Long"),
		modeltest.Mapping("GetMapping"), modeltest.MethodDoc("/** ACC-Q-001 Get account */"))
	m.Call(f.getAccount, field, fetch)
	// tagged too, but sorts after getAccount
	f.close = m.Method(f.controller, "postClose", modeltest.Params("Long"),
		modeltest.Mapping("PostMapping"), modeltest.MethodDoc("/** ACC-C-009 Close */"))
	m.Call(f.close, field, fetch)
	f.health = m.Method(f.controller, "health", modeltest.Mapping("GetMapping"))
	m.Method(f.controller, "helper")
	return f
}

type recordingSync struct{ reqs []syncer.Request }

func (r *recordingSync) Sync(_ context.Context, req syncer.Request) (*syncer.Report, error) {
	r.reqs = append(r.reqs, req)
	return &syncer.Report{Status: syncer.StatusSynced}, nil
}

func newInspector(f *fixture, s syncer.TagPropagationService) *Inspector {
	return New(f.m, layer.NewClassifier(layer.DefaultRules()), nil, Options{}, s, nil)
}

func byKind(ds []Diagnostic) map[Kind][]string {
	out := make(map[Kind][]string)
	for _, d := range ds {
		out[d.Kind] = append(out[d.Kind], d.Symbol)
	}
	return out
}

func TestCheck(t *testing.T) {
	f := newFixture()
	ds, err := newInspector(f, nil).Check(context.Background(), nil)
	require.NoError(t, err)

	got := byKind(ds)
	assert.Equal(t, []string{f.health.ID}, got[MissingEntryTag])
	assert.ElementsMatch(t, []string{f.service.ID, f.impl.ID}, got[UnlinkedService])

	for _, d := range ds {
		if d.Kind == UnlinkedService {
			assert.Equal(t, "ACC-Q-001 Get account", d.SuggestedTag)
			assert.Equal(t, f.getAccount.ID, d.FixSeed)
			assert.Contains(t, d.Message, "used by 2 tagged entry method(s)")
		}
	}
}

func TestCheck_TaggedServiceAndScope(t *testing.T) {
	f := newFixture()
	f.service.Doc = "/** ACC-Q-001 Get account */"

	ds, err := newInspector(f, nil).Check(context.Background(), []string{f.service.ID, f.impl.ID, "com.acme.Missing"})
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, f.impl.ID, ds[0].Symbol)
}

func TestCheck_AnnotationCountsAsTag(t *testing.T) {
	f := newFixture()
	f.health.Annotations = append(f.health.Annotations,
		model.Annotation{Name: "ApiMsgId", QualifiedName: "ApiMsgId", Value: "ACC-H-001 Health"})

	ds, err := newInspector(f, nil).Check(context.Background(), []string{f.controller.ID})
	require.NoError(t, err)
	assert.Empty(t, ds)
}

func TestFix(t *testing.T) {
	f := newFixture()
	rec := &recordingSync{}
	in := newInspector(f, rec)
	ds, err := in.Check(context.Background(), nil)
	require.NoError(t, err)

	for _, d := range ds {
		_, err := in.Fix(context.Background(), d)
		require.NoError(t, err)
	}

	anns := f.m.AnnotationsOf(f.health)
	require.NotEmpty(t, anns)
	last := anns[len(anns)-1]
	assert.Equal(t, "ApiMsgId", last.Name)
	assert.Equal(t, "MSG_ID_HERE", last.Value)

	require.Len(t, rec.reqs, 2)
	assert.Equal(t, f.getAccount.ID, rec.reqs[0].Symbol)

	_, err = newInspector(f, nil).Fix(context.Background(), Diagnostic{Kind: UnlinkedService})
	assert.Error(t, err)
	_, err = in.Fix(context.Background(), Diagnostic{Kind: "bogus"})
	assert.Error(t, err)
}

func TestFix_PlaceholderIsAddedOnce(t *testing.T) {
	f := newFixture()
	in := newInspector(f, nil)
	d := Diagnostic{Kind: MissingEntryTag, Symbol: f.health.ID, Label: f.health.Describe()}

	for range 2 {
		_, err := in.Fix(context.Background(), d)
		require.NoError(t, err)
	}
	count := 0
	for _, a := range f.m.AnnotationsOf(f.health) {
		if a.Name == "ApiMsgId" {
			count++
		}
	}
	assert.Equal(t, 1, count)

	// the placeholder is not a tag, so the method is reported again but
	// under a kind that the quick fix leaves alone
	ds, err := in.Check(context.Background(), []string{f.controller.ID})
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, PlaceholderTag, ds[0].Kind)
	assert.Equal(t, f.health.ID, ds[0].Symbol)

	_, err = in.Fix(context.Background(), ds[0])
	assert.ErrorIs(t, err, ErrNoQuickFix)
	assert.Len(t, f.m.AnnotationsOf(f.health), 2, "GetMapping and ApiMsgId only")
}
