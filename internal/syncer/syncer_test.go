package syncer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"tagsync/internal/layer"
	"tagsync/internal/model"
	"tagsync/internal/model/modeltest"
	"tagsync/internal/resolver"
	"tagsync/internal/storage"
	"tagsync/internal/tag"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const accTag = "ACC-Q-001 Get account"

type bank struct {
	m          *modeltest.Memory
	controller *model.Symbol
	getAccount *model.Symbol
	health     *model.Symbol
	service    *model.Symbol
	impl       *model.Symbol
}

func newBank(getAccountDoc string) *bank {
	m := modeltest.New()
	b := &bank{m: m}
	b.service = m.Interface("com.acme.bank.service.AccountService")
	fetch := m.Method(b.service, "fetch", modeltest.Params("Long"))
	b.impl = m.Class("com.acme.bank.service.impl.AccountServiceImpl", modeltest.Implements(b.service))
	m.Method(b.impl, "fetch", modeltest.Params("Long"))

	b.controller = m.Class("com.acme.bank.controller.AccountController")
	field := m.Field(b.controller, "accountService", b.service)
	b.getAccount = m.Method(b.controller, "getAccount",
		modeltest.Params("Long"), modeltest.Mapping("GetMapping"), modeltest.MethodDoc(getAccountDoc))
	m.Call(b.getAccount, field, fetch)
	b.health = m.Method(b.controller, "health", modeltest.Mapping("GetMapping"),
		modeltest.MethodDoc("/**\n * ACC-H-001 Health\n */"))
	return b
}

func newService(h model.Host, opts ...Option) *Service {
	r := resolver.New(layer.NewClassifier(layer.DefaultRules()), resolver.DefaultOptions(), nil)
	return New(h, r, tag.Default(), opts...)
}

func entryActions(rep *Report) []string {
	out := make([]string, 0, len(rep.Entries))
	for _, e := range rep.Entries {
		out = append(out, string(e.Action)+" "+e.Symbol)
	}
	return out
}

type fakePrompter struct {
	answer string
	ok     bool
	err    error
	asked  int
}

func (f *fakePrompter) PromptString(string, string) (string, bool, error) {
	f.asked++
	return f.answer, f.ok, f.err
}

type fakeLocator struct{ sym *model.Symbol }

func (f fakeLocator) FindSymbol(string) (*model.Symbol, error)     { return f.sym, nil }
func (f fakeLocator) SymbolAt(string, int) (*model.Symbol, error) { return f.sym, nil }

type fakeRestorer struct {
	images []model.FileChange
	err    error
}

func (f *fakeRestorer) Restore(_ context.Context, images []model.FileChange) error {
	f.images = images
	return f.err
}

// hostOnly hides the Journal methods of the in-memory model.
type hostOnly struct{ model.Host }

func TestSync_EntryMethodScenario(t *testing.T) {
	b := newBank("/**\n * " + accTag + "\n */")
	svc := newService(b.m)

	rep, err := svc.Sync(context.Background(), Request{Symbol: b.getAccount.ID})
	require.NoError(t, err)

	assert.Equal(t, StatusSynced, rep.Status)
	assert.Equal(t, 2, rep.Count)
	assert.Equal(t, accTag, rep.Tag)
	assert.Equal(t, layer.EntryPoint, rep.Layer)
	assert.Equal(t, []string{"Added AccountService", "Added AccountServiceImpl"}, entryActions(rep))
	assert.Equal(t, []State{ReadPhase, TargetsFound, WritePhase, Reported}, rep.Trail)
	assert.Equal(t, tag.Format(accTag, ""), b.m.DocOf(b.service))
	assert.Equal(t, tag.Format(accTag, ""), b.m.DocOf(b.impl))
	assert.Contains(t, rep.String(), "synced "+accTag+" to 2 target(s)")

	again, err := svc.Sync(context.Background(), Request{Symbol: b.getAccount.ID})
	require.NoError(t, err)
	assert.Equal(t, StatusUnchanged, again.Status)
	assert.Zero(t, again.Count)
	assert.Equal(t, tag.Format(accTag, ""), b.m.DocOf(b.impl))
}

func TestSync_TagSources(t *testing.T) {
	t.Run("annotation", func(t *testing.T) {
		b := newBank("")
		b.getAccount.Annotations = append(b.getAccount.Annotations,
			model.Annotation{Name: "ApiMsgId", QualifiedName: "ApiMsgId", Value: "ACC-Q-002 From annotation"})
		rep, err := newService(b.m).Sync(context.Background(), Request{Symbol: b.getAccount.ID})
		require.NoError(t, err)
		assert.Equal(t, "ACC-Q-002 From annotation", rep.Tag)
	})
	t.Run("request", func(t *testing.T) {
		b := newBank("")
		rep, err := newService(b.m).Sync(context.Background(), Request{Symbol: b.getAccount.ID, Tag: "ACC-Q-003 From flag"})
		require.NoError(t, err)
		assert.Equal(t, "ACC-Q-003 From flag", rep.Tag)
	})
	t.Run("seed wins over request", func(t *testing.T) {
		b := newBank("/** " + accTag + " */")
		rep, err := newService(b.m).Sync(context.Background(), Request{Symbol: b.getAccount.ID, Tag: "ACC-Q-003 From flag"})
		require.NoError(t, err)
		assert.Equal(t, accTag, rep.Tag)
	})
	t.Run("prompter", func(t *testing.T) {
		b := newBank("")
		p := &fakePrompter{answer: "ACC-Q-004 Typed", ok: true}
		rep, err := newService(b.m, WithPrompter(p)).Sync(context.Background(), Request{Symbol: b.getAccount.ID})
		require.NoError(t, err)
		assert.Equal(t, 1, p.asked)
		assert.Equal(t, "ACC-Q-004 Typed", rep.Tag)
	})
	t.Run("prompt cancelled", func(t *testing.T) {
		b := newBank("")
		p := &fakePrompter{}
		_, err := newService(b.m, WithPrompter(p)).Sync(context.Background(), Request{Symbol: b.getAccount.ID})
		assert.ErrorIs(t, err, ErrNoTag)
		assert.Empty(t, b.m.Writes)
	})
	t.Run("none", func(t *testing.T) {
		b := newBank("")
		rep, err := newService(b.m).Sync(context.Background(), Request{Symbol: b.getAccount.ID})
		assert.ErrorIs(t, err, ErrNoTag)
		assert.Equal(t, StatusError, rep.Status)
		assert.Empty(t, b.m.Writes)
	})
	t.Run("request tag not a tag", func(t *testing.T) {
		b := newBank("")
		_, err := newService(b.m).Sync(context.Background(), Request{Symbol: b.getAccount.ID, Tag: "hello"})
		assert.ErrorIs(t, err, ErrNoTag)
	})
}

func TestSync_NoTargets(t *testing.T) {
	b := newBank("")
	rep, err := newService(b.m).Sync(context.Background(), Request{Symbol: b.health.ID})
	require.NoError(t, err)

	assert.Equal(t, NoTargets, rep.Trail[1])
	assert.Equal(t, Reported, rep.State)
	assert.Equal(t, StatusUnchanged, rep.Status)
	assert.Contains(t, rep.Message, "no related targets found")
	assert.Empty(t, b.m.Writes)
}

func TestSync_PartialFailure(t *testing.T) {
	b := newBank("/** " + accTag + " */")
	b.m.FailWrites(b.impl, model.ErrStaleSymbol)

	rep, err := newService(b.m).Sync(context.Background(), Request{Symbol: b.getAccount.ID})
	require.NoError(t, err)
	assert.Equal(t, StatusError, rep.Status)
	assert.True(t, rep.Failed())
	assert.Equal(t, 1, rep.Count)
	assert.Equal(t, []string{"Added AccountService", "Failed AccountServiceImpl"}, entryActions(rep))
	assert.Contains(t, rep.Message, "1 failed")
}

func TestSync_ServiceMethodSeed(t *testing.T) {
	b := newBank("")
	fetch, ok := lookup(b.m, "com.acme.bank.service.impl.AccountServiceImpl#fetch(Long)")
	require.True(t, ok)

	rep, err := newService(b.m).Sync(context.Background(), Request{Symbol: fetch.ID, Tag: accTag})
	require.NoError(t, err)
	assert.Equal(t, []string{"Added AccountController.getAccount"}, entryActions(rep))
	assert.Equal(t, tag.Format(accTag, ""), b.m.DocOf(b.getAccount))
}

func TestSync_ClassSeed(t *testing.T) {
	b := newBank("")
	b.service.Doc = "/**\n * " + accTag + "\n */"
	audit := b.m.Class("com.acme.bank.controller.AuditController")
	b.m.Field(audit, "accountService", b.service)
	b.m.Method(audit, "ping", modeltest.Mapping("GetMapping"))

	rep, err := newService(b.m).Sync(context.Background(), Request{Symbol: b.service.ID})
	require.NoError(t, err)

	assert.Equal(t, "class", rep.Mode)
	assert.Equal(t, []string{
		"Added AccountServiceImpl",
		"Added AccountController.getAccount",
		"Skipped AuditController",
	}, entryActions(rep))
	assert.Equal(t, 2, rep.Count)
	assert.Equal(t, StatusSynced, rep.Status)
	assert.Equal(t, "/**\n * ACC-H-001 Health\n */", b.m.DocOf(b.health), "unrelated controller methods are left alone")
}

func TestSync_DryRun(t *testing.T) {
	b := newBank("/** " + accTag + " */")
	history := openHistory(t)

	rep, err := newService(b.m, WithHistory(history)).Sync(context.Background(), Request{Symbol: b.getAccount.ID, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Count)
	assert.Contains(t, rep.Message, "would sync")
	assert.NotEmpty(t, rep.Patch)
	assert.Len(t, rep.Files, 2)
	assert.Empty(t, b.m.DocOf(b.service))

	_, err = history.LastRun(context.Background())
	assert.ErrorIs(t, err, storage.ErrNoRuns)

	_, err = newService(hostOnly{b.m}).Sync(context.Background(), Request{Symbol: b.getAccount.ID, DryRun: true})
	assert.ErrorIs(t, err, ErrNoPreview)
}

func TestSync_HistoryAndUndo(t *testing.T) {
	b := newBank("/** " + accTag + " */")
	history := openHistory(t)
	svc := newService(b.m, WithHistory(history))
	ctx := context.Background()

	rep, err := svc.Sync(ctx, Request{Symbol: b.getAccount.ID})
	require.NoError(t, err)

	run, err := history.GetRun(ctx, rep.RunID)
	require.NoError(t, err)
	assert.Equal(t, "synced", run.Status)
	assert.Len(t, run.Entries, 2)

	restorer := &fakeRestorer{}
	undone, err := svc.Undo(ctx, restorer)
	require.NoError(t, err)
	assert.Equal(t, rep.RunID, undone.ID)
	assert.Len(t, restorer.images, 2)

	_, err = svc.Undo(ctx, restorer)
	assert.ErrorIs(t, err, storage.ErrNoRuns)
}

func TestUndo_RestoreRefused(t *testing.T) {
	b := newBank("/** " + accTag + " */")
	history := openHistory(t)
	svc := newService(b.m, WithHistory(history))
	ctx := context.Background()

	_, err := svc.Sync(ctx, Request{Symbol: b.getAccount.ID})
	require.NoError(t, err)

	changed := errors.New("file changed")
	_, err = svc.Undo(ctx, &fakeRestorer{err: changed})
	assert.ErrorIs(t, err, changed)

	// still the newest undoable run
	_, err = history.LastRun(ctx)
	assert.NoError(t, err)

	_, err = newService(b.m).Undo(ctx, &fakeRestorer{})
	assert.ErrorIs(t, err, ErrNoHistory)
}

func TestSync_SeedErrors(t *testing.T) {
	b := newBank("")
	util := b.m.Class("com.acme.bank.util.Strings", modeltest.Doc("/** ACC-U-001 util */"))
	field, ok := lookup(b.m, "com.acme.bank.controller.AccountController#accountService")
	require.True(t, ok)
	svc := newService(b.m)
	ctx := context.Background()

	_, err := svc.Sync(ctx, Request{Symbol: util.ID})
	assert.ErrorIs(t, err, resolver.ErrUnresolvableSeed)

	_, err = svc.Sync(ctx, Request{Symbol: field.ID, Tag: accTag})
	assert.ErrorIs(t, err, resolver.ErrUnresolvableSeed)

	_, err = svc.Sync(ctx, Request{Symbol: "com.acme.Missing"})
	assert.ErrorIs(t, err, model.ErrSymbolNotFound)

	_, err = svc.Sync(ctx, Request{})
	assert.ErrorIs(t, err, ErrNoLocation)
	assert.Empty(t, b.m.Writes)
}

func TestSync_Locator(t *testing.T) {
	b := newBank("/** " + accTag + " */")
	svc := newService(b.m, WithLocator(fakeLocator{sym: b.getAccount}))

	rep, err := svc.Sync(context.Background(), Request{Path: "AccountController.java", Line: 21})
	require.NoError(t, err)
	assert.Equal(t, b.getAccount.ID, rep.Seed)
	assert.Equal(t, 2, rep.Count)
}

func openHistory(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	s, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func lookup(m *modeltest.Memory, id string) (*model.Symbol, bool) {
	var sym *model.Symbol
	var ok bool
	_ = m.RunInReadScope(context.Background(), func(v model.View) error {
		sym, ok = v.Lookup(id)
		return nil
	})
	return sym, ok
}
