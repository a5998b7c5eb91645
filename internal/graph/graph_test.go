package graph

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tagsync/internal/extractor"
	"tagsync/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bankRoot = "../../testdata/bank/src/main/java"

func buildBank(t *testing.T) *Graph {
	t.Helper()
	ext, err := extractor.NewExtractor("java")
	require.NoError(t, err)

	g := NewGraph()
	err = filepath.WalkDir(bankRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".java") {
			return err
		}
		file, err := ext.ExtractFromFile(path)
		require.NoError(t, err)
		g.AddFile(file)
		return nil
	})
	require.NoError(t, err)
	g.LinkRelations()
	return g
}

func TestGraph_LinkRelations(t *testing.T) {
	g := buildBank(t)

	const (
		controller = "com.acme.bank.controller.AccountController"
		service    = "com.acme.bank.service.AccountService"
		impl       = "com.acme.bank.service.impl.AccountServiceImpl"
		legacy     = "com.acme.bank.service.impl.LegacyAccountServiceImpl"
	)

	t.Run("Call resolution through injected field", func(t *testing.T) {
		deps := g.GetDependencies(controller + "#getAccount(Long)")
		var ids []string
		for _, d := range deps {
			ids = append(ids, d.Unit.ID)
		}
		assert.Contains(t, ids, service+"#fetch(Long)")
	})

	t.Run("Implementations reference the interface", func(t *testing.T) {
		var implementers []string
		for _, e := range g.IncomingEdges(service) {
			if e.Kind == model.RefImplements {
				implementers = append(implementers, e.From)
			}
		}
		assert.ElementsMatch(t, []string{impl, legacy}, implementers)
	})

	t.Run("Interfaces", func(t *testing.T) {
		ifaces := g.Interfaces(g.Nodes[impl])
		require.Len(t, ifaces, 1)
		assert.Equal(t, service, ifaces[0].Unit.ID)
	})

	t.Run("Dependent lookup", func(t *testing.T) {
		var from []string
		for _, d := range g.GetDependents(service + "#open(Account)") {
			from = append(from, d.Unit.ID)
		}
		assert.Equal(t, []string{controller + "#openAccount(Account)"}, from)
	})

	t.Run("External imports are classified", func(t *testing.T) {
		counts := g.UnresolvedReasonCounts()
		assert.Greater(t, counts[ReasonExternal], 0)
	})
}

func TestGraph_ResolveTypeName(t *testing.T) {
	g := buildBank(t)
	ctx := g.Nodes["com.acme.bank.controller.AccountController"].Unit

	n, ok := g.ResolveTypeName(ctx, "AccountService")
	require.True(t, ok)
	assert.Equal(t, "com.acme.bank.service.AccountService", n.Unit.ID)

	n, ok = g.ResolveTypeName(ctx, "Account[]")
	require.True(t, ok)
	assert.Equal(t, "com.acme.bank.model.Account", n.Unit.ID)

	_, ok = g.ResolveTypeName(ctx, "List<Account>")
	assert.False(t, ok, "only the outer type is resolved")

	_, ok = g.ResolveTypeName(ctx, "GetMapping")
	assert.False(t, ok)
}

func TestGraph_ResolveTypeName_ExplicitImportWins(t *testing.T) {
	ext, err := extractor.NewExtractor("java")
	require.NoError(t, err)

	g := NewGraph()
	for path, src := range map[string]string{
		"a/Service.java": "package a;\npublic interface Service {}\n",
		"b/Impl.java":    "package b;\nimport org.example.Service;\npublic class Impl implements Service {}\n",
		"c/Other.java":   "package c;\npublic class Other implements Service {}\n",
	} {
		file, err := ext.ExtractFromSource(path, []byte(src))
		require.NoError(t, err)
		g.AddFile(file)
	}
	g.LinkRelations()

	assert.Empty(t, g.Interfaces(g.Nodes["b.Impl"]), "an import of an unindexed type must not fall back to the global index")
	require.Len(t, g.Interfaces(g.Nodes["c.Other"]), 1)
}

func TestGraph_SymbolConversion(t *testing.T) {
	g := buildBank(t)

	s, ok := g.SymbolByID("com.acme.bank.controller.AccountController#getAccount(Long)")
	require.True(t, ok)
	assert.Equal(t, model.KindMethod, s.Kind)
	assert.Equal(t, []string{"Long"}, s.Parameters)
	require.NotNil(t, s.Owner)
	assert.Equal(t, "AccountController", s.Owner.Name)
	assert.Contains(t, s.Doc, "ACC-Q-001 Get account")
	require.NotEmpty(t, s.Annotations)
	assert.Equal(t, "GetMapping", s.Annotations[0].QualifiedName,
		"wildcard-imported annotations keep the name as written")

	impl, ok := g.SymbolByID("com.acme.bank.service.impl.AccountServiceImpl")
	require.True(t, ok)
	assert.Equal(t, "org.springframework.stereotype.Service", impl.Annotations[0].QualifiedName)
}

func TestGraph_RemoveFile(t *testing.T) {
	g := buildBank(t)
	path := g.Nodes["com.acme.bank.service.impl.LegacyAccountServiceImpl"].Unit.Filepath

	g.RemoveFile(path)
	g.LinkRelations()

	_, ok := g.Nodes["com.acme.bank.service.impl.LegacyAccountServiceImpl"]
	assert.False(t, ok)
	assert.Empty(t, g.NodesInFile(path))
	assert.Len(t, g.TypesNamed("LegacyAccountServiceImpl"), 0)
	for _, e := range g.IncomingEdges("com.acme.bank.service.AccountService") {
		assert.NotEqual(t, "com.acme.bank.service.impl.LegacyAccountServiceImpl", e.From)
	}
}

func TestTypeNames(t *testing.T) {
	assert.Equal(t, []string{"Map", "Long", "List", "Account"}, typeNames("Map<Long,List<Account>>"))
	assert.Equal(t, []string{"List", "Account"}, typeNames("List<?extendsAccount>"))
	assert.Equal(t, []string{"String"}, typeNames("String..."))
	assert.Equal(t, "Account", baseTypeName("Account[]"))
}
