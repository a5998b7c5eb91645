package layer

import (
	"testing"

	"tagsync/internal/model"

	"github.com/stretchr/testify/assert"
)

func typ(qn string, annotations ...string) *model.Symbol {
	name := qn
	for i := len(qn) - 1; i >= 0; i-- {
		if qn[i] == '.' {
			name = qn[i+1:]
			break
		}
	}
	s := &model.Symbol{Kind: model.KindType, Name: name, QualifiedName: qn}
	for _, a := range annotations {
		s.Annotations = append(s.Annotations, model.Annotation{Name: a, QualifiedName: a})
	}
	return s
}

func TestClassifier_Classify(t *testing.T) {
	c := NewClassifier(DefaultRules())

	tests := []struct {
		name string
		sym  *model.Symbol
		want Layer
	}{
		{"controller by name", typ("com.acme.web.AccountController"), EntryPoint},
		{"controller by annotation", typ("com.acme.web.AccountEndpoint", "org.springframework.web.bind.annotation.RestController"), EntryPoint},
		{"controller by package", typ("com.acme.controller.AccountEndpoint"), EntryPoint},
		{"service interface", typ("com.acme.service.AccountService"), Abstraction},
		{"service by annotation", typ("com.acme.core.AccountManager", "org.springframework.stereotype.Service"), Abstraction},
		{"implementation", typ("com.acme.service.impl.AccountServiceImpl"), Implementation},
		{"impl without service", typ("com.acme.repo.AccountRepoImpl"), Unknown},
		{"plain type", typ("com.acme.model.Account"), Unknown},
		{"nil", nil, Unknown},
		{"empty name", &model.Symbol{Kind: model.KindType}, Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.sym))
		})
	}
}

func TestClassifier_MethodUsesOwnerLayer(t *testing.T) {
	c := NewClassifier(DefaultRules())
	owner := typ("com.acme.service.impl.AccountServiceImpl")
	m := &model.Symbol{Kind: model.KindMethod, Name: "fetch", Owner: owner}

	assert.Equal(t, Implementation, c.Classify(m))
	assert.True(t, c.IsServiceType(m))

	orphan := &model.Symbol{Kind: model.KindMethod, Name: "fetch"}
	assert.Equal(t, Unknown, c.Classify(orphan))
}

func TestClassifier_IsEntryMethod(t *testing.T) {
	c := NewClassifier(DefaultRules())
	method := func(annotations ...string) *model.Symbol {
		m := &model.Symbol{Kind: model.KindMethod, Name: "m"}
		for _, a := range annotations {
			m.Annotations = append(m.Annotations, model.Annotation{Name: a, QualifiedName: a})
		}
		return m
	}

	assert.True(t, c.IsEntryMethod(method("org.springframework.web.bind.annotation.GetMapping")))
	assert.True(t, c.IsEntryMethod(method("PatchMapping")))
	assert.True(t, c.IsEntryMethod(method("RequestMappings")))
	assert.False(t, c.IsEntryMethod(method("Override")))
	assert.False(t, c.IsEntryMethod(method()))
	assert.False(t, c.IsEntryMethod(nil))
	assert.False(t, c.IsEntryMethod(typ("GetMapping")))
}

func TestClassifier_CustomRules(t *testing.T) {
	rules := DefaultRules()
	rules.EntryMarker = "Resource"
	rules.EntryPackage = ".api."
	c := NewClassifier(rules)

	assert.Equal(t, EntryPoint, c.Classify(typ("com.acme.web.AccountResource")))
	assert.Equal(t, Unknown, c.Classify(typ("com.acme.web.AccountController")))
}
