// Package layer classifies types into controller, service and
// implementation layers from naming and annotation conventions.
package layer

import (
	"strings"

	"tagsync/internal/model"
)

type Layer int

const (
	Unknown Layer = iota
	EntryPoint
	Abstraction
	Implementation
)

func (l Layer) String() string {
	switch l {
	case EntryPoint:
		return "entry-point"
	case Abstraction:
		return "abstraction"
	case Implementation:
		return "implementation"
	default:
		return "unknown"
	}
}

// Rules holds the naming markers. Matching is case-sensitive.
type Rules struct {
	EntryMarker        string   `yaml:"entry_marker"`
	EntryAnnotations   []string `yaml:"entry_annotations"`
	EntryPackage       string   `yaml:"entry_package"`
	ImplMarker         string   `yaml:"impl_marker"`
	ServiceMarker      string   `yaml:"service_marker"`
	ServiceAnnotations []string `yaml:"service_annotations"`
	MappingSuffix      string   `yaml:"mapping_suffix"`
	MappingAnnotations []string `yaml:"mapping_annotations"`
}

func DefaultRules() Rules {
	return Rules{
		EntryMarker:        "Controller",
		EntryAnnotations:   []string{"Controller", "RestController"},
		EntryPackage:       ".controller.",
		ImplMarker:         "Impl",
		ServiceMarker:      "Service",
		ServiceAnnotations: []string{"Service"},
		MappingSuffix:      "Mapping",
		MappingAnnotations: []string{"RequestMapping", "GetMapping", "PostMapping", "PutMapping", "DeleteMapping"},
	}
}

type Classifier struct {
	rules Rules
}

func NewClassifier(rules Rules) *Classifier {
	return &Classifier{rules: rules}
}

// Classify returns the layer of a type, or of the declaring type for
// members. Entry-point rules win over service rules.
func (c *Classifier) Classify(s *model.Symbol) Layer {
	t := s.DeclaringType()
	if t == nil || t.Name == "" {
		return Unknown
	}
	if c.isEntryType(t) {
		return EntryPoint
	}
	service := c.isServiceType(t)
	if service && c.rules.ImplMarker != "" && strings.Contains(t.Name, c.rules.ImplMarker) {
		return Implementation
	}
	if service {
		return Abstraction
	}
	return Unknown
}

// IsServiceType reports Abstraction or Implementation.
func (c *Classifier) IsServiceType(s *model.Symbol) bool {
	l := c.Classify(s)
	return l == Abstraction || l == Implementation
}

// IsEntryMethod reports whether a method carries a request-mapping style
// annotation.
func (c *Classifier) IsEntryMethod(m *model.Symbol) bool {
	if m == nil || m.Kind != model.KindMethod {
		return false
	}
	for _, a := range m.Annotations {
		name := annotationName(a)
		if c.rules.MappingSuffix != "" && strings.HasSuffix(name, c.rules.MappingSuffix) {
			return true
		}
		for _, marker := range c.rules.MappingAnnotations {
			if strings.Contains(name, marker) {
				return true
			}
		}
	}
	return false
}

func (c *Classifier) isEntryType(t *model.Symbol) bool {
	if c.rules.EntryMarker != "" && strings.Contains(t.Name, c.rules.EntryMarker) {
		return true
	}
	if hasAnnotationSuffix(t, c.rules.EntryAnnotations) {
		return true
	}
	return c.rules.EntryPackage != "" && strings.Contains(t.QualifiedName, c.rules.EntryPackage)
}

func (c *Classifier) isServiceType(t *model.Symbol) bool {
	if c.rules.ServiceMarker != "" && strings.Contains(t.Name, c.rules.ServiceMarker) {
		return true
	}
	return hasAnnotationSuffix(t, c.rules.ServiceAnnotations)
}

func hasAnnotationSuffix(s *model.Symbol, suffixes []string) bool {
	for _, a := range s.Annotations {
		name := annotationName(a)
		for _, suf := range suffixes {
			if suf != "" && strings.HasSuffix(name, suf) {
				return true
			}
		}
	}
	return false
}

func annotationName(a model.Annotation) string {
	if a.QualifiedName != "" {
		return a.QualifiedName
	}
	return a.Name
}
