// Package identifier assigns DOIs for depositable objects.
package identifier

import (
	"fmt"
	"strings"

	"github.com/scholarly-tools/doideposit/internal/deposit/domain"
	"github.com/scholarly-tools/doideposit/internal/log"
)

// DefaultSuffixPattern builds suffixes such as "jot.a42" from journal path, kind initial and id.
const DefaultSuffixPattern = "%j.%k%i"

// Source is recorded with every registered DOI.
const Source = "crossref"

// Tenant holds the DOI settings of one journal.
type Tenant struct {
	Prefix        string
	JournalPath   string
	SuffixPattern string
}

// Generator derives DOIs from tenant settings.
type Generator struct {
	tenants map[string]Tenant
}

// NewGenerator creates a Generator for the given tenants, keyed by context id.
func NewGenerator(tenants map[string]Tenant) *Generator {
	return &Generator{tenants: tenants}
}

// DOI returns the object's assigned DOI or derives one from its tenant's prefix and
// suffix pattern. Pattern placeholders: %j journal path, %k kind initial, %i object id,
// %% a literal percent sign.
func (g *Generator) DOI(obj *domain.Object) (string, error) {
	if doi := obj.DOI(); doi != "" {
		return doi, nil
	}

	tenant, ok := g.tenants[obj.ContextID()]
	if !ok || tenant.Prefix == "" {
		return "", fmt.Errorf("no DOI prefix configured for context %q", obj.ContextID())
	}
	pattern := tenant.SuffixPattern
	if pattern == "" {
		pattern = DefaultSuffixPattern
	}

	suffix, err := expand(pattern, tenant, obj)
	if err != nil {
		return "", err
	}
	return tenant.Prefix + "/" + suffix, nil
}

func expand(pattern string, tenant Tenant, obj *domain.Object) (string, error) {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(pattern) {
			return "", fmt.Errorf("suffix pattern %q ends with a bare %%", pattern)
		}
		i++
		switch pattern[i] {
		case 'j':
			b.WriteString(tenant.JournalPath)
		case 'k':
			b.WriteByte(string(obj.Kind())[0])
		case 'i':
			b.WriteString(obj.ID())
		case '%':
			b.WriteByte('%')
		default:
			return "", fmt.Errorf("suffix pattern %q has unknown placeholder %%%c", pattern, pattern[i])
		}
	}
	return b.String(), nil
}

// Registrar assigns DOIs to objects and describes them for registration.
type Registrar struct {
	generator *Generator
}

// NewRegistrar creates a Registrar.
func NewRegistrar(generator *Generator) *Registrar {
	return &Registrar{generator: generator}
}

// Register assigns the object's DOI if it has none and returns the registration to
// store with the object.
func (r *Registrar) Register(obj *domain.Object) (domain.Registration, error) {
	doi, err := r.generator.DOI(obj)
	if err != nil {
		return domain.Registration{}, err
	}
	obj.AssignDOI(doi)

	log.Debug(log.CatDeposit, "Assigned DOI", "object", obj.ID(), "doi", doi)
	return domain.Registration{DOI: doi, Source: Source}, nil
}
