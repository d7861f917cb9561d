// Package publisher maps partner news organizations to their event source
// buckets and newsletter classification rule sets.
package publisher

import (
	"sort"

	"github.com/tributary-data/tributary/internal/errors"
	"github.com/tributary-data/tributary/internal/formpayload"
	"github.com/tributary-data/tributary/internal/newsletter"
)

// Name is a partner slug, matching the partner's S3 bucket naming.
type Name string

const (
	AfroLA          Name = "afro-la"
	DallasFreePress Name = "dallas-free-press"
	OpenVallejo     Name = "open-vallejo"
	The19th         Name = "the-19th"
)

// Site is one immutable registry entry: the partner's identity, the bucket
// its collector writes to, and its classification engine.
type Site struct {
	Name   Name
	Bucket string
	Engine *newsletter.Engine
}

// Registry is the static, read-only publisher table. Built once at process
// start; never mutated afterwards.
type Registry struct {
	sites map[Name]*Site
}

// NewRegistry builds the registry for all known partners. The shared parser
// backs every engine's payload memo cache.
func NewRegistry(parser *formpayload.Parser) (*Registry, error) {
	variants := map[Name]newsletter.Variant{
		AfroLA:          newsletter.VariantAfroLA,
		DallasFreePress: newsletter.VariantDallasFreePress,
		OpenVallejo:     newsletter.VariantOpenVallejo,
		The19th:         newsletter.VariantThe19th,
	}

	sites := make(map[Name]*Site, len(variants))
	for name, variant := range variants {
		engine, err := newsletter.ForVariant(variant, parser)
		if err != nil {
			return nil, err
		}
		sites[name] = &Site{
			Name:   name,
			Bucket: string(name),
			Engine: engine,
		}
	}

	return &Registry{sites: sites}, nil
}

// Lookup returns the registry entry for a publisher, or a typed
// unknown-publisher error.
func (r *Registry) Lookup(name Name) (*Site, error) {
	site, ok := r.sites[name]
	if !ok {
		return nil, errors.NewUnknownPublisherError(string(name))
	}
	return site, nil
}

// KnownNames returns every publisher slug the registry supports, sorted.
// Useful for usage text before a registry is built.
func KnownNames() []Name {
	return []Name{AfroLA, DallasFreePress, OpenVallejo, The19th}
}

// Names returns all registered publisher slugs in sorted order.
func (r *Registry) Names() []Name {
	names := make([]Name, 0, len(r.sites))
	for name := range r.sites {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
