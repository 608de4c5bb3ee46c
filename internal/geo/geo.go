// Package geo holds the static Sri Lanka province, district and city hierarchy.
package geo

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed srilanka.yml
var srilankaYAML []byte

// Province is one of the nine provinces.
type Province struct {
	ID        string     `yaml:"id" json:"id"`
	Name      string     `yaml:"name" json:"name"`
	Districts []District `yaml:"districts" json:"districts"`
}

// District is an administrative district with its major cities.
type District struct {
	ID         string   `yaml:"id" json:"id"`
	Name       string   `yaml:"name" json:"name"`
	ProvinceID string   `yaml:"-" json:"provinceId"`
	Cities     []string `yaml:"cities" json:"cities"`
}

// Hierarchy is an immutable, indexed view of the location data.
type Hierarchy struct {
	provinces  []Province
	byProvince map[string]int
	byDistrict map[string]District
}

type document struct {
	Provinces []Province `yaml:"provinces"`
}

// Parse builds a Hierarchy from YAML, rejecting duplicate or empty ids.
func Parse(data []byte) (*Hierarchy, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse location hierarchy: %w", err)
	}

	h := &Hierarchy{
		provinces:  doc.Provinces,
		byProvince: make(map[string]int, len(doc.Provinces)),
		byDistrict: make(map[string]District),
	}
	for i := range h.provinces {
		p := &h.provinces[i]
		if p.ID == "" {
			return nil, fmt.Errorf("province %q has no id", p.Name)
		}
		if _, dup := h.byProvince[p.ID]; dup {
			return nil, fmt.Errorf("duplicate province id %s", p.ID)
		}
		h.byProvince[p.ID] = i

		for j := range p.Districts {
			d := &p.Districts[j]
			d.ProvinceID = p.ID
			if d.ID == "" {
				return nil, fmt.Errorf("district %q has no id", d.Name)
			}
			if _, dup := h.byDistrict[d.ID]; dup {
				return nil, fmt.Errorf("duplicate district id %s", d.ID)
			}
			h.byDistrict[d.ID] = *d
		}
	}
	return h, nil
}

var loadDefault = sync.OnceValues(func() (*Hierarchy, error) {
	return Parse(srilankaYAML)
})

// Default returns the embedded Sri Lanka hierarchy. It panics if the embedded data is invalid.
func Default() *Hierarchy {
	h, err := loadDefault()
	if err != nil {
		panic(err)
	}
	return h
}

// Provinces returns every province in display order.
func (h *Hierarchy) Provinces() []Province {
	return h.provinces
}

// Province looks up a province by id.
func (h *Hierarchy) Province(id string) (Province, bool) {
	i, ok := h.byProvince[id]
	if !ok {
		return Province{}, false
	}
	return h.provinces[i], true
}

// District looks up a district by id.
func (h *Hierarchy) District(id string) (District, bool) {
	d, ok := h.byDistrict[id]
	return d, ok
}
