// Package catalog loads the server product catalog a session launches from.
package catalog

import (
	"bytes"
	_ "embed"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/travis-ci/cloudadapter/resource"
	"gopkg.in/yaml.v3"
)

//go:embed products.yml
var bundledDescriptor []byte

// descriptorEntry is one product in the catalog descriptor.
type descriptorEntry struct {
	resource.Product `yaml:",inline"`

	X32 bool `yaml:"x32"`
	X64 bool `yaml:"x64"`
}

type descriptor struct {
	Products []descriptorEntry `yaml:"products"`
}

// Catalog is an immutable set of products split into 32-bit and 64-bit
// views. Membership comes from the descriptor flags.
type Catalog struct {
	x32 []resource.Product
	x64 []resource.Product
}

// Load parses a catalog descriptor.
func Load(r io.Reader) (*Catalog, error) {
	d := &descriptor{}
	if err := yaml.NewDecoder(r).Decode(d); err != nil {
		return nil, errors.Wrap(err, "couldn't decode catalog descriptor")
	}
	if len(d.Products) == 0 {
		return nil, errors.New("catalog descriptor lists no products")
	}

	c := &Catalog{}
	for _, e := range d.Products {
		if e.ID == "" {
			return nil, errors.New("catalog descriptor has a product without productId")
		}
		if e.X32 {
			c.x32 = append(c.x32, e.Product)
		}
		if e.X64 {
			c.x64 = append(c.x64, e.Product)
		}
	}

	return c, nil
}

// LoadFile loads a descriptor from path, or the bundled descriptor when path
// is empty. Any failure falls back to Builtin.
func LoadFile(path string) *Catalog {
	var (
		c   *Catalog
		err error
	)

	if path == "" {
		c, err = Load(bytes.NewReader(bundledDescriptor))
	} else {
		var f *os.File
		f, err = os.Open(path)
		if err == nil {
			defer f.Close()
			c, err = Load(f)
		}
	}

	if err != nil {
		logrus.WithFields(logrus.Fields{
			"self": "catalog",
			"path": path,
			"err":  err,
		}).Warn("couldn't load product catalog, using built-in products")
		return Builtin()
	}

	return c
}

// Builtin is the fixed catalog used when no descriptor can be loaded. Both
// architecture views hold all five products.
func Builtin() *Catalog {
	products := []resource.Product{
		{ID: "m1.small", Name: "Small Instance (m1.small)", Description: "Small Instance (m1.small)", CPUCount: 1, DiskGb: 160, RAMMb: 1700},
		{ID: "c1.medium", Name: "High-CPU Medium Instance (c1.medium)", Description: "High-CPU Medium Instance (c1.medium)", CPUCount: 5, DiskGb: 350, RAMMb: 1700},
		{ID: "m1.large", Name: "Large Instance (m1.large)", Description: "Large Instance (m1.large)", CPUCount: 4, DiskGb: 850, RAMMb: 7500},
		{ID: "m1.xlarge", Name: "Extra Large Instance (m1.xlarge)", Description: "Extra Large Instance (m1.xlarge)", CPUCount: 8, DiskGb: 1690, RAMMb: 15000},
		{ID: "c1.xlarge", Name: "High-CPU Extra Large Instance (c1.xlarge)", Description: "High-CPU Extra Large Instance (c1.xlarge)", CPUCount: 20, DiskGb: 1690, RAMMb: 7000},
	}

	x32 := make([]resource.Product, len(products))
	copy(x32, products)

	return &Catalog{x32: x32, x64: products}
}

// Products returns a copy of the view for arch.
func (c *Catalog) Products(arch resource.Architecture) []resource.Product {
	src := c.x64
	if arch == resource.ArchitectureI32 {
		src = c.x32
	}
	out := make([]resource.Product, len(src))
	copy(out, src)
	return out
}

// Product looks id up in the 64-bit view first, then the 32-bit one.
func (c *Catalog) Product(id string) (*resource.Product, bool) {
	for _, view := range [][]resource.Product{c.x64, c.x32} {
		for i := range view {
			if view[i].ID == id {
				p := view[i]
				return &p, true
			}
		}
	}
	return nil, false
}
