package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

type fileSpec struct {
	Aliases []aliasBlock `hcl:"alias,block"`
	Models  []modelBlock `hcl:"model,block"`
}

type aliasBlock struct {
	Name   string `hcl:"name,label"`
	Target string `hcl:"target"`
}

type modelBlock struct {
	Name            string  `hcl:"name,label"`
	Description     string  `hcl:"description,optional"`
	Workflow        string  `hcl:"workflow"`
	Baseline        string  `hcl:"baseline"`
	Refiner         string  `hcl:"refiner,optional"`
	VAE             string  `hcl:"vae,optional"`
	DefaultPositive string  `hcl:"default_positive,optional"`
	DefaultNegative string  `hcl:"default_negative,optional"`
	DefaultSteps    int     `hcl:"default_steps,optional"`
	BaseResolution  int     `hcl:"base_resolution,optional"`
	StyleConnector  *string `hcl:"style_connector,optional"`
}

// Load reads a catalog file. Files ending in .json use the JSON syntax of HCL;
// everything else is parsed as native HCL. Relative workflow paths are
// resolved against the catalog's directory.
func Load(path string) (*Catalog, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	cat, err := Parse(src, path)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	for name, m := range cat.Models {
		if !filepath.IsAbs(m.Workflow) {
			m.Workflow = filepath.Join(dir, m.Workflow)
			cat.Models[name] = m
		}
	}
	return cat, nil
}

// Parse decodes catalog source. The filename selects the syntax and is used in
// diagnostics.
func Parse(src []byte, filename string) (*Catalog, error) {
	parser := hclparse.NewParser()
	var (
		file  *hcl.File
		diags hcl.Diagnostics
	)
	if strings.EqualFold(filepath.Ext(filename), ".json") {
		file, diags = parser.ParseJSON(src, filename)
	} else {
		file, diags = parser.ParseHCL(src, filename)
	}
	if diags.HasErrors() {
		return nil, fmt.Errorf("catalog: parse: %w", diags)
	}
	var spec fileSpec
	if diags := gohcl.DecodeBody(file.Body, nil, &spec); diags.HasErrors() {
		return nil, fmt.Errorf("catalog: decode: %w", diags)
	}

	cat := &Catalog{
		Models:  make(map[string]Model, len(spec.Models)),
		Aliases: make(map[string]string, len(spec.Aliases)),
	}
	for _, b := range spec.Models {
		if _, dup := cat.Models[b.Name]; dup {
			return nil, fmt.Errorf("catalog: model %q defined twice", b.Name)
		}
		cat.Models[b.Name] = Model{
			Name:            b.Name,
			Description:     b.Description,
			Workflow:        b.Workflow,
			Baseline:        b.Baseline,
			Refiner:         b.Refiner,
			VAE:             b.VAE,
			DefaultPositive: b.DefaultPositive,
			DefaultNegative: b.DefaultNegative,
			DefaultSteps:    b.DefaultSteps,
			BaseResolution:  b.BaseResolution,
			StyleConnector:  b.StyleConnector,
		}
	}
	for _, a := range spec.Aliases {
		if _, dup := cat.Aliases[a.Name]; dup {
			return nil, fmt.Errorf("catalog: alias %q defined twice", a.Name)
		}
		cat.Aliases[a.Name] = a.Target
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return cat, nil
}
