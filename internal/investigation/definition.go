// Package investigation describes what a run looks for: the axes of a
// combination, their values, and the templates that turn a combination
// into a search query and an extraction instruction.
package investigation

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/claimprobe/internal/model"
	"github.com/ppiankov/claimprobe/internal/planner"
	"github.com/ppiankov/claimprobe/internal/registry"
)

// ParamWebsite is the institution site parameter available to templates
const ParamWebsite = "website"

// Definition is one investigation
type Definition struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	// InputFile overrides the configured institution source
	InputFile  string `yaml:"input_file,omitempty"`
	OutputFile string `yaml:"output_file"`

	// Axes[0] is always the institution name
	Axes model.Axes `yaml:"axes"`
	// Variants lists the values of every axis after the first
	Variants map[string][]string `yaml:"variants,omitempty"`

	QueryTemplate       string `yaml:"query_template"`
	InstructionTemplate string `yaml:"instruction_template"`

	// Registry overrides the configured CSV layout
	Registry *model.RegistryConfig `yaml:"registry,omitempty"`
}

// Validate checks the definition is usable
func (d *Definition) Validate() error {
	if d.Name == "" {
		return errors.New("investigation has no name")
	}
	if d.OutputFile == "" {
		return fmt.Errorf("investigation %q: output_file is required", d.Name)
	}
	if len(d.Axes) == 0 {
		return fmt.Errorf("investigation %q: at least one axis is required", d.Name)
	}

	known := map[string]bool{ParamWebsite: true}
	for i, axis := range d.Axes {
		switch {
		case axis == "":
			return fmt.Errorf("investigation %q: axis %d has no name", d.Name, i)
		case axis == model.FieldResult || axis == model.FieldReasoning:
			return fmt.Errorf("investigation %q: axis name %q is reserved", d.Name, axis)
		case axis == ParamWebsite:
			return fmt.Errorf("investigation %q: axis name %q collides with the site parameter", d.Name, axis)
		case known[axis]:
			return fmt.Errorf("investigation %q: duplicate axis %q", d.Name, axis)
		}
		known[axis] = true

		if i > 0 && len(d.Variants[axis]) == 0 {
			return fmt.Errorf("investigation %q: axis %q has no values", d.Name, axis)
		}
	}

	for label, tmpl := range map[string]string{
		"query_template":       d.QueryTemplate,
		"instruction_template": d.InstructionTemplate,
	} {
		if tmpl == "" {
			return fmt.Errorf("investigation %q: %s is required", d.Name, label)
		}
		for _, name := range Placeholders(tmpl) {
			if !known[name] {
				return fmt.Errorf("investigation %q: %s uses unknown parameter %q", d.Name, label, name)
			}
		}
	}

	return nil
}

// VariantLists returns the value lists of Axes[1:] in axis order
func (d *Definition) VariantLists() [][]string {
	if len(d.Axes) < 2 {
		return nil
	}
	lists := make([][]string, 0, len(d.Axes)-1)
	for _, axis := range d.Axes[1:] {
		lists = append(lists, d.Variants[axis])
	}
	return lists
}

// RegistryConfig merges the definition's overrides onto base
func (d *Definition) RegistryConfig(base model.RegistryConfig) model.RegistryConfig {
	cfg := base
	if d.Registry != nil {
		cfg = *d.Registry
		if cfg.InputFile == "" {
			cfg.InputFile = base.InputFile
		}
	}
	if d.InputFile != "" {
		cfg.InputFile = d.InputFile
	}
	return cfg
}

// LoadInstitutions reads the institution source for this investigation
func (d *Definition) LoadInstitutions(base model.RegistryConfig, logger *zap.Logger) ([]model.Institution, error) {
	cfg := d.RegistryConfig(base)
	insts, err := registry.Load(cfg.InputFile, registry.OptionsFromConfig(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("load institutions for %s: %w", d.Name, err)
	}
	return insts, nil
}

// Combinations enumerates every combination over insts
func (d *Definition) Combinations(insts []model.Institution) []model.Combination {
	return planner.EnumerateAll(registry.Names(insts), d.VariantLists()...)
}

// Params builds template parameters for combo
func (d *Definition) Params(combo model.Combination, inst model.Institution) map[string]string {
	params := combo.Params(d.Axes)
	params[ParamWebsite] = inst.Site
	return params
}

// Query renders the search query
func (d *Definition) Query(params map[string]string) (string, error) {
	q, err := Render(d.QueryTemplate, params)
	if err != nil {
		return "", fmt.Errorf("render query: %w", err)
	}
	return q, nil
}

// Instruction renders the extraction instruction
func (d *Definition) Instruction(params map[string]string) (string, error) {
	s, err := Render(d.InstructionTemplate, params)
	if err != nil {
		return "", fmt.Errorf("render instruction: %w", err)
	}
	return s, nil
}
