package investigation

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrUnknown is returned when no investigation has the requested name
var ErrUnknown = errors.New("unknown investigation")

const answerFormat = "Antworte im JSON-Format. Gebe eine kurze Begründung im Feld `reasoning` an, " +
	"sowie das Ergebnis `true` oder `false` im Feld `result`."

var lmsSoftware = []string{"Moodle", "Ilias", "OpenOLAT"}

const lmsInstruction = "Finde heraus ob aus dem Text hervorgeht, dass {software} oder eine auf {software} " +
	"basierende Software in der Einrichtung {einrichtung} genutzt wird. " + answerFormat

// Builtins returns the built-in investigations
func Builtins() []*Definition {
	return []*Definition{
		{
			Name:                "open-lms",
			Description:         "Use of open-source learning management systems",
			OutputFile:          "results_open_lms.jsonlines",
			Axes:                []string{"einrichtung", "software"},
			Variants:            map[string][]string{"software": lmsSoftware},
			QueryTemplate:       "{einrichtung} {software}",
			InstructionTemplate: lmsInstruction,
		},
		{
			Name:                "open-lms-site",
			Description:         "Use of open-source learning management systems, searched on the institution site only",
			OutputFile:          "results_open_lms_site.jsonlines",
			Axes:                []string{"einrichtung", "software"},
			Variants:            map[string][]string{"software": lmsSoftware},
			QueryTemplate:       "site:{website} {software}",
			InstructionTemplate: lmsInstruction,
		},
		{
			Name:          "openaccess",
			Description:   "Published open-access policy",
			OutputFile:    "results_openaccess.jsonlines",
			Axes:          []string{"einrichtung"},
			QueryTemplate: "{einrichtung} Open Access Richtlinie",
			InstructionTemplate: "Finde heraus ob aus dem Text hervorgeht, dass es an der Einrichtung '{einrichtung}' eine " +
				"Open-Access-Policy, Leitlinie o.ä. gibt, welche die Publikation in Open Access Journalen " +
				"empfiehlt oder unterstützt. Antworte mit Ja oder Nein, der URL und einer kurzen Begründung. " +
				answerFormat,
		},
		{
			Name:          "forschungsdatenrepo",
			Description:   "Publicly accessible research data repository",
			OutputFile:    "results_forschungsdatenrepo.jsonlines",
			Axes:          []string{"einrichtung"},
			QueryTemplate: "{einrichtung} Forschungsdaten Repositorium",
			InstructionTemplate: "Finde heraus ob aus dem Text hervorgeht, dass an der Einrichtung '{einrichtung}' ein " +
				"öffentlich zugängliches Forschungsdatenrepositorium betrieben oder genutzt wird. " +
				"Nachweis einer öffentlich zugänglichen Infrastruktur für ein Forschungsdaten-Repositorium u.a. durch:\n" +
				" - Textsuche auf der Webseite: Präsenz von Schlüsselbegriffen wie \"Forschungsdaten-Repositorium\", " +
				"\"Forschungsdatenmanagement\", \"Research Data Management\", \"RDM\", \"FDM\" in Titeln, Überschriften\n" +
				" - Identifikation spezifischer URL-Muster: Auffinden von URLs, die /forschungsdaten/, /researchdata/, " +
				"/rdm/ oder ähnliche Muster enthalten.\n" +
				" - Verlinkung von relevanten Bereichen: Direkte Links von der Hauptwebseite (z.B. aus dem Hauptmenü, " +
				"dem Bereich \"Forschung\" oder \"Bibliothek\") zu einer URL, die auf ein solches Repositorium hindeutet.\n" +
				"\n" +
				"Antworte mit Ja oder Nein, der URL und einer kurzen Begründung. " + answerFormat,
		},
	}
}

// Catalog holds the investigations a run can choose from
type Catalog struct {
	defs map[string]*Definition
}

// NewCatalog returns a catalog seeded with the built-in investigations
func NewCatalog() *Catalog {
	c := &Catalog{defs: make(map[string]*Definition)}
	for _, d := range Builtins() {
		c.defs[d.Name] = d
	}
	return c
}

// definitionsFile is the YAML layout of a custom definitions file
type definitionsFile struct {
	Investigations []*Definition `yaml:"investigations"`
}

// LoadFile adds the investigations declared in a YAML file. A custom
// investigation replaces a built-in one of the same name.
func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read definitions: %w", err)
	}

	var file definitionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse definitions %s: %w", path, err)
	}

	return c.Add(file.Investigations...)
}

// Add validates and registers definitions
func (c *Catalog) Add(defs ...*Definition) error {
	for _, d := range defs {
		if d == nil {
			continue
		}
		if err := d.Validate(); err != nil {
			return err
		}
		c.defs[d.Name] = d
	}
	return nil
}

// Get returns the named investigation
func (c *Catalog) Get(name string) (*Definition, error) {
	d, ok := c.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknown, name, c.Names())
	}
	return d, nil
}

// Names lists investigation names alphabetically
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.defs))
	for name := range c.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns every investigation ordered by name
func (c *Catalog) List() []*Definition {
	names := c.Names()
	defs := make([]*Definition, len(names))
	for i, name := range names {
		defs[i] = c.defs[name]
	}
	return defs
}
