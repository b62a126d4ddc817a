package instructions

import (
	"encoding/xml"
	"os"

	"github.com/muddle-build/muddle/internal/merrors"
)

// Instruction is one element of an instructions document: a kind
// (chmod, chown, mknod, ...), the file-spec it applies to, and its
// kind-specific attributes, per spec.md §6.
type Instruction struct {
	XMLName xml.Name `xml:"instruction"`
	Kind    string   `xml:"kind,attr"`

	Base     string `xml:"base,attr,omitempty"`
	Pattern  string `xml:"pattern,attr,omitempty"`
	AllUnder bool   `xml:"allUnder,attr,omitempty"`
	AllRegex bool   `xml:"allRegex,attr,omitempty"`

	// Kind-specific attributes. Unused ones are simply empty/zero for a
	// given Kind; muddle's instruction vocabulary is small enough that a
	// handful of optional fields reads better than a generic attribute bag.
	Mode  string `xml:"mode,attr,omitempty"`  // chmod
	Owner string `xml:"owner,attr,omitempty"` // chown
	Group string `xml:"group,attr,omitempty"` // chown
	Major int    `xml:"major,attr,omitempty"` // mknod
	Minor int    `xml:"minor,attr,omitempty"` // mknod
	Type  string `xml:"type,attr,omitempty"`  // mknod: "char" | "block" | "fifo"
}

// FileSpec extracts the instruction's target file-spec.
func (i Instruction) FileSpec() FileSpec {
	return FileSpec{Base: i.Base, Pattern: i.Pattern, AllUnder: i.AllUnder, AllRegex: i.AllRegex}
}

// Document is an instructions XML document: `<instructions priority="N">`
// containing an ordered list of instruction elements, per spec.md §6.
// Priority decides application order when a package contributes more than
// one instructions file (instructions/<pkg>/[<role>.xml|_default.xml]).
type Document struct {
	XMLName      xml.Name      `xml:"instructions"`
	Priority     int           `xml:"priority,attr"`
	Instructions []Instruction `xml:"instruction"`
}

// Load parses an instructions document from path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, merrors.NewGiveUp("reading instructions file %s: %v", path, err)
	}
	var doc Document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, merrors.NewGiveUp("parsing instructions file %s: %v", path, err)
	}
	return &doc, nil
}

// Save writes doc to path as an indented XML document.
func (d *Document) Save(path string) error {
	data, err := xml.MarshalIndent(d, "", "  ")
	if err != nil {
		return merrors.NewMuddleBug("marshalling instructions document: %v", err)
	}
	out := append([]byte(xml.Header), data...)
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return merrors.NewGiveUp("writing instructions file %s: %v", path, err)
	}
	return nil
}
