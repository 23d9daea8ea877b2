package spec

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"gopkg.in/yaml.v3"
)

// Docs is the documentation table of a service. Entries are raw HTML
// fragments; lookups return tag-stripped paragraphs. A nil *Docs is valid
// and returns nothing.
type Docs struct {
	Service    string            `yaml:"service"`
	Operations map[string]string `yaml:"operations"`
	Shapes     map[string]struct {
		Base string            `yaml:"base"`
		Refs map[string]string `yaml:"refs"`
	} `yaml:"shapes"`

	members map[string]string
}

// ParseDocs decodes a documentation table.
func ParseDocs(data []byte) (*Docs, error) {
	var d Docs
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse docs: %w", err)
	}
	d.index()
	return &d, nil
}

// NewDocs builds a documentation table in memory. members is keyed by
// "<Shape>$<member>".
func NewDocs(service string, operations, members map[string]string) *Docs {
	d := &Docs{Service: service, Operations: operations}
	d.members = make(map[string]string, len(members))
	for k, v := range members {
		d.members[k] = v
	}
	return d
}

// member refs are stored under the target shape; index them by container.
func (d *Docs) index() {
	d.members = make(map[string]string)
	for _, s := range d.Shapes {
		for key, text := range s.Refs {
			if strings.TrimSpace(text) != "" {
				d.members[key] = text
			}
		}
	}
}

// ServiceDoc returns the service description paragraphs.
func (d *Docs) ServiceDoc() []string {
	if d == nil {
		return nil
	}
	return StripTags(d.Service)
}

// OperationDoc returns the documentation paragraphs of an operation.
func (d *Docs) OperationDoc(name string) []string {
	if d == nil {
		return nil
	}
	return StripTags(d.Operations[name])
}

// MemberDoc returns the documentation paragraphs of a structure member.
func (d *Docs) MemberDoc(shape, member string) []string {
	if d == nil {
		return nil
	}
	return StripTags(d.members[shape+"$"+member])
}

// blockTags end the current paragraph.
var blockTags = map[string]bool{
	"p": true, "br": true, "li": true, "ul": true, "ol": true, "div": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"note": true, "important": true, "dl": true, "dt": true, "dd": true,
	"pre": true, "table": true, "tr": true,
}

// StripTags removes markup from an HTML fragment and returns its text as
// paragraphs in source order. Whitespace inside a paragraph is collapsed and
// entities are unescaped.
func StripTags(fragment string) []string {
	if strings.TrimSpace(fragment) == "" {
		return nil
	}
	var (
		out []string
		cur strings.Builder
	)
	flush := func() {
		if text := strings.Join(strings.Fields(cur.String()), " "); text != "" {
			out = append(out, text)
		}
		cur.Reset()
	}
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or a truncated fragment; keep what was read
			flush()
			return out
		case html.TextToken:
			cur.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if blockTags[string(name)] {
				flush()
			}
		}
	}
}
