package browser

import (
	"slices"
	"strings"
)

// Element is a node of the page document. Key is the host's stable handle
// for the node; ID is the DOM id attribute and may be empty.
type Element struct {
	Key      string
	ID       string
	Tag      string
	Href     string
	LinkHost string
	Text     string

	// Top and Height place the element in document coordinates.
	Top    float64
	Height float64

	Parent   *Element
	Children []*Element

	classes []string
	style   map[string]string
}

// NewElement creates a detached element.
func NewElement(key, tag string, classes ...string) *Element {
	return &Element{Key: key, Tag: strings.ToLower(tag), classes: slices.Clone(classes)}
}

// HasClass reports whether the class list contains class.
func (e *Element) HasClass(class string) bool {
	return slices.Contains(e.classes, class)
}

// AddClass adds class to the class list and reports whether it was absent.
func (e *Element) AddClass(class string) bool {
	if e.HasClass(class) {
		return false
	}
	e.classes = append(e.classes, class)
	return true
}

// Classes returns a copy of the class list.
func (e *Element) Classes() []string {
	return slices.Clone(e.classes)
}

// SetStyle sets an inline style property.
func (e *Element) SetStyle(property, value string) {
	if e.style == nil {
		e.style = make(map[string]string)
	}
	e.style[property] = value
}

// Style returns an inline style property.
func (e *Element) Style(property string) string {
	return e.style[property]
}

// AppendChild attaches child as the last child of e.
func (e *Element) AppendChild(child *Element) {
	child.Parent = e
	e.Children = append(e.Children, child)
}

// HasAncestor reports whether some ancestor has the given tag.
func (e *Element) HasAncestor(tag string) bool {
	for p := e.Parent; p != nil; p = p.Parent {
		if p.Tag == tag {
			return true
		}
	}
	return false
}

// Closest returns e or its nearest ancestor with the given tag.
func (e *Element) Closest(tag string) *Element {
	for el := e; el != nil; el = el.Parent {
		if el.Tag == tag {
			return el
		}
	}
	return nil
}

// Document is the element tree of a page.
type Document struct {
	Body *Element
}

// NewDocument creates a document with an empty body.
func NewDocument() *Document {
	return &Document{Body: NewElement("body", "body")}
}

// QueryAll returns the elements under body matching m, in tree order.
func (d *Document) QueryAll(m Matcher) []*Element {
	if d == nil || d.Body == nil {
		return nil
	}
	var out []*Element
	var walk func(*Element)
	walk = func(el *Element) {
		for _, c := range el.Children {
			if m(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(d.Body)
	return out
}

// ByKey finds an element by its host key.
func (d *Document) ByKey(key string) *Element {
	if d == nil || d.Body == nil {
		return nil
	}
	if d.Body.Key == key {
		return d.Body
	}
	found := d.QueryAll(func(el *Element) bool { return el.Key == key })
	if len(found) == 0 {
		return nil
	}
	return found[0]
}

// Contains reports whether el is attached under body.
func (d *Document) Contains(el *Element) bool {
	if d == nil || d.Body == nil {
		return false
	}
	for p := el; p != nil; p = p.Parent {
		if p == d.Body {
			return true
		}
	}
	return false
}

// Matcher is a tiny stand-in for a CSS selector.
type Matcher func(*Element) bool

// ByClass matches ".class".
func ByClass(class string) Matcher {
	return func(el *Element) bool { return el.HasClass(class) }
}

// Descendant matches "ancestor tag".
func Descendant(ancestor, tag string) Matcher {
	return func(el *Element) bool { return el.Tag == tag && el.HasAncestor(ancestor) }
}

// Child matches "parent > tag".
func Child(parent, tag string) Matcher {
	return func(el *Element) bool { return el.Tag == tag && el.Parent != nil && el.Parent.Tag == parent }
}

// LinkTo matches anchors whose href starts with prefix.
func LinkTo(prefix string) Matcher {
	return func(el *Element) bool { return el.Tag == "a" && strings.HasPrefix(el.Href, prefix) }
}

// Any matches when one of ms matches, like a selector list.
func Any(ms ...Matcher) Matcher {
	return func(el *Element) bool {
		for _, m := range ms {
			if m(el) {
				return true
			}
		}
		return false
	}
}
