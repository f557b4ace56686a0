// Package pathquery evaluates absolute child-step paths such as
// /annotation/object/name against stored XML documents. It streams the
// document token by token, so memory use is bounded by element depth and the
// size of one matched text value.
package pathquery

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"

	apperrors "github.com/Adithya-Monish-Kumar-K/labelmine/pkg/errors"
)

const textStep = "text()"

// Expr is a parsed path expression: a chain of element names starting at the
// document element.
type Expr struct {
	steps []string
}

// Parse accepts "a/b/c", "/a/b/c" and either form with a trailing "/text()".
// Wildcards, predicates, axes and empty steps are rejected.
func Parse(expr string) (Expr, error) {
	trimmed := strings.TrimSpace(expr)
	trimmed = strings.TrimPrefix(trimmed, "/")
	trimmed = strings.TrimSuffix(trimmed, "/"+textStep)
	if trimmed == "" {
		return Expr{}, apperrors.Newf(apperrors.ErrInvalidInput, "empty path expression %q", expr)
	}
	steps := strings.Split(trimmed, "/")
	for _, step := range steps {
		if step == "" {
			return Expr{}, apperrors.Newf(apperrors.ErrInvalidInput, "empty step in path expression %q", expr)
		}
		if strings.ContainsAny(step, "*[]@():") || step == "." || step == ".." {
			return Expr{}, apperrors.Newf(apperrors.ErrInvalidInput, "unsupported step %q in path expression %q", step, expr)
		}
	}
	return Expr{steps: steps}, nil
}

// MustParse is Parse for constant expressions.
func MustParse(expr string) Expr {
	e, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return e
}

func (e Expr) Steps() []string {
	return append([]string(nil), e.steps...)
}

// String renders the expression as an absolute text() selection.
func (e Expr) String() string {
	return "/" + strings.Join(e.steps, "/") + "/" + textStep
}

// Texts streams the document in r and calls yield once per text node that is
// a direct child of an element selected by e, in document order. Adjacent
// character data and CDATA sections form one text node; a child element,
// comment or processing instruction ends it. An element without text children
// yields nothing. Returning false from yield stops evaluation early without
// error.
func (e Expr) Texts(r io.Reader, yield func(string) bool) error {
	if len(e.steps) == 0 {
		return apperrors.New(apperrors.ErrInvalidInput, "zero path expression")
	}
	dec := newDecoder(r)

	// depth counts open elements; matched is how many leading steps the open
	// element chain satisfies.
	depth, matched := 0, 0
	var (
		text   strings.Builder
		inText bool
	)
	// flush ends the current text node, if any.
	flush := func() bool {
		if !inText {
			return true
		}
		inText = false
		s := text.String()
		text.Reset()
		return yield(s)
	}
	inSelected := func() bool {
		return matched == len(e.steps) && depth == matched
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("decoding xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if inSelected() && !flush() {
				return nil
			}
			depth++
			if matched == depth-1 && matched < len(e.steps) && t.Name.Local == e.steps[matched] {
				matched++
			}
		case xml.CharData:
			if inSelected() {
				text.Write(t)
				inText = true
			}
		case xml.Comment, xml.ProcInst, xml.Directive:
			if inSelected() && !flush() {
				return nil
			}
		case xml.EndElement:
			if inSelected() && !flush() {
				return nil
			}
			if matched == depth {
				matched--
			}
			depth--
		}
	}
}

// Collect evaluates e over content and returns every selected text.
func (e Expr) Collect(content []byte) ([]string, error) {
	var out []string
	err := e.Texts(bytes.NewReader(content), func(s string) bool {
		out = append(out, s)
		return true
	})
	return out, err
}

// WellFormed reports whether content is a single well-formed XML document.
func WellFormed(content []byte) error {
	dec := newDecoder(bytes.NewReader(content))
	roots, depth := 0, 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("malformed xml: %w", err)
		}
		switch tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
			}
			depth++
		case xml.EndElement:
			depth--
		}
	}
	if roots != 1 {
		return fmt.Errorf("malformed xml: expected one document element, found %d", roots)
	}
	return nil
}

// newDecoder returns a strict decoder that also accepts the legacy encodings
// (ISO-8859-1, windows-1252, ...) older annotation files declare.
func newDecoder(r io.Reader) *xml.Decoder {
	dec := xml.NewDecoder(r)
	dec.Strict = true
	dec.CharsetReader = charset.NewReaderLabel
	return dec
}
