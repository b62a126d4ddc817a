package stamp

import (
	"fmt"
	"html"
	"strings"

	"github.com/ianbruene/go-difflib/difflib"

	"github.com/muddle-build/muddle/internal/merrors"
)

// Mode selects one of spec.md §4.6's four stamp-diff renderings.
type Mode string

const (
	Unified Mode = "unified"
	Context Mode = "context"
	NDiff   Mode = "ndiff"
	HTML    Mode = "html"
)

// Diff compares two stamps' canonical text and renders the comparison in
// the requested mode, per spec.md §4.6's "Stamp diff produces a unified,
// context, ndiff or HTML comparison between two stamps." Grounded on
// surgeon/reposurgeon.go and tool/repotool.go's own
// difflib.LineDiffParams/GetUnifiedDiffString/GetContextDiffString usage
// for Unified/Context; NDiff and HTML are built directly on the same
// package's SequenceMatcher opcodes, which the teacher also uses directly
// in surgeon/inner.go's changelog-attribution analysis.
func Diff(a, b *Stamp, fromLabel, toLabel string, mode Mode) (string, error) {
	linesA := difflib.SplitLines(a.Render())
	linesB := difflib.SplitLines(b.Render())

	switch mode {
	case Unified:
		text, err := difflib.GetUnifiedDiffString(difflib.LineDiffParams{
			A: linesA, B: linesB, FromFile: fromLabel, ToFile: toLabel, Context: 3,
		})
		if err != nil {
			return "", merrors.NewGiveUp("computing unified stamp diff: %v", err)
		}
		return text, nil
	case Context:
		text, err := difflib.GetContextDiffString(difflib.LineDiffParams{
			A: linesA, B: linesB, FromFile: fromLabel, ToFile: toLabel, Context: 3,
		})
		if err != nil {
			return "", merrors.NewGiveUp("computing context stamp diff: %v", err)
		}
		return text, nil
	case NDiff:
		return ndiff(linesA, linesB), nil
	case HTML:
		return htmlDiff(linesA, linesB, fromLabel, toLabel), nil
	default:
		return "", merrors.NewGiveUp("unknown stamp diff mode %q", mode)
	}
}

// ndiff renders a over b in Python ndiff's "  "/"- "/"+ " line-prefix
// style, walking the same SequenceMatcher opcodes the teacher uses
// directly (surgeon/inner.go).
func ndiff(a, b []string) string {
	var out strings.Builder
	matcher := difflib.NewMatcherWithJunk(a, b, true, nil)
	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'e':
			for i := op.I1; i < op.I2; i++ {
				out.WriteString("  " + a[i])
			}
		case 'd':
			for i := op.I1; i < op.I2; i++ {
				out.WriteString("- " + a[i])
			}
		case 'i':
			for j := op.J1; j < op.J2; j++ {
				out.WriteString("+ " + b[j])
			}
		case 'r':
			for i := op.I1; i < op.I2; i++ {
				out.WriteString("- " + a[i])
			}
			for j := op.J1; j < op.J2; j++ {
				out.WriteString("+ " + b[j])
			}
		}
	}
	return out.String()
}

// htmlDiff renders a minimal, self-contained <table> HTML comparison -
// same opcode walk as ndiff, with <ins>/<del> marking the changed rows.
func htmlDiff(a, b []string, fromLabel, toLabel string) string {
	var out strings.Builder
	fmt.Fprintf(&out, "<table class=\"stamp-diff\">\n<tr><th>%s</th><th>%s</th></tr>\n",
		html.EscapeString(fromLabel), html.EscapeString(toLabel))

	matcher := difflib.NewMatcherWithJunk(a, b, true, nil)
	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'e':
			for i := op.I1; i < op.I2; i++ {
				fmt.Fprintf(&out, "<tr><td>%s</td><td>%s</td></tr>\n", escapeLine(a[i]), escapeLine(a[i]))
			}
		case 'd':
			for i := op.I1; i < op.I2; i++ {
				fmt.Fprintf(&out, "<tr><td><del>%s</del></td><td></td></tr>\n", escapeLine(a[i]))
			}
		case 'i':
			for j := op.J1; j < op.J2; j++ {
				fmt.Fprintf(&out, "<tr><td></td><td><ins>%s</ins></td></tr>\n", escapeLine(b[j]))
			}
		case 'r':
			max := op.I2 - op.I1
			if n := op.J2 - op.J1; n > max {
				max = n
			}
			for k := 0; k < max; k++ {
				left, right := "", ""
				if op.I1+k < op.I2 {
					left = "<del>" + escapeLine(a[op.I1+k]) + "</del>"
				}
				if op.J1+k < op.J2 {
					right = "<ins>" + escapeLine(b[op.J1+k]) + "</ins>"
				}
				fmt.Fprintf(&out, "<tr><td>%s</td><td>%s</td></tr>\n", left, right)
			}
		}
	}
	out.WriteString("</table>\n")
	return out.String()
}

func escapeLine(line string) string {
	return html.EscapeString(strings.TrimRight(line, "\n"))
}
