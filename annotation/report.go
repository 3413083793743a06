package annotation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/russross/blackfriday/v2"

	"github.com/lewtec/boxlabeler/internal/domain"
)

// Report summarizes the annotation state of a workspace.
type Report struct {
	Images     int
	Annotated  int
	Boxes      int
	Deleted    int
	Exportable int
	Labels     map[string]int
	States     map[domain.ReviewState]int
	Dirty      []domain.ImageID
}

// BuildReport counts the boxes of every annotation. Deleted boxes only count as Deleted.
func BuildReport(w *Workspace) *Report {
	r := &Report{
		Labels: map[string]int{},
		States: map[domain.ReviewState]int{},
		Dirty:  w.Annotations.Dirty(),
	}
	for _, a := range w.Annotations.Annotations() {
		r.Images++
		live := 0
		for _, box := range a.Boxes {
			if box.Deleted() {
				r.Deleted++
				continue
			}
			live++
			r.Labels[box.Label()]++
			r.States[box.State()]++
		}
		if live > 0 {
			r.Annotated++
		}
		r.Boxes += live
		r.Exportable += len(a.Exportable())
	}
	return r
}

func stringOr(str, or string) string {
	if str != "" {
		return str
	}
	return or
}

// Markdown renders the report as a Markdown document.
func (r *Report) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Annotation report\n\n")
	fmt.Fprintf(&b, "| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Images | %d |\n", r.Images)
	fmt.Fprintf(&b, "| Images with boxes | %d |\n", r.Annotated)
	fmt.Fprintf(&b, "| Boxes | %d |\n", r.Boxes)
	fmt.Fprintf(&b, "| Deleted boxes | %d |\n", r.Deleted)
	fmt.Fprintf(&b, "| Exportable boxes | %d |\n\n", r.Exportable)

	if len(r.Labels) > 0 {
		fmt.Fprintf(&b, "## Labels\n\n")
		labels := make([]string, 0, len(r.Labels))
		for label := range r.Labels {
			labels = append(labels, label)
		}
		slices.Sort(labels)
		for _, label := range labels {
			fmt.Fprintf(&b, "- **%s**: %d\n", stringOr(label, "(no label)"), r.Labels[label])
		}
		fmt.Fprintf(&b, "\n")
	}

	if len(r.States) > 0 {
		fmt.Fprintf(&b, "## Review states\n\n")
		states := make([]domain.ReviewState, 0, len(r.States))
		for s := range r.States {
			states = append(states, s)
		}
		slices.Sort(states)
		for _, s := range states {
			fmt.Fprintf(&b, "- `%s`: %d\n", s, r.States[s])
		}
		fmt.Fprintf(&b, "\n")
	}

	if len(r.Dirty) > 0 {
		fmt.Fprintf(&b, "## Unsaved changes\n\n")
		for _, id := range r.Dirty {
			fmt.Fprintf(&b, "- %s\n", id)
		}
	}
	return b.String()
}

// RenderHTML converts the Markdown form of the report to HTML.
func (r *Report) RenderHTML() []byte {
	return blackfriday.Run([]byte(r.Markdown()))
}
