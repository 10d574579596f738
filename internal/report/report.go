// Package report renders deployment outcomes for people and for machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/WPP-Public/akqa-nz-beam-sub001/internal/deploy"
	"github.com/WPP-Public/akqa-nz-beam-sub001/internal/result"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/color"
)

// FormatTotals returns the one-line summary of a result, e.g.
// "sent 3, received 0, created 1, deleted 0, attributes 2".
func FormatTotals(r *result.Result) string {
	totals := r.Summarize()
	parts := make([]string, 0, len(result.UpdateKinds))
	for _, kind := range result.UpdateKinds {
		parts = append(parts, fmt.Sprintf("%s %d", kind, totals[kind]))
	}
	return strings.Join(parts, ", ")
}

// FormatResult renders the displayable changes of r, grouped by update
// kind and file type and then by reason. kind narrows the listing to one
// update kind; result.AnyUpdate shows all.
func FormatResult(r *result.Result, kind result.UpdateKind) string {
	var sb strings.Builder

	groups := r.Groups(kind)
	if len(groups) == 0 {
		sb.WriteString(color.Dim("No changes.") + "\n")
	}
	for _, g := range groups {
		header := fmt.Sprintf("%s (%d):", g.Key(), g.Count())
		sb.WriteString(color.Update(string(g.Update), header) + "\n")
		for _, rg := range g.Reasons {
			reason := rg.Reason
			if reason == "" {
				reason = "-"
			}
			sb.WriteString("  " + color.Dim(reason) + "\n")
			for _, name := range rg.Filenames {
				sb.WriteString("    " + name + "\n")
			}
		}
	}

	sb.WriteString(color.Header("Totals:") + " " + FormatTotals(r) + "\n")
	return sb.String()
}

// FormatOutcome renders one server's outcome with a header line.
func FormatOutcome(o *deploy.Outcome, kind result.UpdateKind) string {
	var sb strings.Builder

	ref := color.Ref(o.Ref)
	if o.Revision != "" {
		ref += " (" + o.Revision + ")"
	}
	fmt.Fprintf(&sb, "%s %s %s", color.Header("Deployed"), ref, color.Server(o.Server))
	if o.DryRun {
		sb.WriteString(" " + color.Warning("[dry run]"))
	}
	sb.WriteString("\n")
	sb.WriteString(FormatResult(o.Result, kind))
	return sb.String()
}

// WriteText writes every outcome to w.
func WriteText(w io.Writer, outcomes []*deploy.Outcome, kind result.UpdateKind) error {
	for i, o := range outcomes {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, FormatOutcome(o, kind)); err != nil {
			return err
		}
	}
	return nil
}

// WriteJSON writes the outcomes as an indented JSON array.
func WriteJSON(w io.Writer, outcomes []*deploy.Outcome) error {
	if outcomes == nil {
		outcomes = []*deploy.Outcome{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(outcomes)
}
