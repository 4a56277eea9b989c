package sessionctx

import "strings"

// FieldsWith returns fields of the given usage in build order.
func (sc *SessionContext) FieldsWith(u Usage) []TaggedContextField {
	var out []TaggedContextField
	for _, f := range sc.Fields {
		if f.Usage() == u {
			out = append(out, f)
		}
	}
	return out
}

// DirectSummary is safe to show to the customer as-is.
func (sc *SessionContext) DirectSummary() string {
	return render(sc.FieldsWith(Direct))
}

// SoftSummary holds inferences the agent may use to steer but must confirm
// before stating.
func (sc *SessionContext) SoftSummary() string {
	return render(sc.FieldsWith(Soft))
}

// Prompt is the text handed to a language-model backend. Influence-only
// fields appear only as category names.
func (sc *SessionContext) Prompt() string {
	var b strings.Builder
	b.WriteString("Identity tier: " + string(sc.Tier) + "\n")
	if d := sc.DirectSummary(); d != "" {
		b.WriteString("\nKnown customer facts (may be referenced directly):\n")
		b.WriteString(d)
	}
	if s := sc.SoftSummary(); s != "" {
		b.WriteString("\nInferred signals (confirm before referencing):\n")
		b.WriteString(s)
	}
	if len(sc.EnrichmentMissing) > 0 {
		b.WriteString("\nProfile fields worth learning naturally: " + strings.Join(sc.EnrichmentMissing, ", ") + "\n")
	}
	if len(sc.CategoryBias) > 0 {
		b.WriteString("\nPrefer these catalog categories when suggesting products: " + strings.Join(sc.CategoryBias, ", ") + "\n")
	}
	return b.String()
}

func render(fields []TaggedContextField) string {
	if len(fields) == 0 {
		return ""
	}
	var b strings.Builder
	for _, f := range fields {
		b.WriteString("- ")
		b.WriteString(f.Key)
		b.WriteString(": ")
		b.WriteString(f.Value)
		b.WriteString("\n")
	}
	return b.String()
}
