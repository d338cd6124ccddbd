package note

import (
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/medscribe/internal/quality"
	"github.com/MrWong99/medscribe/pkg/clinical"
)

// hpi assembles the history of present illness: a narrative for the primary
// symptom, then the other symptoms, then pertinent negatives.
func hpi(snap clinical.Snapshot) []string {
	var sentences []string

	primary, ok := quality.Primary(snap)
	if ok {
		sentences = append(sentences, narrative(snap, primary)...)
	}

	var others []string
	for _, e := range snap.ByType(clinical.EntitySymptom) {
		if ok && (e.ID == primary.ID || related(primary, e.ID)) {
			continue
		}
		others = append(others, e.Name)
	}
	if len(others) > 0 {
		lead := "Patient reports "
		if ok {
			lead = "Patient also reports "
		}
		sentences = append(sentences, lead+joinAnd(others)+".")
	}

	var denied []string
	for _, n := range snap.Negatives {
		if n.Type == clinical.EntitySymptom || n.Type == clinical.EntityFinding {
			denied = append(denied, n.Name)
		}
	}
	if len(denied) > 0 {
		sentences = append(sentences, "Patient denies "+joinAnd(denied)+".")
	}

	if len(sentences) == 0 {
		return nil
	}
	return []string{strings.Join(sentences, " ")}
}

// narrative renders the primary symptom as subject, onset and context,
// followed by location, character, severity, radiation, timing, modifying
// factors and associated findings.
func narrative(snap clinical.Snapshot, e clinical.Entity) []string {
	opening := "Patient reports " + e.Name
	if tv, ok := e.Temporal[clinical.AnchorOnset]; ok {
		opening += " that started " + tv.Expression
	}
	if ctx, ok := e.Attr(clinical.AttrContext); ok && ctx.Text != "" {
		opening += " " + ctx.Text
	}
	out := []string{opening + "."}

	if tv, ok := e.Temporal[clinical.AnchorDuration]; ok && tv.Offset > 0 {
		out = append(out, "It has lasted "+humanize(tv.Offset)+".")
	}
	if loc, ok := e.Attr(clinical.AttrLocation); ok && loc.Text != "" && !strings.Contains(e.Name, loc.Text) {
		out = append(out, "It is located in the "+place(loc.Text)+".")
	}
	if ch := e.Attributes[clinical.AttrCharacter]; len(ch.List) > 0 {
		out = append(out, "It is described as "+joinAnd(ch.List)+".")
	}
	if sev, ok := e.Attr(clinical.AttrSeverity); ok {
		switch sev.Kind {
		case clinical.ValueNumber:
			out = append(out, fmt.Sprintf("Severity is rated %s/10.", sev.String()))
		case clinical.ValueText:
			out = append(out, "Severity is described as "+sev.Text+".")
		}
	}
	if rad := e.Attributes[clinical.AttrRadiation]; len(rad.List) > 0 {
		out = append(out, "It radiates to the "+joinAnd(rad.List)+".")
	}
	if tm, ok := e.Attr(clinical.AttrTiming); ok && tm.Text != "" {
		out = append(out, "It is "+tm.Text+".")
	}

	worse := factors(snap, e, clinical.AttrAggravating, clinical.RelWorsensWith)
	better := factors(snap, e, clinical.AttrAlleviating, clinical.RelAlleviatesWith)
	switch {
	case len(worse) > 0 && len(better) > 0:
		out = append(out, "It is worse with "+joinAnd(worse)+" and better with "+joinAnd(better)+".")
	case len(worse) > 0:
		out = append(out, "It is worse with "+joinAnd(worse)+".")
	case len(better) > 0:
		out = append(out, "It is better with "+joinAnd(better)+".")
	}

	var assoc []string
	for _, id := range e.Related(clinical.RelAssociatedWith) {
		if other, ok := snap.Entity(id); ok && !other.Denied {
			assoc = append(assoc, other.Name)
		}
	}
	if len(assoc) > 0 {
		out = append(out, "Associated symptoms include "+joinAnd(assoc)+".")
	}
	return out
}

// factors merges the factor list stored under key with the names of entities
// linked by kind, without duplicates.
func factors(snap clinical.Snapshot, e clinical.Entity, key string, kind clinical.RelationKind) []string {
	list := clinical.ListValue(1, e.Attributes[key].List...)
	for _, id := range e.Related(kind) {
		if other, ok := snap.Entity(id); ok {
			list = clinical.ListValue(1, append(list.List, other.Name)...)
		}
	}
	return list.List
}

func related(e clinical.Entity, id clinical.EntityID) bool {
	for _, r := range e.Relationships {
		if r.Other(e.ID) == id {
			return true
		}
	}
	return false
}

// place renders a "part/qualifier" location such as "chest/center" as
// "center of the chest".
func place(loc string) string {
	part, qual, ok := strings.Cut(loc, "/")
	if !ok || qual == "" {
		return loc
	}
	return qual + " of the " + part
}

// humanize renders d in the largest unit that divides it evenly.
func humanize(d time.Duration) string {
	const (
		day  = 24 * time.Hour
		week = 7 * day
	)
	units := []struct {
		size time.Duration
		name string
	}{
		{week, "week"},
		{day, "day"},
		{time.Hour, "hour"},
		{time.Minute, "minute"},
	}
	for _, u := range units {
		if d >= u.size && d%u.size == 0 {
			n := int64(d / u.size)
			if n == 1 {
				return "1 " + u.name
			}
			return fmt.Sprintf("%d %ss", n, u.name)
		}
	}
	return d.Round(time.Second).String()
}
