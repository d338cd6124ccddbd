// Package note renders an encounter snapshot into a structured plain-text
// clinical note.
//
// Rendering is pure: it performs no I/O, never mutates the snapshot, and is
// safe for concurrent use. Sections are emitted in a fixed order and a
// section without content is omitted entirely rather than rendered as an
// empty header.
package note

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MrWong99/medscribe/internal/extract"
	"github.com/MrWong99/medscribe/internal/quality"
	"github.com/MrWong99/medscribe/pkg/clinical"
)

// Section titles, in render order.
const (
	TitleChiefComplaint = "Chief Complaint"
	TitleHPI            = "History of Present Illness"
	TitlePMH            = "Past Medical History"
	TitleMedications    = "Medications"
	TitleAllergies      = "Allergies"
	TitleExam           = "Physical Exam"
	TitleDifferential   = "Differential Considerations"
	TitleQuality        = "Quality Metrics"
)

// InsufficientData is the whole note for an encounter without segments.
const InsufficientData = "Insufficient data: no transcript has been processed for this encounter."

// Section is one titled block of the note.
type Section struct {
	Title string   `json:"title"`
	Lines []string `json:"lines"`
}

// Note is a rendered clinical note.
type Note struct {
	// Insufficient is set when the encounter had no segments; Sections is
	// then empty.
	Insufficient bool `json:"insufficient,omitempty"`

	ChiefComplaint string          `json:"chief_complaint,omitempty"`
	Sections       []Section       `json:"sections,omitempty"`
	Metrics        quality.Metrics `json:"metrics"`
}

// Build assembles the note for snap.
func Build(snap clinical.Snapshot) Note {
	if len(snap.Segments) == 0 {
		return Note{Insufficient: true, Metrics: quality.Score(snap)}
	}
	n := Note{
		ChiefComplaint: ChiefComplaint(snap),
		Metrics:        quality.Score(snap),
	}
	n.add(TitleChiefComplaint, nonEmpty(n.ChiefComplaint))
	n.add(TitleHPI, hpi(snap))
	n.add(TitlePMH, history(snap))
	n.add(TitleMedications, medications(snap))
	n.add(TitleAllergies, allergies(snap))
	n.add(TitleExam, exam(snap))
	n.add(TitleDifferential, differentials(snap))
	n.add(TitleQuality, metricLines(n.Metrics))
	return n
}

// Generate renders the note for snap as plain text.
func Generate(snap clinical.Snapshot) string {
	return Build(snap).String()
}

// ChiefComplaint returns the primary symptom as a chief complaint, or "" when
// no symptom has been detected.
func ChiefComplaint(snap clinical.Snapshot) string {
	primary, ok := quality.Primary(snap)
	if !ok {
		return ""
	}
	return capitalize(primary.Name)
}

func (n *Note) add(title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	n.Sections = append(n.Sections, Section{Title: title, Lines: lines})
}

// Section returns the section with the given title.
func (n Note) Section(title string) (Section, bool) {
	for _, s := range n.Sections {
		if s.Title == title {
			return s, true
		}
	}
	return Section{}, false
}

// String renders the note as plain text, one "## Title" header per section.
func (n Note) String() string {
	if n.Insufficient {
		return InsufficientData
	}
	var sb strings.Builder
	for i, s := range n.Sections {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("## ")
		sb.WriteString(s.Title)
		for _, l := range s.Lines {
			sb.WriteByte('\n')
			sb.WriteString(l)
		}
	}
	return sb.String()
}

// ── Medications, allergies and history ──────────────────────────────────────

func medications(snap clinical.Snapshot) []string {
	var lines []string
	for _, e := range sortedByName(snap.ByType(clinical.EntityMedication)) {
		parts := []string{e.Name}
		for _, key := range []string{clinical.AttrDose, clinical.AttrRoute, clinical.AttrFrequency} {
			if e.HasAttr(key) {
				parts = append(parts, e.Attributes[key].String())
			}
		}
		line := "- " + strings.Join(parts, " ")
		if brand, ok := e.Attr(clinical.AttrBrand); ok && !strings.EqualFold(brand.Text, e.Name) {
			line += fmt.Sprintf(" (as %s)", brand.Text)
		}
		lines = append(lines, line)
	}
	return lines
}

func allergies(snap clinical.Snapshot) []string {
	var lines []string
	for _, e := range sortedByName(snap.ByType(clinical.EntityAllergy)) {
		line := "- " + e.Name
		if e.HasAttr(clinical.AttrReaction) {
			line += ": " + joinAnd(e.Attributes[clinical.AttrReaction].List)
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 && snap.Negated(clinical.EntityAllergy, extract.NoKnownAllergies) {
		lines = append(lines, "No known drug allergies.")
	}
	return lines
}

func history(snap clinical.Snapshot) []string {
	var own, family []string
	for _, e := range sortedByName(snap.ByType(clinical.EntityHistory)) {
		if rel, ok := e.Attr(clinical.AttrRelation); ok && rel.Text != "" {
			family = append(family, fmt.Sprintf("%s (%s)", e.Name, rel.Text))
			continue
		}
		own = append(own, "- "+e.Name)
	}
	if len(family) > 0 {
		own = append(own, "Family history: "+joinAnd(family)+".")
	}
	return own
}

// ── Physical exam ───────────────────────────────────────────────────────────

// vitals lists the vital signs in render order with their abbreviation and
// default unit.
var vitals = []struct {
	name, abbr, unit string
}{
	{"blood pressure", "BP", "mmHg"},
	{"heart rate", "HR", "bpm"},
	{"respiratory rate", "RR", "breaths/min"},
	{"temperature", "Temp", "°F"},
	{"oxygen saturation", "SpO2", "%"},
}

func exam(snap clinical.Snapshot) []string {
	findings := snap.ByType(clinical.EntityFinding)

	var vs []string
	for _, v := range vitals {
		for _, f := range findings {
			if f.Name != v.name || !f.HasAttr(clinical.AttrValue) {
				continue
			}
			unit := v.unit
			if u, ok := f.Attr(clinical.AttrUnit); ok && u.Text != "" {
				unit = u.Text
			}
			sep := " "
			if unit == "%" {
				sep = ""
			}
			vs = append(vs, v.abbr+" "+f.Attributes[clinical.AttrValue].String()+sep+unit)
			break
		}
	}

	var lines []string
	if len(vs) > 0 {
		lines = append(lines, "Vitals: "+strings.Join(vs, ", ")+".")
	}
	for _, f := range sortedByName(findings) {
		if f.Family == "vital" || isVital(f.Name) {
			continue
		}
		lines = append(lines, "- "+capitalize(f.Name))
	}
	return lines
}

func isVital(name string) bool {
	for _, v := range vitals {
		if v.name == name {
			return true
		}
	}
	return false
}

// ── Quality metrics ─────────────────────────────────────────────────────────

func metricLines(m quality.Metrics) []string {
	completeness := fmt.Sprintf("Completeness: %.0f%%", m.Completeness*100)
	if m.PrimarySymptom != "" && len(m.Missing) > 0 {
		missing := make([]string, len(m.Missing))
		for i, f := range m.Missing {
			missing[i] = strings.ReplaceAll(string(f), "_", " ")
		}
		completeness += " (missing: " + strings.Join(missing, ", ") + ")"
	}
	return []string{
		completeness,
		fmt.Sprintf("Confidence: %.2f", m.Confidence),
		"Specificity: " + string(m.Specificity),
	}
}

// ── Helpers ─────────────────────────────────────────────────────────────────

func sortedByName(es []clinical.Entity) []clinical.Entity {
	slices.SortStableFunc(es, func(a, b clinical.Entity) int {
		return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return es
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}

func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

// joinAnd joins items as "a", "a and b" or "a, b and c".
func joinAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}
