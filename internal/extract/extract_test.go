package extract_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/medscribe/internal/extract"
	"github.com/MrWong99/medscribe/pkg/clinical"
)

// ─────────────────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────────────────

func patient(id int, text string) clinical.Segment {
	return clinical.Segment{ID: id, Speaker: clinical.SpeakerPatient, Text: text, Confidence: 1}
}

func doctor(id int, text string) clinical.Segment {
	return clinical.Segment{ID: id, Speaker: clinical.SpeakerDoctor, Text: text, Confidence: 1}
}

// find returns the first candidate with the given type and name.
func find(t *testing.T, res extract.Result, typ clinical.EntityType, name string) extract.Candidate {
	t.Helper()
	for _, c := range res.Candidates {
		if c.Type == typ && c.Name == name {
			return c
		}
	}
	t.Fatalf("no %s candidate %q in %+v", typ, name, res.Candidates)
	return extract.Candidate{}
}

// pronoun returns the index of the only reference candidate.
func pronoun(t *testing.T, res extract.Result) int {
	t.Helper()
	idx := -1
	for i, c := range res.Candidates {
		if c.Kind == clinical.ReferencePronoun {
			if idx >= 0 {
				t.Fatalf("more than one pronoun in %v", names(res))
			}
			idx = i
		}
	}
	if idx < 0 {
		t.Fatalf("no pronoun in %v", names(res))
	}
	return idx
}

func names(res extract.Result) []string {
	var out []string
	for _, c := range res.Candidates {
		out = append(out, string(c.Type)+":"+c.Name)
	}
	return out
}

var x = extract.New(nil)

// ─────────────────────────────────────────────────────────────────────────────
// Direct mentions
// ─────────────────────────────────────────────────────────────────────────────

func TestExtract_DirectSymptom(t *testing.T) {
	t.Parallel()

	res := x.Extract(patient(1, "I have chest pain."), &extract.Dialogue{})
	c := find(t, res, clinical.EntitySymptom, "chest pain")
	if c.Kind != clinical.ReferenceDirect {
		t.Errorf("Kind = %q, want direct", c.Kind)
	}
	if c.Confidence != extract.ExactConfidence {
		t.Errorf("Confidence = %v, want %v", c.Confidence, extract.ExactConfidence)
	}
	if c.Text != "chest pain" {
		t.Errorf("Text = %q, want %q", c.Text, "chest pain")
	}
	if loc := c.Attributes[clinical.AttrLocation]; loc.Text != "chest" {
		t.Errorf("location = %q, want implied %q", loc.Text, "chest")
	}
	if len(res.Negatives) != 0 {
		t.Errorf("Negatives = %+v, want none", res.Negatives)
	}
}

func TestExtract_SegmentConfidenceScales(t *testing.T) {
	t.Parallel()

	seg := patient(1, "I feel nauseous.")
	seg.Confidence = 0.5
	res := x.Extract(seg, nil)
	c := find(t, res, clinical.EntitySymptom, "nausea")
	if want := extract.ExactConfidence * 0.5; c.Confidence != want {
		t.Errorf("Confidence = %v, want %v", c.Confidence, want)
	}
}

func TestExtract_PossessiveHurts(t *testing.T) {
	t.Parallel()

	res := x.Extract(patient(1, "My stomach hurts."), nil)
	c := find(t, res, clinical.EntitySymptom, "abdominal pain")
	if loc := c.Attributes[clinical.AttrLocation]; loc.Text != "abdomen" {
		t.Errorf("location = %q, want %q", loc.Text, "abdomen")
	}
}

func TestExtract_EmptySegment(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", "   ", "..."} {
		res := x.Extract(patient(1, text), nil)
		if len(res.Candidates) != 0 || len(res.Negatives) != 0 {
			t.Errorf("Extract(%q) = %+v, want nothing", text, res)
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Negation
// ─────────────────────────────────────────────────────────────────────────────

func TestExtract_Negation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text         string
		wantNegative []string
		wantPositive []string
	}{
		{"No chest pain.", []string{"chest pain"}, nil},
		{"He denies nausea or vomiting.", []string{"nausea", "vomiting"}, nil},
		{"I've been sweaty but no nausea.", []string{"nausea"}, []string{"diaphoresis"}},
		{"I don't have a headache.", []string{"headache"}, nil},
		{"No, it's the chest pain that worries me.", nil, []string{"chest pain"}},
	}
	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			t.Parallel()
			res := x.Extract(patient(1, tc.text), nil)

			var neg []string
			for _, n := range res.Negatives {
				neg = append(neg, n.Name)
			}
			if diff := cmp.Diff(tc.wantNegative, neg); diff != "" {
				t.Errorf("negatives mismatch (-want +got):\n%s", diff)
			}
			var pos []string
			for _, c := range res.Candidates {
				if c.Type == clinical.EntitySymptom && c.Kind == clinical.ReferenceDirect {
					pos = append(pos, c.Name)
				}
			}
			if diff := cmp.Diff(tc.wantPositive, pos); diff != "" {
				t.Errorf("positives mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtract_NegationOnlyDenied(t *testing.T) {
	t.Parallel()

	res := x.Extract(patient(1, "No chest pain."), nil)
	if len(res.Candidates) != 0 {
		t.Errorf("Candidates = %v, want none", names(res))
	}
	if len(res.Negatives) != 1 {
		t.Fatalf("Negatives = %+v, want 1", res.Negatives)
	}
	n := res.Negatives[0]
	if n.Type != clinical.EntitySymptom || n.Name != "chest pain" || n.SegmentID != 1 {
		t.Errorf("negative = %+v", n)
	}
}

func TestExtract_PertinentNegativesDisabled(t *testing.T) {
	t.Parallel()

	xx := extract.New(nil, extract.WithPertinentNegatives(false))
	res := xx.Extract(patient(1, "No chest pain."), nil)
	if len(res.Candidates) != 0 || len(res.Negatives) != 0 {
		t.Errorf("Extract = %+v, want nothing", res)
	}
}

func TestExtract_NegationWindow(t *testing.T) {
	t.Parallel()

	text := "No, really, honestly I think maybe some nausea."
	narrow := extract.New(nil, extract.WithNegationWindow(1))
	if res := narrow.Extract(patient(1, text), nil); len(res.Negatives) != 0 {
		t.Errorf("window 1: Negatives = %+v, want none", res.Negatives)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Attributes
// ─────────────────────────────────────────────────────────────────────────────

func TestExtract_NumericSeverityBeatsDescriptive(t *testing.T) {
	t.Parallel()

	res := x.Extract(patient(1, "I have severe pain, about 7 out of 10."), nil)
	c := find(t, res, clinical.EntitySymptom, "pain")
	sev, ok := c.Attributes[clinical.AttrSeverity]
	if !ok {
		t.Fatalf("no severity on %+v", c)
	}
	if sev.Kind != clinical.ValueNumber || sev.Number != 7 {
		t.Errorf("severity = %+v, want number 7", sev)
	}
}

func TestExtract_DescriptiveSeverity(t *testing.T) {
	t.Parallel()

	res := x.Extract(patient(1, "The headache is really bad."), nil)
	c := find(t, res, clinical.EntitySymptom, "headache")
	if sev := c.Attributes[clinical.AttrSeverity]; sev.Text != "severe" {
		t.Errorf("severity = %+v, want severe", sev)
	}
}

func TestExtract_LocationTieBreak(t *testing.T) {
	t.Parallel()

	res := x.Extract(patient(1, "I have pain in the center of my chest, radiating to the left arm."), nil)
	c := find(t, res, clinical.EntitySymptom, "chest pain")
	if loc := c.Attributes[clinical.AttrLocation]; loc.Text != "chest/center" {
		t.Errorf("location = %q, want %q", loc.Text, "chest/center")
	}
	if rad := c.Attributes[clinical.AttrRadiation]; !rad.Contains("left arm") {
		t.Errorf("radiation = %v, want to contain %q", rad.List, "left arm")
	}
}

func TestExtract_RadiationList(t *testing.T) {
	t.Parallel()

	res := x.Extract(patient(1, "The chest pain goes to my left arm and jaw."), nil)
	c := find(t, res, clinical.EntitySymptom, "chest pain")
	rad := c.Attributes[clinical.AttrRadiation]
	if diff := cmp.Diff([]string{"left arm", "jaw"}, rad.List); diff != "" {
		t.Errorf("radiation mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_PronounOwnsAttributes(t *testing.T) {
	t.Parallel()

	res := x.Extract(patient(2, "It's crushing, like an elephant sitting on my chest."), nil)
	if len(res.Candidates) != 1 {
		t.Fatalf("Candidates = %v, want one pronoun", names(res))
	}
	c := res.Candidates[0]
	if c.Kind != clinical.ReferencePronoun {
		t.Errorf("Kind = %q, want pronoun", c.Kind)
	}
	if diff := cmp.Diff([]clinical.EntityType{clinical.EntitySymptom}, c.Compatible); diff != "" {
		t.Errorf("Compatible mismatch (-want +got):\n%s", diff)
	}
	ch := c.Attributes[clinical.AttrCharacter]
	if !ch.Contains("crushing") || !ch.Contains("pressure") {
		t.Errorf("character = %v, want crushing and pressure", ch.List)
	}
}

func TestExtract_FillerPronounsAreDropped(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"I guess it is what it is.", "Anyway it happens.", "It is."} {
		res := x.Extract(patient(4, text), nil)
		if len(res.Candidates) != 0 {
			t.Errorf("Extract(%q) = %v, want no candidates", text, names(res))
		}
	}

	// A pronoun that owns a time expression is kept.
	res := x.Extract(patient(5, "It started 2 days ago."), nil)
	if i := pronoun(t, res); len(res.Temporals) != 1 || res.Temporals[0].Owner != i {
		t.Errorf("Temporals = %+v, want one owned by the pronoun", res.Temporals)
	}
}

func TestExtract_TimingAndModifier(t *testing.T) {
	t.Parallel()

	res := x.Extract(patient(1, "It's constant and worse when I walk."), nil)
	p := pronoun(t, res)
	pron := res.Candidates[p]
	if tm := pron.Attributes[clinical.AttrTiming]; tm.Text != "constant" {
		t.Errorf("timing = %q, want constant", tm.Text)
	}
	if agg := pron.Attributes[clinical.AttrAggravating]; !agg.Contains("exertion") {
		t.Errorf("aggravating = %v, want exertion", agg.List)
	}
	act := find(t, res, clinical.EntityActivity, "exertion")
	if len(res.Links) != 1 {
		t.Fatalf("Links = %+v, want 1", res.Links)
	}
	l := res.Links[0]
	if l.Kind != clinical.RelWorsensWith || l.From != p || res.Candidates[l.To].Name != act.Name {
		t.Errorf("link = %+v", l)
	}
}

func TestExtract_Context(t *testing.T) {
	t.Parallel()

	res := x.Extract(patient(1, "It started about 2 hours ago while I was shoveling snow."), nil)
	if len(res.Candidates) != 1 {
		t.Fatalf("Candidates = %v, want one pronoun", names(res))
	}
	c := res.Candidates[0]
	if ctx := c.Attributes[clinical.AttrContext]; ctx.Text != "while shoveling snow" {
		t.Errorf("context = %q", ctx.Text)
	}
	if len(res.Temporals) != 1 || res.Temporals[0].Owner != 0 {
		t.Fatalf("Temporals = %+v, want one owned by the pronoun", res.Temporals)
	}
	if e := res.Temporals[0].Expr; e.Kind != clinical.AnchorOnset || e.Text != "about 2 hours ago" {
		t.Errorf("temporal = %+v", e)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Medications and allergies
// ─────────────────────────────────────────────────────────────────────────────

func TestExtract_BrandMapsToGeneric(t *testing.T) {
	t.Parallel()

	res := x.Extract(patient(1, "I took some Tylenol this morning."), nil)
	c := find(t, res, clinical.EntityMedication, "acetaminophen")
	if c.Confidence != extract.BrandConfidence {
		t.Errorf("Confidence = %v, want %v", c.Confidence, extract.BrandConfidence)
	}
	if b := c.Attributes[clinical.AttrBrand]; b.Text != "Tylenol" {
		t.Errorf("brand = %q, want Tylenol", b.Text)
	}
}

func TestExtract_MedicationDetails(t *testing.T) {
	t.Parallel()

	res := x.Extract(patient(1, "I take lisinopril 10 milligrams by mouth twice a day."), nil)
	c := find(t, res, clinical.EntityMedication, "lisinopril")
	want := map[string]string{
		clinical.AttrDose:      "10 mg",
		clinical.AttrRoute:     "by mouth",
		clinical.AttrFrequency: "twice daily",
	}
	for k, v := range want {
		if got := c.Attributes[k].Text; got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestExtract_FuzzyMedication(t *testing.T) {
	t.Parallel()

	res := x.Extract(patient(1, "I take lisinoprill every day."), nil)
	c := find(t, res, clinical.EntityMedication, "lisinopril")
	if c.Rule != "fuzzy" {
		t.Errorf("Rule = %q, want fuzzy", c.Rule)
	}
	if c.Confidence >= extract.ExactConfidence || c.Confidence <= 0 {
		t.Errorf("Confidence = %v, want below exact", c.Confidence)
	}
}

func TestExtract_AllergyWithReaction(t *testing.T) {
	t.Parallel()

	res := x.Extract(patient(1, "Penicillin gives me a rash."), nil)
	c := find(t, res, clinical.EntityAllergy, "penicillin")
	if r := c.Attributes[clinical.AttrReaction]; !r.Contains("rash") {
		t.Errorf("reaction = %v, want rash", r.List)
	}
	for _, cand := range res.Candidates {
		if cand.Type == clinical.EntityMedication {
			t.Errorf("unexpected medication candidate %+v", cand)
		}
	}
}

func TestExtract_AllergicTo(t *testing.T) {
	t.Parallel()

	res := x.Extract(patient(1, "I'm allergic to sulfa and codeine, but I take aspirin."), nil)
	find(t, res, clinical.EntityAllergy, "sulfa")
	find(t, res, clinical.EntityAllergy, "codeine")
	find(t, res, clinical.EntityMedication, "aspirin")
}

func TestExtract_NoKnownAllergies(t *testing.T) {
	t.Parallel()

	res := x.Extract(patient(1, "No known drug allergies."), nil)
	if len(res.Candidates) != 0 {
		t.Errorf("Candidates = %v, want none", names(res))
	}
	if len(res.Negatives) != 1 || res.Negatives[0].Name != extract.NoKnownAllergies {
		t.Errorf("Negatives = %+v", res.Negatives)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// History, vitals and exam
// ─────────────────────────────────────────────────────────────────────────────

func TestExtract_History(t *testing.T) {
	t.Parallel()

	res := x.Extract(patient(1, "I have high blood pressure and my father had a heart attack."), nil)
	htn := find(t, res, clinical.EntityHistory, "hypertension")
	if _, ok := htn.Attributes[clinical.AttrRelation]; ok {
		t.Errorf("hypertension has a relation: %+v", htn.Attributes)
	}
	mi := find(t, res, clinical.EntityHistory, "myocardial infarction")
	if rel := mi.Attributes[clinical.AttrRelation]; rel.Text != "father" {
		t.Errorf("relation = %q, want father", rel.Text)
	}
	for _, c := range res.Candidates {
		if c.Type == clinical.EntityFinding {
			t.Errorf("blood pressure history read as a vital: %+v", c)
		}
	}
}

func TestExtract_Vitals(t *testing.T) {
	t.Parallel()

	res := x.Extract(doctor(15, "Your blood pressure is 168/95 and heart rate is 102."), nil)
	bp := find(t, res, clinical.EntityFinding, "blood pressure")
	if v := bp.Attributes[clinical.AttrValue]; v.Text != "168/95" {
		t.Errorf("bp = %+v, want 168/95", v)
	}
	if u := bp.Attributes[clinical.AttrUnit]; u.Text != "mmHg" {
		t.Errorf("bp unit = %q", u.Text)
	}
	hr := find(t, res, clinical.EntityFinding, "heart rate")
	if v := hr.Attributes[clinical.AttrValue]; v.Kind != clinical.ValueNumber || v.Number != 102 {
		t.Errorf("hr = %+v, want 102", v)
	}
	if len(res.Candidates) != 2 {
		t.Errorf("Candidates = %v, want only the two vitals", names(res))
	}
}

func TestExtract_ExamFindingsClinicianOnly(t *testing.T) {
	t.Parallel()

	text := "Lungs are clear, there is no murmur."
	res := x.Extract(doctor(1, text), nil)
	find(t, res, clinical.EntityFinding, "lungs clear to auscultation")
	if len(res.Negatives) != 1 || res.Negatives[0].Name != "murmur" {
		t.Errorf("Negatives = %+v, want murmur", res.Negatives)
	}

	res = x.Extract(patient(1, text), nil)
	for _, c := range res.Candidates {
		if c.Type == clinical.EntityFinding {
			t.Errorf("patient produced a finding: %+v", c)
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Dialogue
// ─────────────────────────────────────────────────────────────────────────────

func TestExtract_QuestionsProduceNothing(t *testing.T) {
	t.Parallel()

	d := &extract.Dialogue{}
	res := x.Extract(doctor(1, "Do you have any chest pain?"), d)
	if !res.Question {
		t.Error("Question = false, want true")
	}
	if len(res.Candidates) != 0 || len(res.Negatives) != 0 {
		t.Errorf("question produced %+v", res)
	}
	if d.Topic() != extract.TopicSymptoms {
		t.Errorf("Topic = %q, want symptoms", d.Topic())
	}
	if diff := cmp.Diff([]string{"chest pain"}, d.Asked()); diff != "" {
		t.Errorf("Asked mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_YesNoAnswers(t *testing.T) {
	t.Parallel()

	t.Run("yes", func(t *testing.T) {
		t.Parallel()
		d := &extract.Dialogue{}
		x.Extract(doctor(1, "Any nausea or sweating?"), d)
		res := x.Extract(patient(2, "Yes."), d)
		for _, name := range []string{"nausea", "diaphoresis"} {
			c := find(t, res, clinical.EntitySymptom, name)
			if c.Confidence != extract.AnswerConfidence {
				t.Errorf("%s Confidence = %v, want %v", name, c.Confidence, extract.AnswerConfidence)
			}
		}
	})
	t.Run("no", func(t *testing.T) {
		t.Parallel()
		d := &extract.Dialogue{}
		x.Extract(doctor(1, "Any nausea?"), d)
		res := x.Extract(patient(2, "No."), d)
		if len(res.Candidates) != 0 {
			t.Errorf("Candidates = %v, want none", names(res))
		}
		if len(res.Negatives) != 1 || res.Negatives[0].Name != "nausea" {
			t.Errorf("Negatives = %+v, want nausea", res.Negatives)
		}
	})
	t.Run("reply names its own symptoms", func(t *testing.T) {
		t.Parallel()
		d := &extract.Dialogue{}
		x.Extract(doctor(1, "Any nausea or sweating?"), d)
		res := x.Extract(patient(2, "I've been sweaty but no nausea."), d)
		find(t, res, clinical.EntitySymptom, "diaphoresis")
		if len(res.Negatives) != 1 || res.Negatives[0].Name != "nausea" {
			t.Errorf("Negatives = %+v, want nausea", res.Negatives)
		}
	})
}

func TestExtract_AllergyAnswer(t *testing.T) {
	t.Parallel()

	d := &extract.Dialogue{}
	x.Extract(doctor(1, "Do you have any allergies?"), d)
	if d.Topic() != extract.TopicAllergies {
		t.Fatalf("Topic = %q, want allergies", d.Topic())
	}
	res := x.Extract(patient(2, "Penicillin."), d)
	find(t, res, clinical.EntityAllergy, "penicillin")

	d = &extract.Dialogue{}
	x.Extract(doctor(1, "Do you have any allergies?"), d)
	res = x.Extract(patient(2, "No."), d)
	if len(res.Negatives) != 1 || res.Negatives[0].Name != extract.NoKnownAllergies {
		t.Errorf("Negatives = %+v, want no known allergies", res.Negatives)
	}
}

func TestExtract_SeverityAnswer(t *testing.T) {
	t.Parallel()

	d := &extract.Dialogue{}
	x.Extract(doctor(1, "On a scale of 1 to 10, how bad is it?"), d)
	res := x.Extract(patient(2, "About a 6."), d)
	if len(res.Candidates) != 1 {
		t.Fatalf("Candidates = %v, want one implicit owner", names(res))
	}
	c := res.Candidates[0]
	if c.Kind != clinical.ReferencePronoun || c.Confidence != extract.ImplicitConfidence {
		t.Errorf("owner = %+v, want implicit reference", c)
	}
	if sev := c.Attributes[clinical.AttrSeverity]; sev.Number != 6 {
		t.Errorf("severity = %+v, want 6", sev)
	}
}

func TestExtract_RadiationAnswer(t *testing.T) {
	t.Parallel()

	d := &extract.Dialogue{}
	x.Extract(doctor(1, "Does it radiate anywhere?"), d)
	res := x.Extract(patient(2, "Yes, it goes to my left arm and jaw."), d)
	if len(res.Negatives) != 0 {
		t.Errorf("Negatives = %+v, want none", res.Negatives)
	}
	if len(res.Candidates) != 1 {
		t.Fatalf("Candidates = %v, want the pronoun", names(res))
	}
	rad := res.Candidates[0].Attributes[clinical.AttrRadiation]
	if diff := cmp.Diff([]string{"left arm", "jaw"}, rad.List); diff != "" {
		t.Errorf("radiation mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_ClinicianStatementClosesQuestion(t *testing.T) {
	t.Parallel()

	d := &extract.Dialogue{}
	x.Extract(doctor(1, "Any nausea?"), d)
	x.Extract(doctor(2, "Okay, let me listen to your heart."), d)
	if d.Topic() != extract.TopicNone {
		t.Errorf("Topic = %q, want none", d.Topic())
	}
	res := x.Extract(patient(3, "No."), d)
	if len(res.Negatives) != 0 {
		t.Errorf("Negatives = %+v, want none", res.Negatives)
	}
}

func TestExtract_Deterministic(t *testing.T) {
	t.Parallel()

	seg := patient(1, "I have crushing chest pain, 8 out of 10, worse when I climb stairs.")
	a := x.Extract(seg, &extract.Dialogue{})
	b := x.Extract(seg, &extract.Dialogue{})
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("Extract not deterministic (-first +second):\n%s", diff)
	}
}
