package lexicon

// Default returns a fresh copy of the built-in vocabulary.
func Default() *Lexicon {
	return &Lexicon{
		Symptoms:    builtinSymptoms(),
		Medications: builtinMedications(),
		Allergens:   builtinAllergens(),
		Reactions:   builtinReactions(),
		Conditions:  builtinConditions(),
		Findings:    builtinFindings(),
		Activities:  builtinActivities(),
		BodyParts:   builtinBodyParts(),
		Characters:  builtinCharacters(),
	}
}

// FamilyPain is the family shared by every pain symptom.
const FamilyPain = "pain"

// GenericPain is the canonical name of pain without a known location.
const GenericPain = "pain"

func builtinSymptoms() []Term {
	return []Term{
		{Name: GenericPain, Family: FamilyPain, Synonyms: []string{"discomfort", "ache", "soreness"}},
		{Name: "chest pain", Family: FamilyPain, BodyPart: "chest", Synonyms: []string{
			"chest discomfort", "chest tightness", "chest pressure", "pain in my chest", "pain in the chest",
			"pain in his chest", "pain in her chest", "angina",
		}},
		{Name: "abdominal pain", Family: FamilyPain, BodyPart: "abdomen", Synonyms: []string{
			"stomach pain", "belly pain", "stomach ache", "stomachache", "tummy ache", "abdominal discomfort",
			"pain in my stomach", "pain in my belly",
		}},
		{Name: "headache", Family: FamilyPain, BodyPart: "head", Synonyms: []string{"headaches", "head pain"}},
		{Name: "back pain", Family: FamilyPain, BodyPart: "back", Synonyms: []string{"backache", "lower back pain", "low back pain"}},
		{Name: "neck pain", Family: FamilyPain, BodyPart: "neck"},
		{Name: "jaw pain", Family: FamilyPain, BodyPart: "jaw"},
		{Name: "arm pain", Family: FamilyPain, BodyPart: "arm"},
		{Name: "shoulder pain", Family: FamilyPain, BodyPart: "shoulder"},
		{Name: "leg pain", Family: FamilyPain, BodyPart: "leg"},
		{Name: "knee pain", Family: FamilyPain, BodyPart: "knee"},
		{Name: "sore throat", Family: FamilyPain, BodyPart: "throat", Synonyms: []string{"throat pain", "odynophagia"}},
		{Name: "shortness of breath", Synonyms: []string{
			"short of breath", "trouble breathing", "difficulty breathing", "hard to breathe", "hard time breathing",
			"can't catch my breath", "cannot catch my breath", "dyspnea", "breathless", "winded", "out of breath",
		}},
		{Name: "nausea", Synonyms: []string{"nauseous", "nauseated", "queasy", "sick to my stomach"}},
		{Name: "vomiting", Synonyms: []string{"throwing up", "threw up", "vomited", "emesis", "vomit"}},
		{Name: "diaphoresis", Synonyms: []string{"sweating", "sweaty", "sweats", "clammy", "cold sweat", "cold sweats"}},
		{Name: "dizziness", Synonyms: []string{"dizzy", "lightheaded", "light-headed", "lightheadedness", "light headed"}},
		{Name: "vertigo", Synonyms: []string{"room spinning", "spinning sensation"}},
		{Name: "palpitations", Synonyms: []string{"heart racing", "racing heart", "heart pounding", "pounding heart", "fluttering"}},
		{Name: "fatigue", Synonyms: []string{"tired", "exhausted", "fatigued", "malaise", "no energy"}},
		{Name: "weakness", Synonyms: []string{"weak"}},
		{Name: "fever", Synonyms: []string{"fevers", "febrile", "running a fever"}},
		{Name: "chills", Synonyms: []string{"shaking chills", "rigors"}},
		{Name: "cough", Synonyms: []string{"coughing"}},
		{Name: "hemoptysis", Synonyms: []string{"coughing up blood"}},
		{Name: "wheezing", Synonyms: []string{"wheeze", "wheezy"}},
		{Name: "syncope", Synonyms: []string{"passed out", "fainted", "fainting", "blacked out"}},
		{Name: "numbness", Synonyms: []string{"numb"}},
		{Name: "tingling", Synonyms: []string{"pins and needles"}},
		{Name: "diarrhea", Synonyms: []string{"loose stools"}},
		{Name: "constipation", Synonyms: []string{"constipated"}},
		{Name: "heartburn", Synonyms: []string{"acid reflux", "reflux", "indigestion"}},
		{Name: "bloating", Synonyms: []string{"bloated"}},
		{Name: "dysphagia", Synonyms: []string{"trouble swallowing", "difficulty swallowing"}},
		{Name: "confusion", Synonyms: []string{"confused"}},
		{Name: "blurred vision", Synonyms: []string{"blurry vision"}},
		{Name: "anxiety", Synonyms: []string{"anxious"}},
		{Name: "insomnia", Synonyms: []string{"can't sleep", "trouble sleeping"}},
		{Name: "leg swelling", Synonyms: []string{"swollen legs", "swollen ankles", "ankle swelling"}},
	}
}

// builtinMedications lists common generics with brand names that map to
// them.
func builtinMedications() []Term {
	return []Term{
		{Name: "acetaminophen", Brands: []string{"Tylenol"}},
		{Name: "ibuprofen", Brands: []string{"Advil", "Motrin"}},
		{Name: "aspirin", Synonyms: []string{"baby aspirin"}},
		{Name: "naproxen", Brands: []string{"Aleve"}},
		{Name: "tramadol"},
		{Name: "oxycodone"},
		{Name: "hydrocodone"},
		{Name: "codeine"},
		{Name: "morphine"},
		{Name: "amoxicillin"},
		{Name: "azithromycin", Brands: []string{"Z-Pak", "Zithromax"}},
		{Name: "cephalexin", Brands: []string{"Keflex"}},
		{Name: "ciprofloxacin", Brands: []string{"Cipro"}},
		{Name: "doxycycline"},
		{Name: "penicillin"},
		{Name: "sulfamethoxazole", Synonyms: []string{"Bactrim"}},
		{Name: "amlodipine", Brands: []string{"Norvasc"}},
		{Name: "atenolol"},
		{Name: "carvedilol"},
		{Name: "furosemide", Brands: []string{"Lasix"}},
		{Name: "hydrochlorothiazide", Synonyms: []string{"HCTZ"}},
		{Name: "lisinopril"},
		{Name: "losartan"},
		{Name: "metoprolol"},
		{Name: "simvastatin"},
		{Name: "atorvastatin", Brands: []string{"Lipitor"}},
		{Name: "rosuvastatin", Brands: []string{"Crestor"}},
		{Name: "warfarin", Brands: []string{"Coumadin"}},
		{Name: "clopidogrel", Brands: []string{"Plavix"}},
		{Name: "apixaban", Brands: []string{"Eliquis"}},
		{Name: "nitroglycerin", Synonyms: []string{"nitro"}},
		{Name: "metformin", Brands: []string{"Glucophage"}},
		{Name: "insulin glargine", Brands: []string{"Lantus"}},
		{Name: "insulin lispro", Brands: []string{"Humalog"}},
		{Name: "insulin"},
		{Name: "sertraline", Brands: []string{"Zoloft"}},
		{Name: "fluoxetine", Brands: []string{"Prozac"}},
		{Name: "escitalopram", Brands: []string{"Lexapro"}},
		{Name: "alprazolam", Brands: []string{"Xanax"}},
		{Name: "lorazepam", Brands: []string{"Ativan"}},
		{Name: "albuterol", Synonyms: []string{"albuterol inhaler", "rescue inhaler"}},
		{Name: "montelukast", Brands: []string{"Singulair"}},
		{Name: "prednisone"},
		{Name: "omeprazole", Brands: []string{"Prilosec"}},
		{Name: "esomeprazole", Brands: []string{"Nexium"}},
		{Name: "pantoprazole", Brands: []string{"Protonix"}},
		{Name: "famotidine", Brands: []string{"Pepcid"}},
		{Name: "ondansetron", Brands: []string{"Zofran"}},
		{Name: "levothyroxine", Brands: []string{"Synthroid"}},
		{Name: "gabapentin", Brands: []string{"Neurontin"}},
	}
}

func builtinAllergens() []Term {
	return []Term{
		{Name: "sulfa", Synonyms: []string{"sulfa drugs", "sulfonamides"}},
		{Name: "latex"},
		{Name: "peanuts", Synonyms: []string{"peanut"}},
		{Name: "tree nuts", Synonyms: []string{"nuts"}},
		{Name: "shellfish", Synonyms: []string{"shrimp"}},
		{Name: "eggs", Synonyms: []string{"egg"}},
		{Name: "bee stings", Synonyms: []string{"bees", "bee sting"}},
		{Name: "iodinated contrast", Synonyms: []string{"contrast dye", "iodine", "contrast"}},
		{Name: "cephalosporins"},
	}
}

func builtinReactions() []Term {
	return []Term{
		{Name: "rash", Synonyms: []string{"rashes", "skin rash"}},
		{Name: "hives", Synonyms: []string{"urticaria", "welts"}},
		{Name: "itching", Synonyms: []string{"itchy", "itch"}},
		{Name: "swelling", Synonyms: []string{"swell up", "swelled up", "face swelling", "lip swelling"}},
		{Name: "throat swelling", Synonyms: []string{"throat closes", "throat closing", "throat swells"}},
		{Name: "anaphylaxis", Synonyms: []string{"anaphylactic shock", "anaphylactic"}},
		{Name: "upset stomach", Synonyms: []string{"stomach upset", "gi upset"}},
		{Name: "difficulty breathing", Synonyms: []string{"can't breathe"}},
	}
}

// builtinConditions covers past medical history, including abbreviations and
// lay terms for common diagnoses.
func builtinConditions() []Term {
	return []Term{
		{Name: "hypertension", Synonyms: []string{"high blood pressure", "HTN", "elevated blood pressure"}},
		{Name: "diabetes mellitus", Synonyms: []string{"diabetes", "diabetic", "DM", "sugar diabetes", "type 2 diabetes", "type two diabetes"}},
		{Name: "hyperlipidemia", Synonyms: []string{"high cholesterol", "hypercholesterolemia"}},
		{Name: "coronary artery disease", Synonyms: []string{"CAD", "heart disease", "blocked arteries"}},
		{Name: "myocardial infarction", Synonyms: []string{"heart attack", "MI", "heart attacks"}},
		{Name: "congestive heart failure", Synonyms: []string{"CHF", "heart failure"}},
		{Name: "atrial fibrillation", Synonyms: []string{"afib", "a-fib", "irregular heartbeat"}},
		{Name: "asthma"},
		{Name: "chronic obstructive pulmonary disease", Synonyms: []string{"COPD", "emphysema"}},
		{Name: "stroke", Synonyms: []string{"CVA", "cerebrovascular accident"}},
		{Name: "transient ischemic attack", Synonyms: []string{"TIA", "mini stroke", "mini-stroke"}},
		{Name: "deep vein thrombosis", Synonyms: []string{"DVT", "blood clot", "blood clots"}},
		{Name: "pulmonary embolism", Synonyms: []string{"PE"}},
		{Name: "gastroesophageal reflux disease", Synonyms: []string{"GERD"}},
		{Name: "chronic kidney disease", Synonyms: []string{"CKD", "kidney disease"}},
		{Name: "hypothyroidism", Synonyms: []string{"underactive thyroid"}},
		{Name: "hyperthyroidism", Synonyms: []string{"overactive thyroid"}},
		{Name: "depression"},
		{Name: "cancer"},
		{Name: "migraine", Synonyms: []string{"migraines"}},
		{Name: "epilepsy", Synonyms: []string{"seizure disorder", "seizures"}},
		{Name: "pneumonia"},
	}
}

// builtinFindings lists vital signs (with units) and physical exam findings.
func builtinFindings() []Term {
	return []Term{
		{Name: "blood pressure", Family: "vital", Synonyms: []string{"BP"}, Unit: "mmHg"},
		{Name: "heart rate", Family: "vital", Synonyms: []string{"HR", "pulse"}, Unit: "bpm"},
		{Name: "respiratory rate", Family: "vital", Synonyms: []string{"RR", "respirations"}, Unit: "breaths/min"},
		{Name: "temperature", Family: "vital", Synonyms: []string{"temp"}, Unit: "°F"},
		{Name: "oxygen saturation", Family: "vital", Synonyms: []string{"O2 sat", "SpO2", "sats", "pulse ox"}, Unit: "%"},
		{Name: "diaphoretic", Family: "exam", Synonyms: []string{"diaphoresis noted"}},
		{Name: "lungs clear to auscultation", Family: "exam", Synonyms: []string{"lungs are clear", "lungs clear", "clear to auscultation"}},
		{Name: "regular rate and rhythm", Family: "exam", Synonyms: []string{"heart regular", "rhythm is regular"}},
		{Name: "tachycardic", Family: "exam", Synonyms: []string{"tachycardia"}},
		{Name: "murmur", Family: "exam", Synonyms: []string{"murmurs"}},
		{Name: "crackles", Family: "exam", Synonyms: []string{"rales"}},
		{Name: "wheezes", Family: "exam"},
		{Name: "peripheral edema", Family: "exam", Synonyms: []string{"edema", "pitting edema"}},
		{Name: "chest wall tenderness", Family: "exam", Synonyms: []string{"tender to palpation", "reproducible tenderness"}},
		{Name: "jugular venous distension", Family: "exam", Synonyms: []string{"JVD"}},
		{Name: "pale", Family: "exam", Synonyms: []string{"pallor"}},
		{Name: "acute distress", Family: "exam", Synonyms: []string{"in distress", "distressed"}},
	}
}

// builtinActivities are aggravating and relieving factors.
func builtinActivities() []Term {
	return []Term{
		{Name: "exertion", Synonyms: []string{
			"exercise", "exercising", "walking", "walk", "climbing stairs", "stairs", "activity",
			"running", "lifting", "physical activity",
		}},
		{Name: "rest", Synonyms: []string{"resting", "sitting still", "lying still", "sitting down", "stop"}},
		{Name: "deep breathing", Synonyms: []string{"deep breath", "deep breaths", "breathing in", "taking a breath", "breathe in"}},
		{Name: "lying flat", Synonyms: []string{"lying down", "lie down", "lay down", "lie flat"}},
		{Name: "leaning forward", Synonyms: []string{"sitting up", "sit up"}},
		{Name: "eating", Synonyms: []string{"meals", "food", "eat"}},
		{Name: "movement", Synonyms: []string{"moving", "move", "turning", "twisting"}},
		{Name: "stress", Synonyms: []string{"stressed", "emotional stress"}},
		{Name: "cold weather", Synonyms: []string{"cold air", "the cold"}},
	}
}

// builtinBodyParts maps locations to the pain symptom named after them.
func builtinBodyParts() []Term {
	return []Term{
		{Name: "chest", Symptom: "chest pain", Synonyms: []string{"breastbone", "sternum"}},
		{Name: "abdomen", Symptom: "abdominal pain", Synonyms: []string{"stomach", "belly", "tummy", "abdominal"}},
		{Name: "head", Symptom: "headache", Synonyms: []string{"temples", "forehead"}},
		{Name: "back", Symptom: "back pain", Synonyms: []string{"lower back"}},
		{Name: "neck", Symptom: "neck pain"},
		{Name: "jaw", Symptom: "jaw pain", Synonyms: []string{"teeth"}},
		{Name: "arm", Symptom: "arm pain", Synonyms: []string{"arms"}},
		{Name: "shoulder", Symptom: "shoulder pain", Synonyms: []string{"shoulders", "shoulder blade"}},
		{Name: "leg", Symptom: "leg pain", Synonyms: []string{"legs", "calf", "thigh"}},
		{Name: "knee", Symptom: "knee pain", Synonyms: []string{"knees"}},
		{Name: "throat", Symptom: "sore throat"},
		{Name: "hand", Synonyms: []string{"hands", "fingers"}},
	}
}

// builtinCharacters are pain descriptors.
func builtinCharacters() []Term {
	return []Term{
		{Name: "crushing"},
		{Name: "pressure", Synonyms: []string{"pressure-like", "elephant sitting on my chest", "elephant on my chest", "squeezing"}},
		{Name: "tightness", Synonyms: []string{"tight"}},
		{Name: "heaviness", Synonyms: []string{"heavy"}},
		{Name: "sharp"},
		{Name: "dull"},
		{Name: "throbbing", Synonyms: []string{"pounding"}},
		{Name: "stabbing", Synonyms: []string{"knife-like"}},
		{Name: "burning"},
		{Name: "aching", Synonyms: []string{"achy"}},
		{Name: "cramping", Synonyms: []string{"crampy", "cramps"}},
		{Name: "shooting"},
		{Name: "tearing", Synonyms: []string{"ripping"}},
		{Name: "pleuritic"},
	}
}
