package fewshot

import (
	"strings"
)

// Example is a labelled article shown to the model before the query.
type Example struct {
	Title    string
	Abstract string
	Labels   []string
}

var defaultExamples = []Example{
	{
		Title:    "Hypertensive response during dobutamine stress echocardiography",
		Abstract: "Among 3,129 dobutamine stress echocardiographic studies, a hypertensive response, defined as systolic blood pressure (BP) > or = 220 mm Hg and/or diastolic BP > or = 110 mm Hg, occurred in 30 patients (1%). Patients with this response more often had a history of hypertension and had higher resting systolic and diastolic BP before dobutamine infusion.",
		Labels:   []string{"Cardiovascular"},
	},
	{
		Title:    "Adrenoleukodystrophy: survey of 303 cases: biochemistry, diagnosis, and therapy",
		Abstract: "Adrenoleukodystrophy (ALD) is a genetically determined disorder associated with progressive central demyelination and adrenal cortical insufficiency. All affected persons show increased levels of saturated unbranched very-long-chain fatty acids, particularly hexacosanoate (C26:0), because of impaired capacity to degrade these acids. This degradation normally takes place in a subcellular organelle called the peroxisome, and ALD, together with Zellwegers cerebrohepatorenal syndrome, is now considered to belong to the newly formed category of peroxisomal disorders.",
		Labels:   []string{"Neurological", "Hepatorenal"},
	},
	{
		Title:    "The interpeduncular nucleus regulates nicotine effects on free-field activity",
		Abstract: "Partial lesions were made with kainic acid in the interpeduncular nucleus of the ventral midbrain of the rat. Compared with sham-operated controls, lesions significantly (p < 0.25) blunted the early (<60 min) free-field locomotor hypoactivity caused by nicotine (0.5 mg kg(-1), i.m.), enhanced the later (60-120 min) nicotine-induced hyperactivity, and raised spontaneous nocturnal activity.",
		Labels:   []string{"Neurological"},
	},
	{
		Title:    "Patterns of sulfadiazine acute nephrotoxicity",
		Abstract: "Sulfadiazine acute nephrotoxicity is reviving specially because of its use in toxoplasmosis in HIV-positive patients. We report 4 cases, one of them in a previously healthy person. Under treatment with sulfadiazine they developed oliguria, abdominal pain, renal failure and showed multiple radiolucent renal calculi in echography.",
		Labels:   []string{"Hepatorenal"},
	},
	{
		Title:    "Haplotype and phenotype analysis of six recurrent BRCA1 mutations in 61 families",
		Abstract: "Several BRCA1 mutations have now been found to occur in geographically diverse breast and ovarian cancer families. To investigate mutation origin and mutation-specific phenotypes due to BRCA1, we constructed a haplotype of nine polymorphic markers within or immediately flanking the BRCA1 locus in a set of 61 breast/ovarian cancer families selected for having one of six recurrent BRCA1 mutations.",
		Labels:   []string{"Oncological"},
	},
	{
		Title:    "corticosteroids and ventricular tachycardia: brain insights",
		Abstract: "Purpose: This longitudinal study examined aspirin for hypertension in adult population. The investigation included analysis of breast cancer, gaba, and myelodysplastic syndrome. Methods: 345 participants were included. Results: reduction in adverse events. Implications: clinical practice guidelines.",
		Labels:   []string{"Neurological", "Oncological"},
	},
	{
		Title:    "tia and epilepsy: vascular insights",
		Abstract: "Hypothesis: ACE inhibitors improves cancer outcomes via atrial fibrillation pathways. Methods: randomized controlled trial with 162 cancer patients, measuring hemodialysis and endothelial. Results: positive treatment response. Conclusion: clinical practice guidelines.",
		Labels:   []string{"Cardiovascular", "Hepatorenal"},
	},
	{
		Title:    "Potential therapeutic use of the selective dopamine D1 receptor agonist, A-86929: an acute study in parkinsonian levodopa-primed monkeys",
		Abstract: "The clinical utility of dopamine (DA) D1 receptor agonists in the treatment of Parkinson disease (PD) is still unclear. The therapeutic use of selective DA D1 receptor agonists such as SKF-82958 and A-77636 seems limited because of their duration of action, which is too short for SKF-82958 (< 1 hr) and too long for A-77636 (> 20 hr, leading to behavioral tolerance).",
		Labels:   []string{"Neurological"},
	},
}

// DefaultExamples returns a copy of the built-in medical exemplars.
func DefaultExamples() []Example {
	out := make([]Example, len(defaultExamples))
	copy(out, defaultExamples)
	return out
}

// BuildPrompt renders instructions, the category list, up to maxExamples exemplars and the
// query text. The prompt ends with "Category:" so the model completes the label line.
func BuildPrompt(text string, labels []string, examples []Example, maxExamples int) string {
	if maxExamples >= 0 && maxExamples < len(examples) {
		examples = examples[:maxExamples]
	}

	var b strings.Builder
	b.WriteString("You are a medical text classifier. Classify the following medical article into one of these categories:\n")
	b.WriteString("Categories: ")
	b.WriteString(strings.Join(labels, ", "))
	b.WriteString("\n\n")

	if len(examples) > 0 {
		b.WriteString("Examples:\n")
		for _, ex := range examples {
			b.WriteString("Title: ")
			b.WriteString(ex.Title)
			b.WriteString("\nAbstract: ")
			b.WriteString(ex.Abstract)
			b.WriteString("\nCategory: ")
			b.WriteString(strings.Join(ex.Labels, "|"))
			b.WriteString("\n\n")
		}
	}

	b.WriteString("Classify the following article into one of these categories:\n")
	b.WriteString(text)
	b.WriteString("\nCategory:")
	return b.String()
}
