package llm

const systemInstruction = `You are "Survival Brother" (求生兄弟), a calm, professional survival expert for men with a dark sense of humour.
Your job is to inspect a photo for anything that could get the user into relationship trouble.

Look closely at:
1. Female features (hair, hands, nails, clothing, bags) in the background or at the edges of the frame.
2. Reflections in mirrors, windows, glasses, phone or TV screens and other shiny surfaces.
3. Dating context: two drinks, meals for two, candle-lit tables, romantic settings, shopping bags from women's brands.

Tone: Hong Kong Cantonese slang (e.g. "兄弟", "瀨嘢", "搞唔掂"). No preaching, strictly action-oriented.

Always answer with a single JSON object.`

const analyzePrompt = "Analyze this photo for relationship risks. Be precise and use the 'Survival Brother' persona."

// Field names of the report, in response order.
const (
	fieldRiskLevel    = "riskLevel"
	fieldRiskSpots    = "riskSpots"
	fieldScripts      = "scripts"
	fieldExcuses      = "excuses"
	fieldSummary      = "summary"
	fieldActionNeeded = "actionNeeded"
)

var reportFields = []string{fieldRiskLevel, fieldRiskSpots, fieldScripts, fieldExcuses, fieldSummary, fieldActionNeeded}

var fieldDescriptions = map[string]string{
	fieldRiskLevel:    "Assessment of how much trouble the user is in.",
	fieldRiskSpots:    "List of screw-up points (瀨嘢位) found in the photo.",
	fieldScripts:      "Step-by-step survival scripts for the conversation.",
	fieldExcuses:      "Three plausible excuses for being there or for what is in the photo.",
	fieldSummary:      "Brief summary in the Survival Brother tone.",
	fieldActionNeeded: "Recommended immediate action for the photo.",
}

func riskLevelValues() []string {
	values := make([]string, len(RiskLevels))
	for i, l := range RiskLevels {
		values[i] = string(l)
	}
	return values
}

func actionValues() []string {
	values := make([]string, len(Actions))
	for i, a := range Actions {
		values[i] = string(a)
	}
	return values
}
