package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSONObject extracts a JSON object from text that may contain markdown
// code blocks or other formatting. Returns the extracted JSON string or an error.
func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response")
	}
	return text[start : end+1], nil
}

// rawReport mirrors AnalysisResult with pointers so absent fields can be told
// apart from empty ones.
type rawReport struct {
	RiskLevel    *string   `json:"riskLevel"`
	RiskSpots    *[]string `json:"riskSpots"`
	Scripts      *[]string `json:"scripts"`
	Excuses      *[]string `json:"excuses"`
	Summary      *string   `json:"summary"`
	ActionNeeded *string   `json:"actionNeeded"`
}

// parseAnalysisResult parses model output into a report. Every failure is a
// *ResponseFormatError carrying the raw text.
func parseAnalysisResult(text string) (*AnalysisResult, error) {
	fail := func(err error) (*AnalysisResult, error) {
		return nil, &ResponseFormatError{Raw: text, Err: err}
	}

	jsonStr, err := extractJSONObject(text)
	if err != nil {
		return fail(err)
	}

	var raw rawReport
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return fail(fmt.Errorf("failed to parse response JSON: %w", err))
	}

	missing := []struct {
		name    string
		present bool
	}{
		{fieldRiskLevel, raw.RiskLevel != nil},
		{fieldRiskSpots, raw.RiskSpots != nil},
		{fieldScripts, raw.Scripts != nil},
		{fieldExcuses, raw.Excuses != nil},
		{fieldSummary, raw.Summary != nil},
		{fieldActionNeeded, raw.ActionNeeded != nil},
	}
	for _, f := range missing {
		if !f.present {
			return fail(fmt.Errorf("missing required field %q", f.name))
		}
	}

	level := RiskLevel(strings.ToUpper(strings.TrimSpace(*raw.RiskLevel)))
	if level.Severity() < 0 {
		return fail(fmt.Errorf("unknown %s %q", fieldRiskLevel, *raw.RiskLevel))
	}

	action := Action(strings.ToUpper(strings.TrimSpace(*raw.ActionNeeded)))
	if !isValidAction(action) {
		return fail(fmt.Errorf("unknown %s %q", fieldActionNeeded, *raw.ActionNeeded))
	}

	return &AnalysisResult{
		RiskLevel:    level,
		RiskSpots:    *raw.RiskSpots,
		Scripts:      *raw.Scripts,
		Excuses:      *raw.Excuses,
		Summary:      *raw.Summary,
		ActionNeeded: action,
	}, nil
}

func isValidAction(a Action) bool {
	for _, valid := range Actions {
		if a == valid {
			return true
		}
	}
	return false
}
