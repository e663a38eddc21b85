package parser

import (
	"regexp"

	"github.com/nyaya/caseflow/pkg/utils"
)

var (
	firHeaderRe = regexp.MustCompile(`(?s)District:\s*(?P<district>.*?)\s*P\.S\.:\s*(?P<ps>.*?)\s*Year:\s*(?P<year>\d{4})\s*FIR No\.?\s*:?\s*(?P<fir_no>[\d/]+)\s*Date:\s*(?P<date>[\d-]+)\s*Time:\s*(?P<time>[\d:]+)`)

	actsBlockRe = regexp.MustCompile(`(?s)Act and Sections:\s*(.*?)\s*3\.`)
	actPairRe   = regexp.MustCompile(`"(.*?)"\s*,\s*"([^"]+)"`)

	complainantBlockRe = regexp.MustCompile(`(?s)6\.\s*Complainant/Informant\s*(.*?)7\.`)
	accusedBlockRe     = regexp.MustCompile(`(?s)7\.\s*(?:Details of\s*)?(?:Known/Suspected/Unknown\s*)?Accused\s*(.*?)(?:8\.|$)`)

	briefFactsRe = regexp.MustCompile(`(?si)Brief facts(?: of the case)?\s*:?\s*(.*?)(?:\n\s*\d+\.\s|Signature|$)`)
)

// personFields are the labelled values extracted from complainant and
// accused blocks of the FIR.
var personFields = map[string]string{
	"name":              `Name`,
	"relation":          `Relation`,
	"nationality":       `Nationality`,
	"occupation":        `Occupation`,
	"date_of_birth":     `Date of Birth`,
	"age":               `Age`,
	"present_address":   `Present Address`,
	"permanent_address": `Permanent Address`,
}

// parseFIR extracts the structured FIR record from OCR text. Absent fields
// are simply omitted; the compliance stage treats an empty record as an
// unmet procedure.
func parseFIR(text string) map[string]any {
	fields := map[string]any{}

	if m := firHeaderRe.FindStringSubmatch(text); m != nil {
		details := map[string]any{}
		for i, name := range firHeaderRe.SubexpNames() {
			if name == "" || i >= len(m) {
				continue
			}
			if v := utils.CleanValue(m[i]); v != "" {
				details[name] = v
			}
		}
		fields["fir_details"] = details
	}

	if block := actsBlockRe.FindStringSubmatch(text); block != nil {
		var acts []any
		for _, pair := range actPairRe.FindAllStringSubmatch(block[1], -1) {
			acts = append(acts, map[string]any{
				"act":     utils.CleanValue(pair[1]),
				"section": utils.CleanValue(pair[2]),
			})
		}
		if len(acts) > 0 {
			fields["acts_and_sections"] = acts
		}
	}

	if block := complainantBlockRe.FindStringSubmatch(text); block != nil {
		if person := parsePersonBlock(block[1]); len(person) > 0 {
			fields["complainant_informant"] = person
		}
	}
	if block := accusedBlockRe.FindStringSubmatch(text); block != nil {
		if person := parsePersonBlock(block[1]); len(person) > 0 {
			fields["accused_details"] = person
		}
	}

	if m := briefFactsRe.FindStringSubmatch(text); m != nil {
		if v := utils.CleanValue(m[1]); v != "" {
			fields["brief_facts"] = v
		}
	}

	return fields
}

// parsePersonBlock pulls labelled values (Name, Age, Present Address, ...)
// out of one person section, tolerating newlines, commas, and quote noise
// between label and value.
func parsePersonBlock(block string) map[string]any {
	person := map[string]any{}
	for key, label := range personFields {
		re := regexp.MustCompile(`(?i)` + label + `\s*(?:[",\s]*\n)?[",:\s]*([^\n"]+)`)
		if m := re.FindStringSubmatch(block); m != nil {
			if v := utils.CleanValue(m[1]); v != "" {
				person[key] = v
			}
		}
	}
	return person
}
