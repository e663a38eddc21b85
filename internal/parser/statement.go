package parser

import (
	"regexp"
	"strings"

	"github.com/nyaya/caseflow/pkg/utils"
)

var (
	crimeNoRe       = regexp.MustCompile(`(?i)Crime No\s*\.?\s*([\d/]+)`)
	policeStationRe = regexp.MustCompile(`(?i)(\w+\s+Police\s+Station)`)
	courtRe         = regexp.MustCompile(`(?i)IN THE COURT OF THE (.*?)\n`)
	underSectionsRe = regexp.MustCompile(`(?i)U/s (.*?)\n`)
	occupationRe    = regexp.MustCompile(`(?i)Occupation\s*:\s*(.*?)\n`)
	witnessAgeRe    = regexp.MustCompile(`(?i)Age\s*:\s*(\d+)`)
	stmtTypeRe      = regexp.MustCompile(`(?i)Statement under section\s*(.*?)\n`)
	stmtDateRe      = regexp.MustCompile(`(?i)Date(?:d)?\s*:\s*([\d./-]+)`)
	narrativeRe     = regexp.MustCompile(`(?si)(I (?:say|do hereby).*?)I do not wish to say anything more`)
	pageArtifactRe  = regexp.MustCompile(`(?i)^\s*(Crime No|.*Police Station|Page \d+)\s*$`)
)

// parseStatement extracts the structured victim-statement record from OCR
// text: case info, witness details, statement details, and the narrative.
func parseStatement(text string) map[string]any {
	fields := map[string]any{}

	caseInfo := map[string]any{}
	if m := crimeNoRe.FindStringSubmatch(text); m != nil {
		caseInfo["crime_no"] = utils.CleanValue(m[1])
	}
	if m := policeStationRe.FindStringSubmatch(text); m != nil {
		caseInfo["police_station"] = utils.CleanValue(m[1])
	}
	if m := courtRe.FindStringSubmatch(text); m != nil {
		caseInfo["court"] = utils.CleanValue(m[1])
	}
	if m := underSectionsRe.FindStringSubmatch(text); m != nil {
		caseInfo["under_sections"] = utils.CleanValue(m[1])
	}
	fields["case_info"] = caseInfo

	witness := map[string]any{}
	if m := occupationRe.FindStringSubmatch(text); m != nil {
		witness["occupation"] = utils.CleanValue(m[1])
	}
	if m := witnessAgeRe.FindStringSubmatch(text); m != nil {
		witness["age"] = utils.CleanValue(m[1])
	}
	fields["witness_details"] = witness

	details := map[string]any{}
	if m := stmtTypeRe.FindStringSubmatch(text); m != nil {
		details["type"] = utils.CleanValue("Statement under section " + m[1])
	}
	if m := stmtDateRe.FindStringSubmatch(text); m != nil {
		details["date"] = utils.CleanValue(m[1])
	}
	fields["statement_details"] = details

	if m := narrativeRe.FindStringSubmatch(text); m != nil {
		fields["narrative"] = cleanNarrative(m[1])
	}

	return fields
}

// cleanNarrative joins the narrative lines, dropping page headers and other
// repeating extraction artifacts.
func cleanNarrative(raw string) string {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || pageArtifactRe.MatchString(line) {
			continue
		}
		cleaned = append(cleaned, line)
	}
	return strings.Join(cleaned, " ")
}
