package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nyaya/caseflow/internal/caseerr"
	"github.com/nyaya/caseflow/pkg/utils"
)

// Report-type markers distinguish the two medical report formats.
const (
	victimReportMarker  = "Medico-Legal Examination Report of Sexual Violence"
	accusedReportMarker = "Report of Medical Examination in Sexual Offences for Males"
)

var (
	srNoRe           = regexp.MustCompile(`(?i)Sr\. No\.?\s*:\s*(\S+)`)
	mlcNoRe          = regexp.MustCompile(`(?i)MLC No\.?\s*:\s*(\S+)`)
	medCrimeNoRe     = regexp.MustCompile(`(?i)Crime No\.?\s*:\s*([^\n\r]+)`)
	ageReportedRe    = regexp.MustCompile(`(?i)Age(?: as reported)?\s*:\s*([\d\s]+\w*)`)
	medPSRe          = regexp.MustCompile(`(?i)Police Station\s*:\s*([^\n\r]+)`)
	arrivalRe        = regexp.MustCompile(`(?i)arrival in the hospital\s*:\s*(.*)`)
	commencementRe   = regexp.MustCompile(`(?i)commencement of examination\s*:\s*(.*)`)
	historyRe        = regexp.MustCompile(`(?si)History of Sexual Violence.*?Description\s*:\s*(.*?)Physical & Genital Examination`)
	victimGenitalRe  = regexp.MustCompile(`(?si)Genitalia\s*:\s*(.*?)Sample Collection`)
	provisionalRe    = regexp.MustCompile(`(?si)Provisional Medical Opinion\s*(.*?)Date:`)
	sampleSectionRe  = regexp.MustCompile(`(?si)Sample Collection\s*(.*?)Provisional Medical Opinion`)
	bulletRe         = regexp.MustCompile(`[•-]\s*([^\n\r]+)`)
	injuriesRe       = regexp.MustCompile(`(?si)Injuries on the body\s*:\s*(.*?)GENITAL EXAMINATION`)
	accusedGenitalRe = regexp.MustCompile(`(?si)GENITAL EXAMINATION\s*:\s*(.*?)OPINION:`)
	opinionRe        = regexp.MustCompile(`(?si)OPINION\s*:\s*(.*?)Samples collected:`)
	samplesLineRe    = regexp.MustCompile(`(?si)Samples collected\s*:\s*(.*)`)
	examDateRe       = regexp.MustCompile(`Date:\s*(\d{2}/\d{2}/\d{4})`)
	examTimeRe       = regexp.MustCompile(`(?i)Time:\s*(\d{2}:\d{2}\s*[AP]M)`)
)

// parseMedical routes medical report text to the victim or accused format
// extractor based on the report heading. Identity fields (name, age,
// address) are redacted from the stored record; only the age survives for
// minor determination downstream.
func parseMedical(text string) (map[string]any, error) {
	switch {
	case strings.Contains(text, accusedReportMarker):
		return parseAccusedReport(text), nil
	case strings.Contains(text, victimReportMarker):
		return parseVictimReport(text), nil
	default:
		return nil, fmt.Errorf("unknown medical report format: %w", caseerr.ErrParse)
	}
}

func parseVictimReport(text string) map[string]any {
	fields := map[string]any{
		"report_type": "Victim Medico-Legal Examination",
	}
	setMatch(fields, "sr_no", srNoRe, text)
	setMatch(fields, "mlc_no", mlcNoRe, text)
	setMatch(fields, "age", ageReportedRe, text)
	setMatch(fields, "police_station", medPSRe, text)
	setMatch(fields, "arrival_datetime", arrivalRe, text)
	setMatch(fields, "examination_datetime", commencementRe, text)
	setMatch(fields, "history_of_violence", historyRe, text)
	setMatch(fields, "genital_examination_findings", victimGenitalRe, text)
	setMatch(fields, "provisional_medical_opinion", provisionalRe, text)

	if section := sampleSectionRe.FindStringSubmatch(text); section != nil {
		var samples []any
		for _, m := range bulletRe.FindAllStringSubmatch(section[1], -1) {
			if v := utils.CleanValue(m[1]); v != "" {
				samples = append(samples, v)
			}
		}
		if len(samples) > 0 {
			fields["samples_collected"] = samples
		}
	}
	return fields
}

func parseAccusedReport(text string) map[string]any {
	fields := map[string]any{
		"report_type": "Accused Medical Examination in Sexual Offences",
	}
	setMatch(fields, "sr_no", srNoRe, text)
	setMatch(fields, "crime_no", medCrimeNoRe, text)
	setMatch(fields, "age", ageReportedRe, text)
	setMatch(fields, "injuries_on_body", injuriesRe, text)
	setMatch(fields, "genital_examination_findings", accusedGenitalRe, text)
	setMatch(fields, "opinion", opinionRe, text)
	setMatch(fields, "samples_collected", samplesLineRe, text)

	date := firstMatch(examDateRe, text)
	tm := firstMatch(examTimeRe, text)
	if date != "" && tm != "" {
		fields["examination_datetime"] = date + ", " + tm
	}
	return fields
}

func setMatch(fields map[string]any, key string, re *regexp.Regexp, text string) {
	if v := firstMatch(re, text); v != "" {
		fields[key] = v
	}
}

func firstMatch(re *regexp.Regexp, text string) string {
	if m := re.FindStringSubmatch(text); m != nil {
		return utils.CleanValue(m[1])
	}
	return ""
}
