// Package rules evaluates parsed case records against the SOP procedure
// table and produces the compliance checklist.
package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rule is one standard-operating-procedure step. TimelineHours of zero means
// no fixed deadline; POCSO marks steps that apply only when the victim is a
// minor (or the age is unknown).
type Rule struct {
	Procedure     string `yaml:"procedure"`
	Details       string `yaml:"details"`
	LegalRef      string `yaml:"legal_ref"`
	TimelineHours int    `yaml:"timeline_hours"`
	POCSO         bool   `yaml:"pocso"`
}

// DefaultRules is the compiled-in SOP table, distilled from the BPR&D and
// Delhi Police SOPs for sexual offence investigations.
var DefaultRules = []Rule{
	{
		Procedure:     "Registration of FIR",
		Details:       "FIR to be registered immediately on receipt of complaint of the sexual offence, without any preliminary inquiry.",
		LegalRef:      "Section 154 Cr.P.C.",
		TimelineHours: 24,
	},
	{
		Procedure:     "Statement of victim to be recorded",
		Details:       "Statement of victim to be recorded by a woman police officer at the victim's residence or a place of her choice.",
		LegalRef:      "Section 161(3) Cr.P.C.",
		TimelineHours: 24,
	},
	{
		Procedure:     "Statement of victim before Magistrate",
		Details:       "Statement of the victim to be recorded before a Magistrate under Section 164 Cr.P.C. at the earliest.",
		LegalRef:      "Section 164 Cr.P.C.",
		TimelineHours: 72,
	},
	{
		Procedure:     "Medical examination of victim",
		Details:       "Medical examination of the victim to be conducted by a registered medical practitioner with consent, within twenty four hours of receiving information.",
		LegalRef:      "Section 164-A Cr.P.C.",
		TimelineHours: 24,
	},
	{
		Procedure:     "Medical examination of arrested person",
		Details:       "Medical examination of the accused to be conducted promptly after arrest, including collection of samples.",
		LegalRef:      "Section 53-A Cr.P.C.",
		TimelineHours: 24,
	},
	{
		Procedure:     "Collection and preservation of evidence",
		Details:       "Scene of crime to be secured, physical evidence including clothing and biological samples to be seized, sealed and preserved.",
		LegalRef:      "Section 27 Evidence Act",
		TimelineHours: 48,
	},
	{
		Procedure:     "Forwarding of samples to forensic laboratory",
		Details:       "Collected samples to be forwarded to the forensic science laboratory without delay.",
		TimelineHours: 72,
	},
	{
		Procedure:     "Investigation to be completed",
		Details:       "Investigation in rape cases to be completed within two months from the date of recording of the FIR.",
		LegalRef:      "Criminal Law (Amendment) Act, 2018",
		TimelineHours: 60 * 24,
	},
	{
		Procedure:     "Filing of charge sheet",
		Details:       "Charge sheet to be filed before the competent court within sixty days of registration of the FIR.",
		LegalRef:      "Section 173 Cr.P.C.",
		TimelineHours: 60 * 24,
	},
	{
		Procedure:     "Reporting to Child Welfare Committee",
		Details:       "In POCSO cases the matter to be reported to the Child Welfare Committee within twenty four hours.",
		LegalRef:      "Section 19(6) POCSO Act",
		TimelineHours: 24,
		POCSO:         true,
	},
	{
		Procedure:     "Support person for child victim",
		Details:       "A support person to be provided to the child victim during investigation and trial as per POCSO rules.",
		LegalRef:      "Rule 4, POCSO Rules 2020",
		POCSO:         true,
	},
	{
		Procedure:     "Statement of child victim recording safeguards",
		Details:       "Statement of the child to be recorded at the residence of the child, in the presence of parents or a person the child trusts, as per POCSO provisions.",
		LegalRef:      "Section 24 POCSO Act",
		TimelineHours: 24,
		POCSO:         true,
	},
	{
		Procedure:     "Intimation to Special Court",
		Details:       "Special Court to be informed of the POCSO offence and the steps taken.",
		LegalRef:      "Section 28 POCSO Act",
		TimelineHours: 72,
		POCSO:         true,
	},
}

// LoadRules reads a rule table from a YAML file. An empty path returns the
// compiled-in defaults.
func LoadRules(path string) ([]Rule, error) {
	if path == "" {
		return DefaultRules, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("rules file %s contains no rules", path)
	}
	return rules, nil
}
