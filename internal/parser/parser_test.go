package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nyaya/caseflow/internal/caseerr"
	"github.com/nyaya/caseflow/internal/models"
	"github.com/nyaya/caseflow/internal/storage"
)

const firText = `FIRST INFORMATION REPORT

District: Pune P.S.: Shivajinagar Year: 2024 FIR No.: 123/2024 Date: 12-05-2024 Time: 10:30

2. Act and Sections:
"IPC 1860" , "376"
"POCSO Act 2012" , "4"
3. Occurrence of offence

6. Complainant/Informant
Name: Ramesh Kumar
Age: 42
Occupation: Farmer
Present Address: Village Kondhwa, Pune
7. Details of Known/Suspected/Unknown Accused
Name: Suresh Singh
Age: 35
Present Address: Village Wagholi, Pune
8. Reasons for delay in reporting

Brief facts of the case: On the evening of 12-05-2024 the accused assaulted the victim near the village well.
Signature of the officer
`

const statementText = `IN THE COURT OF THE SPECIAL JUDGE, PUNE
Crime No. 123/2024
Shivajinagar Police Station
U/s 376 IPC, 4 POCSO Act
Statement under section 164 Cr.P.C.
Date: 14-05-2024
Age : 16
Occupation : Student

I say that on the evening of 12-05-2024 I was returning home when the accused Suresh Singh attacked me with a knife.
Shivajinagar Police Station
Page 2
He threatened me and tore my clothing before fleeing.
I do not wish to say anything more.
`

const victimMedicalText = `Medico-Legal Examination Report of Sexual Violence
Sr. No. : 77
MLC No. : 456/2024
Age as reported : 16 years
Police Station : Shivajinagar
Date and time of arrival in the hospital : 13/05/2024, 09:00 AM
Date and time of commencement of examination : 13/05/2024, 09:30 AM
History of Sexual Violence
Description : The survivor reports assault by a known person.
Physical & Genital Examination
Genitalia : Findings consistent with the reported history.
Sample Collection
• Vaginal swab
• Clothing of the survivor
• Nail clippings
Provisional Medical Opinion
Findings are consistent with recent sexual assault.
Date: 13/05/2024
`

const accusedMedicalText = `Report of Medical Examination in Sexual Offences for Males
Sr. No. : 88
Crime No. : 123/2024
Age : 35 years
Injuries on the body : Abrasion on right forearm.
GENITAL EXAMINATION : No abnormality detected.
OPINION: There is nothing to suggest that the person is incapable of performing sexual intercourse.
Samples collected: Blood sample, nail clippings, pubic hair.
Date: 13/05/2024 Time: 11:15 AM
`

// stubSource returns canned text keyed by upload filename.
type stubSource struct {
	texts map[string]string
	errs  map[string]error
}

func (s *stubSource) Text(_ context.Context, path string) (string, error) {
	name := filepath.Base(path)
	if err := s.errs[name]; err != nil {
		return "", err
	}
	text, ok := s.texts[name]
	if !ok {
		return "", fmt.Errorf("no stub text for %s", name)
	}
	return text, nil
}

func fullStub() *stubSource {
	return &stubSource{texts: map[string]string{
		"fir.pdf":         firText,
		"statement.pdf":   statementText,
		"victim_med.pdf":  victimMedicalText,
		"accused_med.pdf": accusedMedicalText,
	}}
}

func writeUpload(t *testing.T, layout *storage.Layout, caseID string, docType models.DocumentType) {
	t.Helper()
	if err := os.WriteFile(layout.UploadPath(caseID, docType), []byte("placeholder"), 0644); err != nil {
		t.Fatalf("write upload %s: %v", docType, err)
	}
}

func TestParseFIR(t *testing.T) {
	fields := parseFIR(firText)

	details, _ := fields["fir_details"].(map[string]any)
	if details == nil {
		t.Fatal("fir_details missing")
	}
	for key, want := range map[string]string{
		"district": "Pune",
		"ps":       "Shivajinagar",
		"year":     "2024",
		"fir_no":   "123/2024",
		"date":     "12-05-2024",
		"time":     "10:30",
	} {
		if details[key] != want {
			t.Errorf("fir_details[%s] = %v, want %s", key, details[key], want)
		}
	}

	acts, _ := fields["acts_and_sections"].([]any)
	if len(acts) != 2 {
		t.Fatalf("acts = %v, want 2 entries", acts)
	}
	first, _ := acts[0].(map[string]any)
	if first["act"] != "IPC 1860" || first["section"] != "376" {
		t.Errorf("acts[0] = %v", first)
	}

	complainant, _ := fields["complainant_informant"].(map[string]any)
	if complainant["name"] != "Ramesh Kumar" || complainant["age"] != "42" {
		t.Errorf("complainant = %v", complainant)
	}
	accused, _ := fields["accused_details"].(map[string]any)
	if accused["name"] != "Suresh Singh" {
		t.Errorf("accused = %v", accused)
	}

	brief, _ := fields["brief_facts"].(string)
	if !strings.Contains(brief, "assaulted the victim") {
		t.Errorf("brief_facts = %q", brief)
	}
}

func TestParseFIRUnstructuredText(t *testing.T) {
	fields := parseFIR("completely unrelated text with no FIR structure")
	if len(fields) != 0 {
		t.Errorf("fields = %v, want empty", fields)
	}
}

func TestParseStatement(t *testing.T) {
	fields := parseStatement(statementText)

	caseInfo, _ := fields["case_info"].(map[string]any)
	if caseInfo["crime_no"] != "123/2024" {
		t.Errorf("crime_no = %v", caseInfo["crime_no"])
	}
	if caseInfo["police_station"] != "Shivajinagar Police Station" {
		t.Errorf("police_station = %v", caseInfo["police_station"])
	}
	if !strings.Contains(caseInfo["court"].(string), "SPECIAL JUDGE") {
		t.Errorf("court = %v", caseInfo["court"])
	}
	if !strings.Contains(caseInfo["under_sections"].(string), "376") {
		t.Errorf("under_sections = %v", caseInfo["under_sections"])
	}

	witness, _ := fields["witness_details"].(map[string]any)
	if witness["age"] != "16" || witness["occupation"] != "Student" {
		t.Errorf("witness = %v", witness)
	}

	details, _ := fields["statement_details"].(map[string]any)
	if !strings.Contains(details["type"].(string), "164") {
		t.Errorf("type = %v", details["type"])
	}
	if details["date"] != "14-05-2024" {
		t.Errorf("date = %v", details["date"])
	}

	narrative, _ := fields["narrative"].(string)
	if !strings.Contains(narrative, "knife") || !strings.Contains(narrative, "tore my clothing") {
		t.Errorf("narrative = %q", narrative)
	}
	// Page headers repeated by extraction must not survive into the narrative.
	if strings.Contains(narrative, "Page 2") || strings.Contains(narrative, "Police Station") {
		t.Errorf("narrative retains page artifacts: %q", narrative)
	}
}

func TestParseMedicalVictim(t *testing.T) {
	fields, err := parseMedical(victimMedicalText)
	if err != nil {
		t.Fatalf("parseMedical: %v", err)
	}
	if fields["report_type"] != "Victim Medico-Legal Examination" {
		t.Errorf("report_type = %v", fields["report_type"])
	}
	if fields["age"] != "16 years" {
		t.Errorf("age = %v", fields["age"])
	}
	if fields["mlc_no"] != "456/2024" {
		t.Errorf("mlc_no = %v", fields["mlc_no"])
	}
	samples, _ := fields["samples_collected"].([]any)
	if len(samples) != 3 {
		t.Fatalf("samples = %v, want 3", samples)
	}
	if samples[0] != "Vaginal swab" {
		t.Errorf("samples[0] = %v", samples[0])
	}
	opinion, _ := fields["provisional_medical_opinion"].(string)
	if !strings.Contains(opinion, "consistent with recent sexual assault") {
		t.Errorf("opinion = %q", opinion)
	}
}

func TestParseMedicalAccused(t *testing.T) {
	fields, err := parseMedical(accusedMedicalText)
	if err != nil {
		t.Fatalf("parseMedical: %v", err)
	}
	if fields["report_type"] != "Accused Medical Examination in Sexual Offences" {
		t.Errorf("report_type = %v", fields["report_type"])
	}
	if fields["crime_no"] != "123/2024" {
		t.Errorf("crime_no = %v", fields["crime_no"])
	}
	opinion, _ := fields["opinion"].(string)
	if !strings.Contains(opinion, "incapable of performing") {
		t.Errorf("opinion = %q", opinion)
	}
	samples, _ := fields["samples_collected"].(string)
	if !strings.Contains(samples, "Blood sample") {
		t.Errorf("samples = %q", samples)
	}
	if fields["examination_datetime"] != "13/05/2024, 11:15 AM" {
		t.Errorf("examination_datetime = %v", fields["examination_datetime"])
	}
}

func TestParseMedicalUnknownFormat(t *testing.T) {
	if _, err := parseMedical("a discharge summary, not a medico-legal report"); !errors.Is(err, caseerr.ErrParse) {
		t.Errorf("err = %v, want ErrParse", err)
	}
}

func TestParseCaseAllDocuments(t *testing.T) {
	layout := storage.NewLayout(t.TempDir())
	if err := layout.EnsureCaseDirs("case-1"); err != nil {
		t.Fatal(err)
	}
	for _, docType := range models.AllDocumentTypes {
		writeUpload(t, layout, "case-1", docType)
	}

	svc := NewService(layout, fullStub())
	result, err := svc.ParseCase(context.Background(), "case-1")
	if err != nil {
		t.Fatalf("ParseCase: %v", err)
	}
	if len(result.Documents) != 4 {
		t.Fatalf("documents = %d, want 4", len(result.Documents))
	}
	for _, d := range result.Documents {
		if d.Status != "parsed" {
			t.Errorf("%s status = %s, want parsed", d.Type, d.Status)
		}
		if _, err := os.Stat(layout.RecordPath("case-1", d.Type)); err != nil {
			t.Errorf("%s record not written: %v", d.Type, err)
		}
	}

	docs, err := LoadDocuments(layout, "case-1")
	if err != nil {
		t.Fatalf("LoadDocuments: %v", err)
	}
	if got := docs[models.DocFIR].Nested("fir_details", "fir_no"); got != "123/2024" {
		t.Errorf("fir_no round-trip = %q", got)
	}
	if got := docs[models.DocStatement].Nested("witness_details", "age"); got != "16" {
		t.Errorf("witness age round-trip = %q", got)
	}
}

func TestParseCaseOptionalAbsent(t *testing.T) {
	layout := storage.NewLayout(t.TempDir())
	if err := layout.EnsureCaseDirs("case-1"); err != nil {
		t.Fatal(err)
	}
	writeUpload(t, layout, "case-1", models.DocFIR)
	writeUpload(t, layout, "case-1", models.DocStatement)
	if err := layout.MarkSkipped("case-1", models.DocVictimMedical); err != nil {
		t.Fatal(err)
	}

	svc := NewService(layout, fullStub())
	result, err := svc.ParseCase(context.Background(), "case-1")
	if err != nil {
		t.Fatalf("ParseCase: %v", err)
	}
	byType := map[models.DocumentType]string{}
	for _, d := range result.Documents {
		byType[d.Type] = d.Status
	}
	if byType[models.DocFIR] != "parsed" || byType[models.DocStatement] != "parsed" {
		t.Errorf("required statuses = %v", byType)
	}
	// Explicitly skipped and simply absent optionals both degrade to skipped.
	if byType[models.DocVictimMedical] != "skipped" || byType[models.DocAccusedMedical] != "skipped" {
		t.Errorf("optional statuses = %v", byType)
	}

	docs, err := LoadDocuments(layout, "case-1")
	if err != nil {
		t.Fatalf("LoadDocuments: %v", err)
	}
	if !docs[models.DocVictimMedical].Empty() {
		t.Error("skipped record should be empty")
	}
}

func TestParseCaseIdempotent(t *testing.T) {
	layout := storage.NewLayout(t.TempDir())
	if err := layout.EnsureCaseDirs("case-1"); err != nil {
		t.Fatal(err)
	}
	for _, docType := range models.AllDocumentTypes {
		writeUpload(t, layout, "case-1", docType)
	}

	svc := NewService(layout, fullStub())
	readRecords := func() map[models.DocumentType][]byte {
		t.Helper()
		records := make(map[models.DocumentType][]byte, len(models.AllDocumentTypes))
		for _, docType := range models.AllDocumentTypes {
			data, err := os.ReadFile(layout.RecordPath("case-1", docType))
			if err != nil {
				t.Fatalf("read %s record: %v", docType, err)
			}
			records[docType] = data
		}
		return records
	}

	if _, err := svc.ParseCase(context.Background(), "case-1"); err != nil {
		t.Fatalf("first ParseCase: %v", err)
	}
	first := readRecords()
	if _, err := svc.ParseCase(context.Background(), "case-1"); err != nil {
		t.Fatalf("second ParseCase: %v", err)
	}
	second := readRecords()

	// Re-parsing identical uploads must regenerate byte-identical records.
	for _, docType := range models.AllDocumentTypes {
		if !bytes.Equal(first[docType], second[docType]) {
			t.Errorf("%s record changed across identical parse runs", docType)
		}
	}
}

func TestParseCaseMissingRequired(t *testing.T) {
	layout := storage.NewLayout(t.TempDir())
	if err := layout.EnsureCaseDirs("case-1"); err != nil {
		t.Fatal(err)
	}
	writeUpload(t, layout, "case-1", models.DocFIR)

	svc := NewService(layout, fullStub())
	result, err := svc.ParseCase(context.Background(), "case-1")
	if !errors.Is(err, caseerr.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	for _, d := range result.Documents {
		if d.Type == models.DocStatement && d.Status != "missing" {
			t.Errorf("statement status = %s, want missing", d.Status)
		}
	}
}

func TestParseCaseExtractionFailure(t *testing.T) {
	layout := storage.NewLayout(t.TempDir())
	if err := layout.EnsureCaseDirs("case-1"); err != nil {
		t.Fatal(err)
	}
	writeUpload(t, layout, "case-1", models.DocFIR)
	writeUpload(t, layout, "case-1", models.DocStatement)

	src := fullStub()
	src.errs = map[string]error{"statement.pdf": fmt.Errorf("scan unreadable: %w", caseerr.ErrParse)}

	svc := NewService(layout, src)
	result, err := svc.ParseCase(context.Background(), "case-1")
	if !errors.Is(err, caseerr.ErrParse) {
		t.Fatalf("err = %v, want ErrParse", err)
	}
	for _, d := range result.Documents {
		if d.Type == models.DocStatement {
			if d.Status != "error" || d.Error == "" {
				t.Errorf("statement status = %+v", d)
			}
		}
	}
}
