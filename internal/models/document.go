package models

// DocumentType is the tag routing an upload to its parser.
type DocumentType string

// Document types accepted by the upload endpoint.
const (
	DocFIR            DocumentType = "fir"
	DocStatement      DocumentType = "statement"
	DocVictimMedical  DocumentType = "victim_med"
	DocAccusedMedical DocumentType = "accused_med"
)

// AllDocumentTypes lists the document types in parse order.
var AllDocumentTypes = []DocumentType{DocFIR, DocStatement, DocVictimMedical, DocAccusedMedical}

// Valid reports whether t is a known document type.
func (t DocumentType) Valid() bool {
	switch t {
	case DocFIR, DocStatement, DocVictimMedical, DocAccusedMedical:
		return true
	}
	return false
}

// Required reports whether a case cannot be parsed without this document.
// Medical reports are optional and degrade to an empty record when absent.
func (t DocumentType) Required() bool {
	return t == DocFIR || t == DocStatement
}

// UploadName returns the fixed filename the upload is stored under.
func (t DocumentType) UploadName() string { return string(t) + ".pdf" }

// RecordName returns the filename of the structured record written by the
// parse stage into outputs/json/.
func (t DocumentType) RecordName() string {
	switch t {
	case DocVictimMedical:
		return "victim_med_rep.json"
	case DocAccusedMedical:
		return "accused_med_rep.json"
	default:
		return string(t) + ".json"
	}
}

// ParsedDocument is the structured record produced by the parse stage:
// a mapping from field name to extracted value, or a skipped marker.
type ParsedDocument struct {
	Type    DocumentType   `json:"type"`
	Skipped bool           `json:"skipped,omitempty"`
	Fields  map[string]any `json:"fields"`
}

// Empty reports whether the record carries no meaningful data: every value
// is nil, an empty string, or an empty collection.
func (d *ParsedDocument) Empty() bool {
	if d == nil || d.Skipped {
		return true
	}
	return !meaningful(d.Fields)
}

func meaningful(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case map[string]any:
		for _, nested := range val {
			if meaningful(nested) {
				return true
			}
		}
		return false
	case []any:
		for _, nested := range val {
			if meaningful(nested) {
				return true
			}
		}
		return false
	case []string:
		return len(val) > 0
	default:
		return true
	}
}

// Str returns the string value at key, or "" when absent or not a string.
func (d *ParsedDocument) Str(key string) string {
	if d == nil {
		return ""
	}
	s, _ := d.Fields[key].(string)
	return s
}

// Nested walks a path of nested map keys and returns the string found at the
// end, or "" when any hop is absent or the wrong shape.
func (d *ParsedDocument) Nested(path ...string) string {
	if d == nil || len(path) == 0 {
		return ""
	}
	current := any(d.Fields)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return ""
		}
		current = m[key]
	}
	s, _ := current.(string)
	return s
}

// DocumentStatus is one entry in the parse stage's per-document result list.
type DocumentStatus struct {
	Type       DocumentType `json:"type"`
	Status     string       `json:"status"` // "parsed", "skipped", "missing", "error"
	RecordFile string       `json:"record_file,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// ParseResult is the parse stage output: per-document statuses plus log lines.
type ParseResult struct {
	Documents []DocumentStatus `json:"documents"`
	Logs      []string         `json:"logs"`
}
