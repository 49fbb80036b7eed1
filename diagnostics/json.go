package diagnostics

import "encoding/json"

type jsonSpan struct {
	File      string `json:"file"`
	StartLine int    `json:"startLine"`
	StartCol  int    `json:"startCol"`
	EndLine   int    `json:"endLine"`
	EndCol    int    `json:"endCol"`
}

type jsonDiagnostic struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Span    *jsonSpan      `json:"span,omitempty"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// JSON renders diagnostics as a JSON array, one object per finding.
func JSON(diags []*Diagnostic) ([]byte, error) {
	out := make([]jsonDiagnostic, len(diags))
	for i, d := range diags {
		jd := jsonDiagnostic{Code: d.Code, Message: d.Message, Hint: d.Hint, Context: d.Context}
		if d.Span != nil {
			jd.Span = &jsonSpan{
				File:      d.Span.File,
				StartLine: d.Span.StartLine,
				StartCol:  d.Span.StartCol,
				EndLine:   d.Span.EndLine,
				EndCol:    d.Span.EndCol,
			}
		}
		out[i] = jd
	}
	return json.Marshal(out)
}
