package probe

import (
	"testing"

	"uptime/internal/config"
	"uptime/internal/storage"
)

func TestEvaluateQuery(t *testing.T) {
	tests := []struct {
		name       string
		query      config.QuerySpec
		body       string
		wantOK     bool
		wantReason storage.ReasonCode
	}{
		{
			name:   "jsonpath match",
			query:  config.QuerySpec{Type: "jsonpath", Expression: "status", Expected: "ok"},
			body:   `{"status":"ok"}`,
			wantOK: true,
		},
		{
			name:   "jsonpath nested match",
			query:  config.QuerySpec{Type: "jsonpath", Expression: "data.health.state", Expected: "green"},
			body:   `{"data":{"health":{"state":"green"}}}`,
			wantOK: true,
		},
		{
			name:       "jsonpath value mismatch",
			query:      config.QuerySpec{Type: "jsonpath", Expression: "status", Expected: "ok"},
			body:       `{"status":"degraded"}`,
			wantOK:     false,
			wantReason: storage.ReasonQueryNotSatisfied,
		},
		{
			name:       "jsonpath missing path",
			query:      config.QuerySpec{Type: "jsonpath", Expression: "nope", Expected: "x"},
			body:       `{"status":"ok"}`,
			wantOK:     false,
			wantReason: storage.ReasonQueryNotSatisfied,
		},
		{
			name:       "jsonpath invalid json",
			query:      config.QuerySpec{Type: "jsonpath", Expression: "status", Expected: "ok"},
			body:       `<html>not json</html>`,
			wantOK:     false,
			wantReason: storage.ReasonInvalidResponse,
		},
		{
			name:   "xpath match",
			query:  config.QuerySpec{Type: "xpath", Expression: "//health/status", Expected: "ok"},
			body:   `<health><status>ok</status></health>`,
			wantOK: true,
		},
		{
			name:   "xpath trims whitespace",
			query:  config.QuerySpec{Type: "xpath", Expression: "//status", Expected: "ok"},
			body:   "<root><status>\n  ok\n</status></root>",
			wantOK: true,
		},
		{
			name:       "xpath no match",
			query:      config.QuerySpec{Type: "xpath", Expression: "//missing", Expected: "ok"},
			body:       `<health><status>ok</status></health>`,
			wantOK:     false,
			wantReason: storage.ReasonQueryNotSatisfied,
		},
		{
			name:       "xpath invalid expression",
			query:      config.QuerySpec{Type: "xpath", Expression: "///[", Expected: "ok"},
			body:       `<health/>`,
			wantOK:     false,
			wantReason: storage.ReasonInvalidParams,
		},
		{
			name:   "regex match default expected",
			query:  config.QuerySpec{Type: "regex", Expression: `"status":\s*"ok"`},
			body:   `{"status": "ok"}`,
			wantOK: true,
		},
		{
			name:   "regex expected false means no match",
			query:  config.QuerySpec{Type: "regex", Expression: "error", Expected: "false"},
			body:   `all good`,
			wantOK: true,
		},
		{
			name:       "regex mismatch",
			query:      config.QuerySpec{Type: "regex", Expression: "healthy", Expected: "true"},
			body:       `degraded`,
			wantOK:     false,
			wantReason: storage.ReasonQueryNotSatisfied,
		},
		{
			name:       "regex invalid pattern",
			query:      config.QuerySpec{Type: "regex", Expression: "([", Expected: "true"},
			body:       `x`,
			wantOK:     false,
			wantReason: storage.ReasonInvalidParams,
		},
		{
			name:       "regex invalid expected",
			query:      config.QuerySpec{Type: "regex", Expression: "ok", Expected: "yes-please"},
			body:       `ok`,
			wantOK:     false,
			wantReason: storage.ReasonInvalidParams,
		},
		{
			name:       "unknown query type",
			query:      config.QuerySpec{Type: "css", Expression: ".status", Expected: "ok"},
			body:       `x`,
			wantOK:     false,
			wantReason: storage.ReasonInvalidParams,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason, msg := evaluateQuery(&tt.query, []byte(tt.body))
			if ok != tt.wantOK {
				t.Fatalf("evaluateQuery() ok = %v, want %v (msg: %s)", ok, tt.wantOK, msg)
			}
			if !ok && reason != tt.wantReason {
				t.Errorf("evaluateQuery() reason = %s, want %s", reason, tt.wantReason)
			}
		})
	}
}
