package llm

import "testing"

func TestParseJSON(t *testing.T) {
	type verdict struct {
		ID     string `json:"id"`
		Passed bool   `json:"passed"`
	}

	tests := []struct {
		name    string
		raw     string
		wantID  string
		wantErr bool
	}{
		{
			name:   "bare object",
			raw:    `{"id":"printer-offline","passed":true}`,
			wantID: "printer-offline",
		},
		{
			name:   "fenced json block",
			raw:    "```json\n{\"id\":\"wifi-deauth\",\"passed\":false}\n```",
			wantID: "wifi-deauth",
		},
		{
			name:   "prose around object",
			raw:    "Here is the verdict:\n{\"id\":\"dlp-rule\",\"passed\":true}\nDone.",
			wantID: "dlp-rule",
		},
		{
			name:    "empty",
			raw:     "  ",
			wantErr: true,
		},
		{
			name:    "no object",
			raw:     "the model refused to answer",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v verdict
			err := ParseJSON(tt.raw, &v)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseJSON(%q) expected error, got %+v", tt.raw, v)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseJSON(%q): %v", tt.raw, err)
			}
			if v.ID != tt.wantID {
				t.Errorf("id = %q, want %q", v.ID, tt.wantID)
			}
		})
	}
}
