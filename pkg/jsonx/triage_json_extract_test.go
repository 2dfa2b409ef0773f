package jsonx

import "testing"

type verdictPayload struct {
	IsInsurance bool    `json:"is_insurance"`
	Confidence  float64 `json:"confidence"`
}

func TestExtractObject(t *testing.T) {
	tests := []struct {
		name            string
		text            string
		wantErr         bool
		wantIsInsurance bool
		wantConfidence  float64
	}{
		{
			name:            "clean json",
			text:            `{"is_insurance": true, "confidence": 0.85}`,
			wantIsInsurance: true,
			wantConfidence:  0.85,
		},
		{
			name: "markdown fenced",
			text: "```json\n{\"is_insurance\": true, \"confidence\": 0.9}\n```",
			wantIsInsurance: true,
			wantConfidence:  0.9,
		},
		{
			name:            "prose before and after",
			text:            `Sure, here is my verdict: {"is_insurance": false, "confidence": 0.75} — let me know if you need more detail.`,
			wantIsInsurance: false,
			wantConfidence:  0.75,
		},
		{
			name:            "brace inside string value",
			text:            `{"is_insurance": true, "confidence": 0.8, "note": "pattern {x}"}`,
			wantIsInsurance: true,
			wantConfidence:  0.8,
		},
		{
			name:    "no object at all",
			text:    "I cannot answer that.",
			wantErr: true,
		},
		{
			name:    "unterminated object",
			text:    `{"is_insurance": true, "confidence": 0.8`,
			wantErr: true,
		},
		{
			name:    "malformed object",
			text:    `{"is_insurance": yes}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got verdictPayload
			err := ExtractObject(tt.text, &got)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ExtractObject() expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractObject() error = %v", err)
			}
			if got.IsInsurance != tt.wantIsInsurance {
				t.Errorf("is_insurance = %v, want %v", got.IsInsurance, tt.wantIsInsurance)
			}
			if got.Confidence != tt.wantConfidence {
				t.Errorf("confidence = %v, want %v", got.Confidence, tt.wantConfidence)
			}
		})
	}
}

func TestExtractObjectPicksFirst(t *testing.T) {
	text := `{"is_insurance": true, "confidence": 0.9} {"is_insurance": false, "confidence": 0.1}`

	var got verdictPayload
	if err := ExtractObject(text, &got); err != nil {
		t.Fatalf("ExtractObject() error = %v", err)
	}
	if !got.IsInsurance || got.Confidence != 0.9 {
		t.Errorf("expected first object, got %+v", got)
	}
}
