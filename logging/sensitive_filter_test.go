package logging

import (
	"strings"
	"testing"
)

func TestRedactSensitiveData(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		leaked  string
		changed bool
	}{
		{"runpod key", "key rpa_ABCDEFGHIJKLMNOPQRSTUV used", "rpa_ABCDEFGHIJKLMNOPQRSTUV", true},
		{"bearer header", "Authorization: Bearer abc.def.ghijklmnop", "abc.def.ghijklmnop", true},
		{"token assignment", "token=supersecretvalue", "supersecretvalue", true},
		{"presigned url", "https://bucket.example/img.png?X-Amz-Signature=deadbeefcafe1234", "deadbeefcafe1234", true},
		{"job id", "job c80ffee4-f315-4e25-a146-0f3d98cf024b-u1 IN_QUEUE", "", false},
		{"plain", "hello world", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RedactSensitiveData(tt.input)
			if tt.changed {
				if strings.Contains(got, tt.leaked) {
					t.Errorf("RedactSensitiveData(%q) = %q, still contains %q", tt.input, got, tt.leaked)
				}
				if !strings.Contains(got, RedactedPlaceholder) {
					t.Errorf("RedactSensitiveData(%q) = %q, missing placeholder", tt.input, got)
				}
			} else if got != tt.input {
				t.Errorf("RedactSensitiveData(%q) = %q, want unchanged", tt.input, got)
			}
			if ContainsSensitiveData(tt.input) != tt.changed {
				t.Errorf("ContainsSensitiveData(%q) = %v, want %v", tt.input, !tt.changed, tt.changed)
			}
		})
	}
}

func TestIsSensitiveField(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"RUNPOD_API_KEY", true},
		{"api_key", true},
		{"Authorization", true},
		{"refresh_token", true},
		{"job_id", false},
		{"endpoint_id", false},
		{"cloth_type", false},
	}

	for _, tt := range tests {
		if got := IsSensitiveField(tt.name); got != tt.want {
			t.Errorf("IsSensitiveField(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRedactField(t *testing.T) {
	if got := RedactField("RUNPOD_API_KEY", "anything"); got != RedactedPlaceholder {
		t.Errorf("RedactField(key) = %q, want placeholder", got)
	}
	if got := RedactField("person_image", "person.png"); got != "person.png" {
		t.Errorf("RedactField(plain) = %q, want unchanged", got)
	}
}
