package output

import (
	"bytes"
	"testing"
)

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format   Format
		wide     bool
		wantType string
	}{
		{FormatJSON, false, "*output.JSONFormatter"},
		{FormatYAML, false, "*output.YAMLFormatter"},
		{FormatTable, false, "*output.TableFormatter"},
		{FormatTable, true, "*output.TableFormatter"},
		{"unknown", false, "*output.TableFormatter"}, // default to table
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			f := NewFormatter(tt.format, tt.wide)
			if f == nil {
				t.Fatal("NewFormatter returned nil")
			}

			// Check formatter type is correct
			switch tt.format {
			case FormatJSON:
				if _, ok := f.(*JSONFormatter); !ok {
					t.Error("expected JSONFormatter")
				}
			case FormatYAML:
				if _, ok := f.(*YAMLFormatter); !ok {
					t.Error("expected YAMLFormatter")
				}
			default:
				tf, ok := f.(*TableFormatter)
				if !ok {
					t.Error("expected TableFormatter")
				}
				if tt.wide && !tf.Wide {
					t.Error("expected Wide=true for table formatter")
				}
			}
		})
	}
}

func TestJSONFormatter_Format(t *testing.T) {
	event := struct {
		Type    string `json:"type"`
		Payload any    `json:"payload,omitempty"`
	}{Type: "artifact-uploaded", Payload: map[string]int{"size": 42}}

	tests := []struct {
		name    string
		compact bool
		data    any
		want    string
	}{
		{"indented", false, event, "{\n  \"type\": \"artifact-uploaded\",\n  \"payload\": {\n    \"size\": 42\n  }\n}\n"},
		{"compact", true, event, `{"type":"artifact-uploaded","payload":{"size":42}}` + "\n"},
		{"slice", true, []string{"a", "b"}, `["a","b"]` + "\n"},
		{"nil", false, nil, "null\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := (&JSONFormatter{Compact: tt.compact}).Format(&buf, tt.data); err != nil {
				t.Fatalf("Format() error = %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("Format() = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestYAMLFormatter_Format(t *testing.T) {
	f := &YAMLFormatter{}

	t.Run("uses json names in block style", func(t *testing.T) {
		data := struct {
			SessionValue string `json:"session_value"`
			PeerID       string `json:"peer_id"`
			Tokens       struct {
				Session int `json:"session"`
			} `json:"tokens"`
		}{SessionValue: "pmst_abc", PeerID: "p-1"}
		data.Tokens.Session = 3

		var buf bytes.Buffer
		if err := f.Format(&buf, data); err != nil {
			t.Fatalf("Format() error = %v", err)
		}

		want := "session_value: pmst_abc\npeer_id: p-1\ntokens:\n  session: 3\n"
		if buf.String() != want {
			t.Errorf("Format() = %q, want %q", buf.String(), want)
		}
	})

	t.Run("formats slice", func(t *testing.T) {
		var buf bytes.Buffer
		if err := f.Format(&buf, []string{"a", "b"}); err != nil {
			t.Fatalf("Format() error = %v", err)
		}
		if buf.String() != "- a\n- b\n" {
			t.Errorf("Format() = %q", buf.String())
		}
	})

	t.Run("unsupported value", func(t *testing.T) {
		var buf bytes.Buffer
		if err := f.Format(&buf, make(chan int)); err == nil {
			t.Error("Format(chan) should fail")
		}
	})
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"json", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
