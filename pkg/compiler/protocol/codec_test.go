package protocol

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestEncoder(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    interface{}
		wantErr bool
	}{
		{
			name:    "encode ready message",
			msgType: MessageTypeReady,
			data: &ReadyMessage{
				Version:  "1.0.0",
				Platform: "linux",
				Arch:     "amd64",
				PID:      1234,
				Caps:     map[string]bool{"python": true, "node": true},
			},
			wantErr: false,
		},
		{
			name:    "encode event message",
			msgType: MessageTypeEvent,
			data: &EventMessage{
				JobID:   "job-123",
				Level:   "info",
				Message: "Compiling sources",
			},
			wantErr: false,
		},
		{
			name:    "encode result message",
			msgType: MessageTypeResult,
			data: &ResultMessage{
				JobID:      "job-123",
				Success:    true,
				OutputPath: "/out/main.exe",
				Duration:   42.5,
			},
			wantErr: false,
		},
		{
			name:    "encode error message",
			msgType: MessageTypeError,
			data: &ErrorMessage{
				JobID:     "job-123",
				Code:      "COMPILE_FAILED",
				Message:   "compiler exited with status 1",
				Retryable: false,
			},
			wantErr: false,
		},
		{
			name:    "encode exit message",
			msgType: MessageTypeExit,
			data: &ExitMessage{
				Reason:    "completed",
				ExitCode:  0,
				JobsTotal: 5,
			},
			wantErr: false,
		},
		{
			name:    "invalid message type",
			msgType: MessageType("INVALID"),
			data:    nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			enc := NewEncoder(&buf)

			err := enc.Encode(tt.msgType, tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("Encode() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr {
				// Verify output is valid JSON
				line := strings.TrimSpace(buf.String())
				var msg Message
				if err := json.Unmarshal([]byte(line), &msg); err != nil {
					t.Errorf("Output is not valid JSON: %v", err)
				}
				if msg.Type != tt.msgType {
					t.Errorf("Message type = %v, want %v", msg.Type, tt.msgType)
				}
			}
		})
	}
}

func TestDecoder(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		msgType MessageType
	}{
		{
			name:    "decode ready message",
			input:   `{"type":"READY","timestamp":"2024-01-01T00:00:00Z","data":{"version":"1.0.0","platform":"linux","arch":"amd64","pid":1234,"capabilities":{"python":true}}}`,
			wantErr: false,
			msgType: MessageTypeReady,
		},
		{
			name:    "decode build message",
			input:   `{"type":"BUILD","timestamp":"2024-01-01T00:00:00Z","data":{"job_id":"job-123","project_id":"proj-1","project_path":"/p","entry_file":"main.py","console_mode":false,"bundle_requirements":true}}`,
			wantErr: false,
			msgType: MessageTypeBuild,
		},
		{
			name:    "decode event message",
			input:   `{"type":"EVENT","timestamp":"2024-01-01T00:00:00Z","data":{"job_id":"job-123","level":"info","message":"Compiling","progress":40}}`,
			wantErr: false,
			msgType: MessageTypeEvent,
		},
		{
			name:    "invalid json",
			input:   `{invalid json`,
			wantErr: true,
		},
		{
			name:    "empty line",
			input:   ``,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := NewDecoder(strings.NewReader(tt.input + "\n"))
			msg, err := dec.Decode()

			if (err != nil) != tt.wantErr {
				t.Errorf("Decode() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr {
				if msg.Type != tt.msgType {
					t.Errorf("Message type = %v, want %v", msg.Type, tt.msgType)
				}
			}
		})
	}
}

func TestDecodeBuildRequest(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		entry   string
	}{
		{
			name:    "valid build request",
			input:   `{"type":"BUILD","timestamp":"2024-01-01T00:00:00Z","data":{"job_id":"job-123","project_id":"proj-1","project_path":"/home/u/app","entry_file":"src/main.py","console_mode":true,"bundle_requirements":true,"env_values":{"API_KEY":"k"}}}`,
			wantErr: false,
			entry:   "src/main.py",
		},
		{
			name:    "installer distribution",
			input:   `{"type":"BUILD","timestamp":"2024-01-01T00:00:00Z","data":{"job_id":"job-124","project_id":"proj-1","project_path":"/home/u/app","entry_file":"main.js","console_mode":false,"bundle_requirements":false,"distribution_type":"installer","create_start_menu":true,"publisher":"Acme"}}`,
			wantErr: false,
			entry:   "main.js",
		},
		{
			name:    "wrong message type",
			input:   `{"type":"EVENT","timestamp":"2024-01-01T00:00:00Z","data":{}}`,
			wantErr: true,
		},
		{
			name:    "missing job id",
			input:   `{"type":"BUILD","timestamp":"2024-01-01T00:00:00Z","data":{"project_id":"proj-1","project_path":"/p","entry_file":"main.py"}}`,
			wantErr: true,
		},
		{
			name:    "missing entry file",
			input:   `{"type":"BUILD","timestamp":"2024-01-01T00:00:00Z","data":{"job_id":"job-123","project_id":"proj-1","project_path":"/p"}}`,
			wantErr: true,
		},
		{
			name:    "unknown distribution type",
			input:   `{"type":"BUILD","timestamp":"2024-01-01T00:00:00Z","data":{"job_id":"job-123","project_id":"proj-1","project_path":"/p","entry_file":"main.py","distribution_type":"zipball"}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := NewDecoder(strings.NewReader(tt.input + "\n"))
			req, err := dec.DecodeBuildRequest()

			if (err != nil) != tt.wantErr {
				t.Errorf("DecodeBuildRequest() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr {
				if req.EntryFile != tt.entry {
					t.Errorf("EntryFile = %v, want %v", req.EntryFile, tt.entry)
				}
			}
		})
	}
}

func TestParseData(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		target  interface{}
		wantErr bool
	}{
		{
			name:    "parse event",
			data:    `{"job_id":"job-1","level":"info","message":"Compiling","progress":12}`,
			target:  &EventMessage{},
			wantErr: false,
		},
		{
			name:    "parse result",
			data:    `{"job_id":"job-1","success":true,"output_path":"/out/a.exe","duration":10.5}`,
			target:  &ResultMessage{},
			wantErr: false,
		},
		{
			name:    "invalid json",
			data:    `{invalid}`,
			target:  &EventMessage{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ParseData(json.RawMessage(tt.data), tt.target)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseData() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
