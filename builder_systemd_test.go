package svcinstall

import (
	"reflect"
	"strings"
	"testing"
)

func TestBuilderSystemdRender(t *testing.T) {
	b := NewBuilderSystemd(t.TempDir())
	req := InstallRequest{
		Args:        []string{"/usr/local/bin/agentbus", "--port", "8000"},
		Description: "Test Service",
	}

	content, err := b.Render(req, "/var/log/agentbus.out.log", "/var/log/agentbus.err.log")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	wantLines := []string{
		"Description=Test Service",
		"ExecStart=/usr/local/bin/agentbus --port 8000",
		"Restart=always",
		"RestartSec=10",
		"StandardOutput=append:/var/log/agentbus.out.log",
		"StandardError=append:/var/log/agentbus.err.log",
		"WantedBy=default.target",
	}
	for _, line := range wantLines {
		if !strings.Contains(content, line) {
			t.Errorf("unit file missing %q:\n%s", line, content)
		}
	}
}

func TestBuilderSystemdRenderSections(t *testing.T) {
	b := NewBuilderSystemd(t.TempDir())
	req := InstallRequest{
		Args:       []string{"/bin/svc"},
		WorkingDir: "/srv/app",
		Env:        map[string]string{"PORT": "8000", "DEBUG": "1"},
	}

	content, err := b.Render(req, "", "")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	for _, section := range []string{"[Unit]", "[Service]", "[Install]"} {
		if !strings.Contains(content, section) {
			t.Errorf("unit file missing section %s", section)
		}
	}
	if !strings.Contains(content, "WorkingDirectory=/srv/app") {
		t.Error("unit file missing WorkingDirectory")
	}
	// Environment lines are written sorted by key
	debugIdx := strings.Index(content, `Environment="DEBUG=1"`)
	portIdx := strings.Index(content, `Environment="PORT=8000"`)
	if debugIdx < 0 || portIdx < 0 {
		t.Fatalf("environment lines missing:\n%s", content)
	}
	if debugIdx > portIdx {
		t.Error("environment lines not sorted by key")
	}
}

func TestBuilderSystemdRenderNoExecutable(t *testing.T) {
	b := NewBuilderSystemd(t.TempDir())
	if _, err := b.Render(InstallRequest{}, "", ""); err != ErrNoExecutable {
		t.Errorf("Render with empty args = %v, want ErrNoExecutable", err)
	}
}

func TestBuilderSystemdRoundTrip(t *testing.T) {
	b := NewBuilderSystemd(t.TempDir())
	args := []string{"/bin/x", "--flag", "value with spaces"}

	if _, err := b.WriteUnit("roundtrip", InstallRequest{Args: args}, "", ""); err != nil {
		t.Fatalf("WriteUnit failed: %v", err)
	}

	got := b.ReadCommand("roundtrip")
	if !reflect.DeepEqual(got, args) {
		t.Errorf("ReadCommand = %v, want %v", got, args)
	}
}

func TestBuilderSystemdParseCommand(t *testing.T) {
	b := NewBuilderSystemd(t.TempDir())

	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "plain",
			content: "[Service]\nExecStart=/bin/x --flag\n",
			want:    []string{"/bin/x", "--flag"},
		},
		{
			name:    "exec_prefix_stripped",
			content: "[Service]\nExecStart=-@/bin/x run\n",
			want:    []string{"/bin/x", "run"},
		},
		{
			name:    "comments_ignored",
			content: "# ExecStart=/wrong\n; ExecStart=/also-wrong\nExecStart=/bin/right\n",
			want:    []string{"/bin/right"},
		},
		{
			name:    "no_execstart",
			content: "[Unit]\nDescription=nothing here\n",
			want:    nil,
		},
		{
			name:    "empty_execstart",
			content: "ExecStart=\n",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := b.ParseCommand(tt.content)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseCommand = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuilderSystemdReadCommandMissingFile(t *testing.T) {
	b := NewBuilderSystemd(t.TempDir())
	if got := b.ReadCommand("never-written"); got != nil {
		t.Errorf("ReadCommand for missing unit = %v, want nil", got)
	}
}
