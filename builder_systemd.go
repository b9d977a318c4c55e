package svcinstall

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/renameio/v2"
)

// BuilderSystemd generates and parses systemd user unit files. The restart
// policy is fixed: the unit always carries Restart=always / RestartSec=10
// so the native manager owns crash recovery.
type BuilderSystemd struct {
	// UnitDir is the directory unit files are written to
	UnitDir string
	// RestartSec is the native restart delay written into the unit
	RestartSec int
}

// NewBuilderSystemd creates a BuilderSystemd writing into unitDir.
func NewBuilderSystemd(unitDir string) *BuilderSystemd {
	return &BuilderSystemd{
		UnitDir:    unitDir,
		RestartSec: int(DefaultRestartDelay.Seconds()),
	}
}

// Render generates the unit file content for an install request.
func (b *BuilderSystemd) Render(req InstallRequest, logFile, errFile string) (string, error) {
	if len(req.Args) == 0 {
		return "", ErrNoExecutable
	}

	var unit strings.Builder

	unit.WriteString("[Unit]\n")
	desc := req.Description
	if desc == "" {
		desc = req.Name
	}
	unit.WriteString(fmt.Sprintf("Description=%s\n", desc))
	unit.WriteString("After=network.target\n")
	unit.WriteString("\n")

	unit.WriteString("[Service]\n")
	unit.WriteString("Type=simple\n")
	unit.WriteString(fmt.Sprintf("ExecStart=%s\n", joinCommandLine(req.Args)))
	if req.WorkingDir != "" {
		unit.WriteString(fmt.Sprintf("WorkingDirectory=%s\n", req.WorkingDir))
	}

	// Deterministic output keeps artifact diffs readable across installs.
	keys := make([]string, 0, len(req.Env))
	for k := range req.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		unit.WriteString(fmt.Sprintf("Environment=\"%s=%s\"\n", k, strings.ReplaceAll(req.Env[k], `"`, `\"`)))
	}

	unit.WriteString("Restart=always\n")
	unit.WriteString(fmt.Sprintf("RestartSec=%d\n", b.RestartSec))
	if logFile != "" {
		unit.WriteString(fmt.Sprintf("StandardOutput=append:%s\n", logFile))
	}
	if errFile != "" {
		unit.WriteString(fmt.Sprintf("StandardError=append:%s\n", errFile))
	}
	unit.WriteString("\n")

	unit.WriteString("[Install]\n")
	unit.WriteString("WantedBy=default.target\n")

	return unit.String(), nil
}

// WriteUnit renders and atomically writes the unit file for the given unit
// name, overwriting any previous registration.
func (b *BuilderSystemd) WriteUnit(unit string, req InstallRequest, logFile, errFile string) (string, error) {
	content, err := b.Render(req, logFile, errFile)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(b.UnitDir, DirMode); err != nil {
		return "", fmt.Errorf("creating unit directory: %w", err)
	}
	path := Paths{UnitDir: b.UnitDir}.UnitPath(unit)
	if err := renameio.WriteFile(path, []byte(content), FileMode); err != nil {
		return "", fmt.Errorf("writing unit file: %w", err)
	}
	return path, nil
}

// ParseCommand reconstructs the ordered argument sequence from a unit file's
// ExecStart line. It returns nil when no ExecStart line is present, which is
// the "no prior registration" signal, never an error.
func (b *BuilderSystemd) ParseCommand(content string) []string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if !strings.HasPrefix(line, "ExecStart=") {
			continue
		}
		value := strings.TrimPrefix(line, "ExecStart=")
		// systemd exec prefixes ("-", "@", "+") are not arguments
		value = strings.TrimLeft(value, "-@+!: ")
		if args := splitCommandLine(value); len(args) > 0 {
			return args
		}
		return nil
	}
	return nil
}

// ReadCommand loads the unit file for the given unit name and parses its
// argument sequence. A missing file yields nil.
func (b *BuilderSystemd) ReadCommand(unit string) []string {
	data, err := os.ReadFile(Paths{UnitDir: b.UnitDir}.UnitPath(unit))
	if err != nil {
		return nil
	}
	return b.ParseCommand(string(data))
}
