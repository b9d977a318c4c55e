package svcinstall

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/renameio/v2"
)

// BuilderLaunchd generates and parses launchd property lists for per-user
// agents. RunAtLoad and KeepAlive are fixed policy so launchd owns crash
// recovery; the agent runs as a Background process with a raised soft
// file-descriptor limit.
type BuilderLaunchd struct {
	// AgentDir is the LaunchAgents directory plists are written to
	AgentDir string
	// FileLimit is the soft NumberOfFiles limit written into the plist
	FileLimit int
}

// NewBuilderLaunchd creates a BuilderLaunchd writing into agentDir.
func NewBuilderLaunchd(agentDir string) *BuilderLaunchd {
	return &BuilderLaunchd{
		AgentDir:  agentDir,
		FileLimit: DefaultFileLimit,
	}
}

const plistHeader = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
`

// Render generates the property-list content for an install request.
func (b *BuilderLaunchd) Render(label string, req InstallRequest, logFile, errFile string) (string, error) {
	if len(req.Args) == 0 {
		return "", ErrNoExecutable
	}

	var sb strings.Builder
	sb.WriteString(plistHeader)

	writeKV := func(key, value string) {
		sb.WriteString("\t<key>" + xmlEscape(key) + "</key>\n")
		sb.WriteString("\t<string>" + xmlEscape(value) + "</string>\n")
	}

	writeKV("Label", label)
	if req.Description != "" {
		writeKV("Comment", req.Description)
	}

	sb.WriteString("\t<key>ProgramArguments</key>\n\t<array>\n")
	for _, arg := range req.Args {
		sb.WriteString("\t\t<string>" + xmlEscape(arg) + "</string>\n")
	}
	sb.WriteString("\t</array>\n")

	if req.WorkingDir != "" {
		writeKV("WorkingDirectory", req.WorkingDir)
	}

	sb.WriteString("\t<key>RunAtLoad</key>\n\t<true/>\n")
	sb.WriteString("\t<key>KeepAlive</key>\n\t<true/>\n")

	writeKV("StandardOutPath", logFile)
	writeKV("StandardErrorPath", errFile)

	if len(req.Env) > 0 {
		sb.WriteString("\t<key>EnvironmentVariables</key>\n\t<dict>\n")
		keys := make([]string, 0, len(req.Env))
		for k := range req.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString("\t\t<key>" + xmlEscape(k) + "</key>\n")
			sb.WriteString("\t\t<string>" + xmlEscape(req.Env[k]) + "</string>\n")
		}
		sb.WriteString("\t</dict>\n")
	}

	writeKV("ProcessType", "Background")
	sb.WriteString("\t<key>SoftResourceLimits</key>\n\t<dict>\n")
	sb.WriteString("\t\t<key>NumberOfFiles</key>\n")
	sb.WriteString(fmt.Sprintf("\t\t<integer>%d</integer>\n", b.FileLimit))
	sb.WriteString("\t</dict>\n")

	sb.WriteString("</dict>\n</plist>\n")
	return sb.String(), nil
}

// WritePlist renders and atomically writes the plist for the given label,
// overwriting any previous registration.
func (b *BuilderLaunchd) WritePlist(label string, req InstallRequest, logFile, errFile string) (string, error) {
	content, err := b.Render(label, req, logFile, errFile)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(b.AgentDir, DirMode); err != nil {
		return "", fmt.Errorf("creating agent directory: %w", err)
	}
	path := Paths{AgentDir: b.AgentDir}.PlistPath(label)
	if err := renameio.WriteFile(path, []byte(content), FileMode); err != nil {
		return "", fmt.Errorf("writing plist: %w", err)
	}
	return path, nil
}

// plistRegistration is the subset of a plist this package reads back.
type plistRegistration struct {
	Label      string
	Comment    string
	Args       []string
	WorkingDir string
	Env        map[string]string
}

// ParseCommand reconstructs the ordered argument sequence from plist
// content. It returns nil when no ProgramArguments are present, which is
// the "no prior registration" signal, never an error.
func (b *BuilderLaunchd) ParseCommand(content string) []string {
	reg := parsePlist(content)
	if reg == nil || len(reg.Args) == 0 {
		return nil
	}
	return reg.Args
}

// ReadCommand loads the plist for the given label and parses its argument
// sequence. A missing file yields nil.
func (b *BuilderLaunchd) ReadCommand(label string) []string {
	data, err := os.ReadFile(Paths{AgentDir: b.AgentDir}.PlistPath(label))
	if err != nil {
		return nil
	}
	return b.ParseCommand(string(data))
}

// parsePlist extracts the registration fields with a token walk. Malformed
// input degrades to whatever was read before the error; absent fields stay
// zero. The xml decoder unescapes entity references in character data.
func parsePlist(content string) *plistRegistration {
	dec := xml.NewDecoder(strings.NewReader(content))
	// plists carry a DOCTYPE declaration; no external entities are loaded
	dec.Strict = false

	reg := &plistRegistration{}
	var key string

	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "key":
			key = elementText(dec)
		case "string":
			switch key {
			case "WorkingDirectory":
				reg.WorkingDir = elementText(dec)
			case "Label":
				reg.Label = elementText(dec)
			case "Comment":
				reg.Comment = elementText(dec)
			}
			key = ""
		case "array":
			if key == "ProgramArguments" {
				reg.Args = parseStringArray(dec)
			} else {
				_ = dec.Skip()
			}
			key = ""
		case "dict":
			if key == "EnvironmentVariables" {
				reg.Env = parseStringDict(dec)
				key = ""
			}
			// top-level dict: keep walking its children
		}
	}
	if reg.Label == "" && len(reg.Args) == 0 {
		return nil
	}
	return reg
}

// parseStringArray consumes an <array> of <string> elements.
func parseStringArray(dec *xml.Decoder) []string {
	var out []string
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "string" {
				out = append(out, elementText(dec))
			} else {
				_ = dec.Skip()
			}
		case xml.EndElement:
			if t.Name.Local == "array" {
				return out
			}
		}
	}
}

// parseStringDict consumes a <dict> of <key>/<string> pairs.
func parseStringDict(dec *xml.Decoder) map[string]string {
	out := make(map[string]string)
	var key string
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "key":
				key = elementText(dec)
			case "string":
				if key != "" {
					out[key] = elementText(dec)
					key = ""
				}
			default:
				_ = dec.Skip()
			}
		case xml.EndElement:
			if t.Name.Local == "dict" {
				return out
			}
		}
	}
}

// elementText reads character data up to the current element's end tag.
func elementText(dec *xml.Decoder) string {
	var sb strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
	return sb.String()
}

// xmlEscape escapes & < > " ' for XML content and attribute positions.
func xmlEscape(s string) string {
	var buf bytes.Buffer
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		return s
	}
	return buf.String()
}
