package svcinstall

import (
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/renameio/v2"
)

// taskNamespace is the Task Scheduler schema namespace.
const taskNamespace = "http://schemas.microsoft.com/windows/2004/02/mit/task"

// taskDefinition is the scheduled-task XML document. Two triggers register
// the task for user logon and machine boot; the settings block is fixed
// policy (one instance, hard terminate allowed, start when available, no
// execution time limit).
type taskDefinition struct {
	XMLName          xml.Name             `xml:"Task"`
	Version          string               `xml:"version,attr"`
	Xmlns            string               `xml:"xmlns,attr"`
	RegistrationInfo taskRegistrationInfo `xml:"RegistrationInfo"`
	Triggers         taskTriggers         `xml:"Triggers"`
	Settings         taskSettings         `xml:"Settings"`
	Actions          taskActions          `xml:"Actions"`
	ContextData      taskContextData      `xml:"ContextData"`
}

type taskRegistrationInfo struct {
	Date        string `xml:"Date"`
	Author      string `xml:"Author"`
	Description string `xml:"Description,omitempty"`
}

type taskTriggers struct {
	LogonTrigger taskTrigger `xml:"LogonTrigger"`
	BootTrigger  taskTrigger `xml:"BootTrigger"`
}

type taskTrigger struct {
	Enabled bool `xml:"Enabled"`
}

type taskSettings struct {
	MultipleInstancesPolicy    string `xml:"MultipleInstancesPolicy"`
	AllowHardTerminate         bool   `xml:"AllowHardTerminate"`
	StartWhenAvailable         bool   `xml:"StartWhenAvailable"`
	DisallowStartIfOnBatteries bool   `xml:"DisallowStartIfOnBatteries"`
	StopIfGoingOnBatteries     bool   `xml:"StopIfGoingOnBatteries"`
	Enabled                    bool   `xml:"Enabled"`
	ExecutionTimeLimit         string `xml:"ExecutionTimeLimit"`
}

type taskActions struct {
	Context string     `xml:"Context,attr"`
	Exec    taskAction `xml:"Exec"`
}

type taskAction struct {
	Command          string `xml:"Command"`
	Arguments        string `xml:"Arguments,omitempty"`
	WorkingDirectory string `xml:"WorkingDirectory,omitempty"`
}

// taskContextData carries the resolved log file paths alongside the
// registration so diagnose can locate them later.
type taskContextData struct {
	LogPath      string `xml:"LogPath"`
	ErrorLogPath string `xml:"ErrorLogPath"`
}

// BuilderSchtasks generates scheduled-task definitions and parses the
// registration back out of the verbose CSV query output.
type BuilderSchtasks struct {
	// XMLDir is the directory generated task definitions are kept in
	XMLDir string
	// Author is written into RegistrationInfo
	Author string
	// now is injectable for deterministic Date stamps in tests
	now func() time.Time
}

// NewBuilderSchtasks creates a BuilderSchtasks writing into xmlDir.
func NewBuilderSchtasks(xmlDir string) *BuilderSchtasks {
	return &BuilderSchtasks{
		XMLDir: xmlDir,
		Author: "svcinstall",
		now:    time.Now,
	}
}

// Render generates the task-definition XML for an install request. The
// first argument becomes the Exec command; the rest are space-joined with
// quoting into Arguments.
func (b *BuilderSchtasks) Render(req InstallRequest, logFile, errFile string) (string, error) {
	if len(req.Args) == 0 {
		return "", ErrNoExecutable
	}

	task := taskDefinition{
		Version: "1.2",
		Xmlns:   taskNamespace,
		RegistrationInfo: taskRegistrationInfo{
			Date:        b.now().Format(time.RFC3339),
			Author:      b.Author,
			Description: req.Description,
		},
		Triggers: taskTriggers{
			LogonTrigger: taskTrigger{Enabled: true},
			BootTrigger:  taskTrigger{Enabled: true},
		},
		Settings: taskSettings{
			MultipleInstancesPolicy:    "IgnoreNew",
			AllowHardTerminate:         true,
			StartWhenAvailable:         true,
			DisallowStartIfOnBatteries: false,
			StopIfGoingOnBatteries:     false,
			Enabled:                    true,
			ExecutionTimeLimit:         "PT0S",
		},
		Actions: taskActions{
			Context: "Author",
			Exec: taskAction{
				Command:          req.Args[0],
				Arguments:        joinCommandLine(req.Args[1:]),
				WorkingDirectory: req.WorkingDir,
			},
		},
		ContextData: taskContextData{
			LogPath:      logFile,
			ErrorLogPath: errFile,
		},
	}

	out, err := xml.MarshalIndent(task, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling task definition: %w", err)
	}
	return xml.Header + string(out) + "\n", nil
}

// WriteTaskXML renders and atomically writes the task definition for the
// given task name, overwriting any previous artifact.
func (b *BuilderSchtasks) WriteTaskXML(task string, req InstallRequest, logFile, errFile string) (string, error) {
	content, err := b.Render(req, logFile, errFile)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(b.XMLDir, DirMode); err != nil {
		return "", fmt.Errorf("creating task directory: %w", err)
	}
	path := Paths{ConfigDir: b.XMLDir}.TaskXMLPath(task)
	if err := renameio.WriteFile(path, []byte(content), FileMode); err != nil {
		return "", fmt.Errorf("writing task definition: %w", err)
	}
	return path, nil
}

// ParseCommand reconstructs the ordered argument sequence from the verbose
// CSV query output ("schtasks /query /v /fo csv"). It returns nil when the
// "Task To Run" field is absent, which is the "no prior registration"
// signal, never an error.
func (b *BuilderSchtasks) ParseCommand(csvOutput string) []string {
	record := parseTaskQueryCSV(csvOutput)
	if record == nil {
		return nil
	}
	run, ok := record["task to run"]
	if !ok || run == "" {
		return nil
	}
	return splitCommandLine(run)
}

// parseTaskQueryCSV reduces header row + first data row into a map keyed by
// lower-cased header name. Returns nil when no data row exists.
func parseTaskQueryCSV(output string) map[string]string {
	r := csv.NewReader(strings.NewReader(output))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil
	}
	for {
		row, err := r.Read()
		if err != nil {
			return nil
		}
		// schtasks repeats the header before every task block
		if len(row) > 0 && row[0] == header[0] {
			continue
		}
		record := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(row) {
				record[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(row[i])
			}
		}
		return record
	}
}
