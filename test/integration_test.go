// ABOUTME: Integration tests for the lift CLI.
// ABOUTME: Exercises the offline workflow end to end through the binary.
package test

import (
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func TestOfflineWorkflow(t *testing.T) {
	// Build the binary
	projectRoot, _ := filepath.Abs("..")
	liftBinary := filepath.Join(projectRoot, "lift")

	buildCmd := exec.Command("go", "build", "-o", liftBinary, "./cmd/lift")
	buildCmd.Dir = projectRoot
	if output, err := buildCmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build: %v\n%s", err, output)
	}
	defer os.Remove(liftBinary)

	// Redirect config and data into a temp dir
	tmpDir := t.TempDir()
	env := append(os.Environ(),
		"XDG_CONFIG_HOME="+filepath.Join(tmpDir, "config"),
		"XDG_DATA_HOME="+filepath.Join(tmpDir, "data"),
		"NO_COLOR=1",
	)

	run := func(args ...string) (string, error) {
		cmd := exec.Command(liftBinary, args...)
		cmd.Env = env
		output, err := cmd.CombinedOutput()
		return string(output), err
	}

	// Create a template
	output, err := run("template", "add", "Push Day", "--exercise", "Bench Press:2:8:80")
	if err != nil {
		t.Fatalf("Failed to add template: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Added template Push Day") {
		t.Errorf("Expected 'Added template Push Day' in output, got: %s", output)
	}

	output, err = run("template", "list")
	if err != nil {
		t.Fatalf("Failed to list templates: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Push Day") {
		t.Errorf("Expected template in list, got: %s", output)
	}
	m := regexp.MustCompile(`(?m)^([0-9a-f]{8})\s`).FindStringSubmatch(output)
	if m == nil {
		t.Fatalf("No template id in list output: %s", output)
	}
	templateID := m[1]

	// Start a session; placeholder sets come from the template
	output, err = run("session", "start", templateID)
	if err != nil {
		t.Fatalf("Failed to start session: %v\n%s", err, output)
	}
	m = regexp.MustCompile(`session ([0-9a-f]{8})`).FindStringSubmatch(output)
	if m == nil {
		t.Fatalf("No session id in output: %s", output)
	}
	sessionID := m[1]

	// Log and complete a set
	output, err = run("set", "log", sessionID, "Bench Press", "1", "10", "--weight", "82.5")
	if err != nil {
		t.Fatalf("Failed to log set: %v\n%s", err, output)
	}
	if !strings.Contains(output, "10 reps recorded") {
		t.Errorf("Expected rep confirmation, got: %s", output)
	}

	output, err = run("set", "done", sessionID, "Bench Press", "1")
	if err != nil {
		t.Fatalf("Failed to complete set: %v\n%s", err, output)
	}

	output, err = run("session", "show", sessionID)
	if err != nil {
		t.Fatalf("Failed to show session: %v\n%s", err, output)
	}
	if !strings.Contains(output, "10 reps") {
		t.Errorf("Expected logged reps in session view, got: %s", output)
	}

	// Finish the session
	output, err = run("session", "finish", sessionID)
	if err != nil {
		t.Fatalf("Failed to finish session: %v\n%s", err, output)
	}
	if !strings.Contains(output, "completed") {
		t.Errorf("Expected completed status, got: %s", output)
	}

	// Everything above happened offline: five mutations are queued
	output, err = run("sync", "status")
	if err != nil {
		t.Fatalf("Failed to get sync status: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Pending mutations: 5") {
		t.Errorf("Expected 5 pending mutations, got: %s", output)
	}
	if !strings.Contains(output, "never pulled") {
		t.Errorf("Expected untouched watermarks, got: %s", output)
	}

	// Sync refuses to run unconfigured
	output, err = run("sync", "now")
	if err == nil {
		t.Fatalf("Expected unconfigured sync to fail, got: %s", output)
	}
	if !strings.Contains(output, "sync not configured") {
		t.Errorf("Expected configuration hint, got: %s", output)
	}
}
