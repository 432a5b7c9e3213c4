package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliTestEnv struct {
	backendURL  string
	configPath  string
	dataDir     string
	artifactDir string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	dataDir := filepath.Join(base, "data")
	logDir := filepath.Join(base, "logs")
	artifactDir := filepath.Join(base, "artifacts")

	mux := http.NewServeMux()
	mux.HandleFunc("/supervisor/session/start", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"success":         true,
			"session_id":      "sess-1",
			"welcome_message": "Welcome! Upload your CV to begin.",
		})
	})
	mux.HandleFunc("/supervisor/session/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodDelete:
			writeJSON(w, map[string]any{"success": true})
		case strings.HasSuffix(r.URL.Path, "/state"):
			writeJSON(w, map[string]any{
				"success": true,
				"session_info": map[string]any{
					"session_id":    "sess-1",
					"session_stage": "collecting_requirements",
					"has_cv_data":   true,
				},
			})
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/supervisor/session/message", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			UserInput string `json:"user_input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		writeJSON(w, map[string]any{
			"success":           true,
			"assistant_message": "ack: " + payload.UserInput,
		})
	})
	mux.HandleFunc("/cv/upload", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"success": true,
			"cv_data": map[string]any{
				"name":   "Dana Doe",
				"email":  "dana@example.com",
				"phone":  "555-0100",
				"skills": []string{"Go"},
			},
		})
	})
	mux.HandleFunc("/job/extract/text", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"success": true,
			"job_data": map[string]any{
				"job_title":       "Backend Engineer",
				"job_level":       "Senior",
				"required_skills": []string{"Go", "SQL"},
			},
		})
	})
	mux.HandleFunc("/writer/analyze-alignment", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"success": true,
			"tailoring_plan": map[string]any{
				"matching_skills": []string{"Go"},
				"reasoning":       "strong overlap",
			},
		})
	})
	mux.HandleFunc("/writer/generate-cv", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"success":  true,
			"pdf_path": "/outputs/tailored_cv.pdf",
		})
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF-1.4 generated")
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[backend]
base_url = %q
request_timeout = 2
long_call_timeout = 5

[paths]
data_dir = %q
log_dir = %q
artifact_dir = %q

[logging]
format = "json"
level = "error"
`, server.URL, dataDir, logDir, artifactDir)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return &cliTestEnv{
		backendURL:  server.URL,
		configPath:  configPath,
		dataDir:     dataDir,
		artifactDir: artifactDir,
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeTestPDF(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "resume.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 test resume"), 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	return path
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
