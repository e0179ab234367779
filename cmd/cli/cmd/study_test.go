package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestListCommand(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/studies" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"studies": []map[string]interface{}{
				{
					"studyName":      "winter-peak",
					"userId":         "alice",
					"caseFormat":     "XIIDM",
					"loadFlowStatus": "CONVERGED",
					"private":        false,
					"creationDate":   time.Now().UTC(),
				},
			},
		})
	}))
	defer server.Close()

	viper.Set("url", server.URL)
	viper.Set("user", "alice")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"list"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "winter-peak") || !strings.Contains(output, "CONVERGED") {
		t.Errorf("expected study row in output, got: %s", output)
	}
}

func TestGetCommand_NotFound(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"study not found"}`))
	}))
	defer server.Close()

	viper.Set("url", server.URL)
	viper.Set("user", "alice")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"get", "--name", "missing"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "Error (404)") {
		t.Errorf("expected 404 error in output, got: %s", output)
	}
}

func TestDeleteCommand_DefaultsOwnerToUser(t *testing.T) {
	resetViper()

	// Reset flags from previous tests
	deleteCmd.Flags().Set("owner", "")
	deleteCmd.Flags().Set("name", "")

	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	viper.Set("url", server.URL)
	viper.Set("user", "alice")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"delete", "--name", "old-study"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/v1/alice/studies/old-study" {
		t.Errorf("expected owner to default to user, got path: %s", gotPath)
	}
	if !strings.Contains(stdout.String(), "Study deleted") {
		t.Errorf("expected success message, got: %s", stdout.String())
	}
}

func TestSecurityRunCommand_RequiresContingencyList(t *testing.T) {
	resetViper()

	securityRunCmd.Flags().Set("name", "")
	securityRunCmd.Flags().Set("contingency-list", "")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called when validation fails")
	}))
	defer server.Close()

	viper.Set("url", server.URL)
	viper.Set("user", "alice")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"security", "run", "--name", "my-study"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(stdout.String(), "--contingency-list is required") {
		t.Errorf("expected contingency-list required error, got: %s", stdout.String())
	}
}
