//go:build ignore

// Manual smoke test against a running instance. Usage:
//
//	TOKEN=<jwt> go run scripts/smoke_api.go
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/fatih/color"
)

const baseURL = "http://localhost:3000/api"

// Pretty print JSON helper
func prettyPrint(raw []byte) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		fmt.Println(string(raw))
		return
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

// Request helper
func sendRequest(method, url, token string, body interface{}) (*http.Response, []byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, baseURL+url, bodyReader)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	return resp, data, err
}

func main() {
	token := os.Getenv("TOKEN")
	if token == "" {
		color.Red("TOKEN env var is required")
		os.Exit(1)
	}

	color.Cyan("🚀 Starting Dispatch API Smoke Test\n")

	color.Yellow("\n1. Classify a math question")
	resp, data, err := sendRequest("POST", "/classify", token, map[string]interface{}{
		"query": "What is 2 + 2?",
	})
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	prettyPrint(data)

	color.Yellow("\n2. List configured subjects")
	resp, data, err = sendRequest("GET", "/subjects", token, nil)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	prettyPrint(data)

	color.Yellow("\n3. Send a chat message")
	resp, data, err = sendRequest("POST", "/chat/message", token, map[string]interface{}{
		"query":      "Explain the Pythagorean theorem briefly.",
		"session_id": "smoke-test",
	})
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	prettyPrint(data)

	color.Yellow("\n4. Backend status")
	resp, data, err = sendRequest("GET", "/status", token, nil)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	prettyPrint(data)

	color.Cyan("\n✅ Smoke test finished")
}
