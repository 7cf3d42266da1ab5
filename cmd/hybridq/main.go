// Package main implements the hybridq CLI for manual operations against a hybridqd server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// version information
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// options holds flags shared by every command.
type options struct {
	serverURL string
	timeout   time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "hybridq",
		Short: "CLI for hybridqd server operations",
		Long: `hybridq is a command-line interface for the hybridqd HTTP server.
It connects databases, uploads documents and runs hybrid queries.`,
		Version:      version,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.serverURL, "server", "http://localhost:8000", "hybridqd server URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 60*time.Second, "request timeout")

	root.AddCommand(
		newHealthCmd(opts),
		newConnectCmd(opts),
		newSchemaCmd(opts),
		newUploadCmd(opts),
		newQueryCmd(opts),
	)
	return root
}

func (o *options) client() *http.Client {
	return &http.Client{Timeout: o.timeout}
}

// do sends req and decodes a 200 response into out. Any other status is
// returned as an error carrying the server's message.
func (o *options) do(req *http.Request, out any) error {
	resp, err := o.client().Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("server returned status %d: %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (o *options) get(path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, o.serverURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return o.do(req, out)
}

func (o *options) postJSON(path string, in, out any) error {
	reqJSON, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, o.serverURL+path, bytes.NewReader(reqJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return o.do(req, out)
}

// printJSON writes v indented.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// HealthResponse matches internal/http HealthResponse
type HealthResponse struct {
	Status    string `json:"status"`
	Connected bool   `json:"connected"`
	Chunks    int    `json:"indexed_chunks"`
	Version   uint64 `json:"data_version"`
}

func newHealthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check hybridqd server health",
		Long: `Check the health status of the hybridqd HTTP server.

Examples:
  # Check health
  hybridq health

  # Check health on a different server
  hybridq health --server http://localhost:8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var health HealthResponse
			if err := opts.get("/health", &health); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Server Status: %s\n", health.Status)
			fmt.Fprintf(out, "Server URL: %s\n", opts.serverURL)
			fmt.Fprintf(out, "Database Connected: %t\n", health.Connected)
			fmt.Fprintf(out, "Indexed Chunks: %d\n", health.Chunks)
			fmt.Fprintf(out, "Data Version: %d\n", health.Version)
			return nil
		},
	}
}
