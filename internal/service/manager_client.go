package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/MSLNZ/pr-superk-mono/internal/httputil"
)

// Registration is the payload a service sends to the manager when it comes
// online. LinkID identifies this particular registration so that a stale
// unregister cannot remove a newer instance of the same service.
type Registration struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	LinkID  string `json:"link_id"`
}

// ManagerClient talks to the manager's registry endpoints.
type ManagerClient struct {
	client  httputil.HTTPClient
	baseURL string
}

// NewManagerClient creates a client for the manager at baseURL, e.g.
// "http://localhost:1875". A nil client uses http.DefaultClient.
func NewManagerClient(baseURL string, client httputil.HTTPClient) *ManagerClient {
	if client == nil {
		client = httputil.NewStandardClient(nil)
	}
	return &ManagerClient{client: client, baseURL: baseURL}
}

// WaitForManager polls the manager until it responds or timeout elapses.
func (m *ManagerClient) WaitForManager(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		resp, err := m.client.Get(m.baseURL + "/healthz")
		if err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("manager at %s not reachable after %s", m.baseURL, timeout)
		}
		time.Sleep(500 * time.Millisecond)
	}
}

// Register announces a service at address to the manager and returns the
// link ID to use when unregistering.
func (m *ManagerClient) Register(name, address string) (string, error) {
	reg := Registration{
		Name:    name,
		Address: address,
		LinkID:  uuid.NewString(),
	}
	if err := m.post("/register", reg); err != nil {
		return "", fmt.Errorf("failed to register %s with the manager: %w", name, err)
	}
	return reg.LinkID, nil
}

// Unregister removes a registration previously created by Register.
func (m *ManagerClient) Unregister(name, linkID string) error {
	reg := Registration{Name: name, LinkID: linkID}
	if err := m.post("/unregister", reg); err != nil {
		return fmt.Errorf("failed to unregister %s from the manager: %w", name, err)
	}
	return nil
}

func (m *ManagerClient) post(path string, reg Registration) error {
	body, err := json.Marshal(reg)
	if err != nil {
		return err
	}
	resp, err := m.client.Post(m.baseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("manager replied %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
