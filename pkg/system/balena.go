package system

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// SupervisorClient talks to the balena supervisor API of the device.
type SupervisorClient struct {
	Address string
	APIKey  string
	Client  *http.Client
}

// NewSupervisorClient reads the supervisor address and key balena injects
// into the container environment.
func NewSupervisorClient() (*SupervisorClient, error) {
	addr := os.Getenv("BALENA_SUPERVISOR_ADDRESS")
	key := os.Getenv("BALENA_SUPERVISOR_API_KEY")

	if addr == "" || key == "" {
		return nil, fmt.Errorf("BALENA_SUPERVISOR_ADDRESS and BALENA_SUPERVISOR_API_KEY must be set")
	}

	return &SupervisorClient{
		Address: strings.TrimRight(addr, "/"),
		APIKey:  key,
		Client:  &http.Client{Timeout: 5 * time.Second},
	}, nil
}

// Reboot asks the supervisor to reboot the device.
func (c *SupervisorClient) Reboot(ctx context.Context) error {
	return c.post(ctx, "/v1/reboot")
}

// Shutdown asks the supervisor to power the device off.
func (c *SupervisorClient) Shutdown(ctx context.Context) error {
	return c.post(ctx, "/v1/shutdown")
}

func (c *SupervisorClient) post(ctx context.Context, path string) error {
	u := fmt.Sprintf("%s%s?apikey=%s", c.Address, path, url.QueryEscape(c.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(`{"force":false}`))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call supervisor %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("supervisor returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
