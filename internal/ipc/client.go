package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/1broseidon/deskveil/internal/runtimepath"
)

// Client handles IPC communication with the daemon
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new IPC client
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; sendRequest surfaces connection errors.
		socketPath = ""
	}

	return &Client{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

func (c *Client) sendRequest(req *Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	reader := bufio.NewReader(conn)
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Status == "ERROR" {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}

	return &resp, nil
}

// call sends cmd with an optional payload and decodes the reply data into out.
func (c *Client) call(cmd CommandType, payload any, out any) error {
	req := &Request{Command: cmd}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", cmd, err)
		}
		req.Payload = data
	}

	resp, err := c.sendRequest(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to parse %s data: %w", cmd, err)
	}
	return nil
}

// Toggle flips icon visibility and returns the resulting status.
func (c *Client) Toggle() (*StatusData, error) {
	var status StatusData
	if err := c.call(CommandToggle, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetStatus retrieves daemon status
func (c *Client) GetStatus() (*StatusData, error) {
	var status StatusData
	if err := c.call(CommandGetStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Refresh asks the daemon for a full reconcile.
func (c *Client) Refresh() error {
	return c.call(CommandRefresh, nil, nil)
}

// SetRefreshInterval accepts a Go duration or "never".
func (c *Client) SetRefreshInterval(interval string) error {
	return c.call(CommandSetRefreshInterval, SetRefreshIntervalPayload{Interval: interval}, nil)
}

// SetContentMode switches target between image and color content.
func (c *Client) SetContentMode(target, mode, color string) error {
	return c.call(CommandSetContentMode, SetContentModePayload{
		Target: target,
		Mode:   mode,
		Color:  color,
	}, nil)
}

// Preview describes the overlay covering the screen under (x, y).
func (c *Client) Preview(x, y int) (*PreviewData, error) {
	var data PreviewData
	if err := c.call(CommandPreview, PreviewPayload{X: x, Y: y}, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// ListSurfaces returns every tracked surface and filler.
func (c *Client) ListSurfaces() (*SurfacesData, error) {
	var data SurfacesData
	if err := c.call(CommandListSurfaces, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Ping checks if the daemon is responding
func (c *Client) Ping() error {
	_, err := c.GetStatus()
	return err
}
