package ngrok

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/exec"
	"strings"
	"time"
)

// BinPath is the path to the ngrok binary
var BinPath = "ngrok"

// APIURL is the local inspection api of the ngrok agent
var APIURL = "http://localhost:4040/api/tunnels"

type tunnelsResponse struct {
	Tunnels []struct {
		Name      string `json:"name"`
		ID        string `json:"id"`
		PublicURL string `json:"public_url"`
		Proto     string `json:"proto"`
		Config    struct {
			Addr string `json:"addr"`
		} `json:"config"`
	} `json:"tunnels"`
}

// Run launches an ngrok tunnel to the local port and returns its public URL.
// The tunnel is closed when the returned cancel function is called.
func Run(ctx context.Context, protocol, port string) (string, context.CancelFunc, error) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		cmd := exec.CommandContext(ctx, BinPath, protocol, port, "--log", "stdout")
		data, err := cmd.CombinedOutput()
		if err != nil && ctx.Err() == nil {
			log.Println(fmt.Errorf("ngrok: %w: %s", err, string(data)))
			cancel()
		}
	}()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}
	timeout := time.After(30 * time.Second)
	for {
		u, err := tunnel(ctx, client, port)
		if err == nil && u != "" {
			return u, cancel, nil
		}
		select {
		case <-ctx.Done():
			cancel()
			return "", nil, fmt.Errorf("ngrok: couldn't start: %w", ctx.Err())
		case <-timeout:
			cancel()
			return "", nil, fmt.Errorf("ngrok: tunnel not ready: %v", err)
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func tunnel(ctx context.Context, client *http.Client, port string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, APIURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ngrok: couldn't get tunnels: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ngrok: couldn't read response: %w", err)
	}
	return publicURL(data, port)
}

func publicURL(data []byte, port string) (string, error) {
	var tr tunnelsResponse
	if err := json.Unmarshal(data, &tr); err != nil {
		return "", fmt.Errorf("ngrok: couldn't unmarshal response (%s): %w", string(data), err)
	}
	for _, t := range tr.Tunnels {
		idx := strings.LastIndex(t.Config.Addr, ":")
		if idx < 0 || t.Config.Addr[idx+1:] != port {
			continue
		}
		return strings.Replace(t.PublicURL, "tcp://", "http://", 1), nil
	}
	return "", nil
}
