package ngrok

import "testing"

func TestPublicURL(t *testing.T) {
	data := []byte(`{"tunnels": [
		{"name": "a", "public_url": "https://a.ngrok.app", "proto": "https", "config": {"addr": "http://localhost:9000"}},
		{"name": "b", "public_url": "tcp://0.tcp.ngrok.io:1234", "proto": "tcp", "config": {"addr": "localhost:8000"}}
	]}`)
	tests := []struct {
		port string
		want string
	}{
		{"9000", "https://a.ngrok.app"},
		{"8000", "http://0.tcp.ngrok.io:1234"},
		{"7000", ""},
	}
	for _, tt := range tests {
		got, err := publicURL(data, tt.port)
		if err != nil {
			t.Fatalf("publicURL(%s) err = %v; want nil", tt.port, err)
		}
		if got != tt.want {
			t.Fatalf("publicURL(%s) = %q; want %q", tt.port, got, tt.want)
		}
	}
	if _, err := publicURL([]byte("<html>"), "8000"); err == nil {
		t.Fatalf("publicURL() err = nil; want error")
	}
}
