package util

import (
	"net/http/httptest"
	"testing"
)

func TestNewProxyFunc_SchemeSelection(t *testing.T) {
	proxy := NewProxyFunc("http://proxy-a:3128", "http://proxy-b:3128", "")

	req := httptest.NewRequest("GET", "https://example.com/fy2013.csv", nil)
	u, err := proxy(req)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if u == nil || u.Host != "proxy-b:3128" {
		t.Errorf("expected https traffic through proxy-b, got %v", u)
	}

	req = httptest.NewRequest("GET", "http://example.com/fy2013.csv", nil)
	u, err = proxy(req)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if u == nil || u.Host != "proxy-a:3128" {
		t.Errorf("expected http traffic through proxy-a, got %v", u)
	}
}

func TestNewProxyFunc_NoProxyBypass(t *testing.T) {
	proxy := NewProxyFunc("http://proxy-a:3128", "", "corp.example.com")

	req := httptest.NewRequest("GET", "http://data.corp.example.com/loss_runs.csv", nil)
	u, err := proxy(req)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if u != nil {
		t.Errorf("expected direct connection for no-proxy host, got %v", u)
	}
}
