package auth

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonwraymond/notegate/observe"
)

func TestKey(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		ok      bool
		addr    string
		want    string
	}{
		{name: "verified subject", subject: "42", ok: true, addr: "10.0.0.1", want: "user:42"},
		{name: "unverified", subject: "", ok: false, addr: "10.0.0.1", want: "ip:10.0.0.1"},
		{name: "ok without subject", subject: "", ok: true, addr: "10.0.0.1", want: "ip:10.0.0.1"},
		{name: "ipv6", subject: "", ok: false, addr: "::1", want: "ip:::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Key(tt.subject, tt.ok, tt.addr); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKeyKind(t *testing.T) {
	for key, want := range map[string]string{"user:42": "user", "ip:1.2.3.4": "ip", "other": "unknown"} {
		if got := KeyKind(key); got != want {
			t.Errorf("KeyKind(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"bearer abc", "abc", true},
		{"  Bearer   abc  ", "abc", true},
		{"Basic dXNlcjpwYXNz", "", false},
		{"Bearer ", "", false},
		{"Bearer", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := BearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BearerToken(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

func TestClientAddr(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		trust   bool
		want    string
	}{
		{name: "host port", remote: "192.0.2.1:5555", want: "192.0.2.1"},
		{name: "ipv6 host port", remote: "[2001:db8::1]:443", want: "2001:db8::1"},
		{name: "no port", remote: "192.0.2.1", want: "192.0.2.1"},
		{name: "empty", remote: "", want: "unknown"},
		{
			name:    "forwarded ignored when untrusted",
			remote:  "192.0.2.1:5555",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.9"},
			want:    "192.0.2.1",
		},
		{
			name:    "first forwarded hop",
			remote:  "192.0.2.1:5555",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.2"},
			trust:   true,
			want:    "203.0.113.9",
		},
		{
			name:    "real ip fallback",
			remote:  "192.0.2.1:5555",
			headers: map[string]string{"X-Real-IP": "203.0.113.7"},
			trust:   true,
			want:    "203.0.113.7",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := ClientAddr(req, tt.trust); got != tt.want {
				t.Errorf("ClientAddr() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolver_Resolve(t *testing.T) {
	codec, clock := newTestCodec(t)
	var buf bytes.Buffer
	resolver := NewResolver(ResolverConfig{
		Verifier: codec,
		Logger:   observe.NewLoggerWithWriter("debug", &buf),
	})

	valid, err := codec.Issue("42", time.Minute)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	expiring, err := codec.Issue("7", time.Second)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	clock.Advance(2 * time.Second)

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "valid token", header: "Bearer " + valid, want: "user:42"},
		{name: "no header", header: "", want: "ip:192.0.2.1"},
		{name: "expired token", header: "Bearer " + expiring, want: "ip:192.0.2.1"},
		{name: "garbage token", header: "Bearer garbage", want: "ip:192.0.2.1"},
		{name: "wrong scheme", header: "Token " + valid, want: "ip:192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/notes", nil)
			req.RemoteAddr = "192.0.2.1:40000"
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if got := resolver.Resolve(req); got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}

	logs := buf.String()
	if !strings.Contains(logs, `"reason":"expired"`) || !strings.Contains(logs, `"reason":"invalid"`) {
		t.Errorf("expected debug entries for rejected tokens, got:\n%s", logs)
	}
	if strings.Contains(logs, valid) {
		t.Error("token leaked into logs")
	}
}

func TestResolver_TrySubject(t *testing.T) {
	codec, _ := newTestCodec(t)
	resolver := NewResolver(ResolverConfig{Verifier: codec})

	token, err := codec.Issue("alice", time.Minute)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if sub, ok := resolver.TrySubject("Bearer " + token); !ok || sub != "alice" {
		t.Errorf("TrySubject(valid) = %q, %v", sub, ok)
	}
	if sub, ok := resolver.TrySubject("Bearer nope"); ok || sub != "" {
		t.Errorf("TrySubject(invalid) = %q, %v", sub, ok)
	}
}

func TestResolver_NilVerifierFallsBack(t *testing.T) {
	resolver := NewResolver(ResolverConfig{})
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "198.51.100.3:1"
	req.Header.Set("Authorization", "Bearer abc")
	if got := resolver.Resolve(req); got != "ip:198.51.100.3" {
		t.Errorf("Resolve() = %q", got)
	}
}
