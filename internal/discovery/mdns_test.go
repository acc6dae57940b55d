package discovery

import (
	"net"
	"reflect"
	"testing"

	"github.com/hashicorp/mdns"
)

func TestPeerFromEntry(t *testing.T) {
	e := &mdns.ServiceEntry{
		Name:       `My\ Laptop._snippets._tcp.local.`,
		Host:       "laptop.local.",
		AddrV4:     net.IPv4(192, 168, 1, 20),
		Port:       7420,
		InfoFields: []string{"version=1", "path=/api", "junk"},
	}
	p, ok := peerFromEntry(e)
	if !ok {
		t.Fatal("expected entry to be accepted")
	}
	if p.Instance != "My Laptop" || p.Host != "laptop.local" {
		t.Errorf("unexpected names %q %q", p.Instance, p.Host)
	}
	if p.URL() != "http://192.168.1.20:7420" {
		t.Errorf("unexpected url %q", p.URL())
	}
	want := map[string]string{"version": "1", "path": "/api"}
	if !reflect.DeepEqual(p.Info, want) {
		t.Errorf("info = %v, want %v", p.Info, want)
	}
}

func TestPeerFromEntry_Rejects(t *testing.T) {
	tests := map[string]*mdns.ServiceEntry{
		"nil":        nil,
		"no ipv4":    {Name: "a._snippets._tcp.local.", Port: 1},
		"no port":    {Name: "a._snippets._tcp.local.", AddrV4: net.IPv4(10, 0, 0, 1)},
		"other type": {Name: "a._http._tcp.local.", AddrV4: net.IPv4(10, 0, 0, 1), Port: 80},
	}
	for name, e := range tests {
		if _, ok := peerFromEntry(e); ok {
			t.Errorf("%s: expected entry to be rejected", name)
		}
	}
}

func TestTXTRecords(t *testing.T) {
	got := txtRecords(map[string]string{"version": "1", "backend": "sql"})
	if !reflect.DeepEqual(got, []string{"backend=sql", "version=1"}) {
		t.Errorf("unexpected records %v", got)
	}
	if got := txtRecords(nil); len(got) != 1 {
		t.Errorf("expected a placeholder record, got %v", got)
	}
	if parseTXT([]string{"snippets"}) != nil {
		t.Error("records without '=' carry no info")
	}
}

func TestAdvertise_InvalidPort(t *testing.T) {
	if _, err := Advertise(AdvertiseOptions{Port: 0}); err == nil {
		t.Error("expected an error for port 0")
	}
	var a *Advertiser
	if err := a.Shutdown(); err != nil {
		t.Errorf("nil advertiser shutdown: %v", err)
	}
}
