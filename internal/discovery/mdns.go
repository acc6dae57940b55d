// Package discovery announces a snippets server on the local network over
// mDNS and finds servers announced by others.
package discovery

import (
	"context"
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

const ServiceType = "_snippets._tcp"

// Peer is a server found on the network.
type Peer struct {
	Instance string            `json:"instance"`
	Host     string            `json:"host"`
	Addr     net.IP            `json:"addr"`
	Port     int               `json:"port"`
	Info     map[string]string `json:"info,omitempty"`
}

// URL is the base HTTP URL of the peer.
func (p Peer) URL() string {
	return "http://" + net.JoinHostPort(p.Addr.String(), strconv.Itoa(p.Port))
}

// Advertiser keeps an mDNS announcement alive until Shutdown.
type Advertiser struct {
	server *mdns.Server
}

type AdvertiseOptions struct {
	// Instance defaults to the host name.
	Instance string
	Port     int
	// Info is published as key=value TXT records.
	Info map[string]string
}

// Advertise announces the server on every interface.
func Advertise(opts AdvertiseOptions) (*Advertiser, error) {
	if opts.Port <= 0 {
		return nil, fmt.Errorf("advertise: invalid port %d", opts.Port)
	}
	instance := opts.Instance
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("could not get hostname: %w", err)
		}
		instance = host
	}

	service, err := mdns.NewMDNSService(
		instance,
		ServiceType,
		"", // .local
		"", // OS host name
		opts.Port,
		nil, // auto-detect IPs
		txtRecords(opts.Info),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	return &Advertiser{server: server}, nil
}

func (a *Advertiser) Shutdown() error {
	if a == nil || a.server == nil {
		return nil
	}
	return a.server.Shutdown()
}

// Browse queries the network for timeout and returns the peers that
// answered, deduplicated by address and port.
func Browse(ctx context.Context, timeout time.Duration) ([]Peer, error) {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < timeout {
		timeout = time.Until(dl)
	}

	entries := make(chan *mdns.ServiceEntry, 16)
	done := make(chan []Peer, 1)
	go func() {
		seen := map[string]bool{}
		var peers []Peer
		for e := range entries {
			p, ok := peerFromEntry(e)
			if !ok || seen[p.URL()] {
				continue
			}
			seen[p.URL()] = true
			peers = append(peers, p)
		}
		done <- peers
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true
	err := mdns.Query(params)
	close(entries)
	peers := <-done
	if err != nil {
		return peers, fmt.Errorf("mdns query: %w", err)
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].Instance < peers[j].Instance })
	return peers, nil
}

// peerFromEntry keeps IPv4 entries of our service type.
func peerFromEntry(e *mdns.ServiceEntry) (Peer, bool) {
	if e == nil || e.AddrV4 == nil || e.Port == 0 {
		return Peer{}, false
	}
	if !strings.Contains(e.Name, ServiceType) {
		return Peer{}, false
	}
	instance, _, _ := strings.Cut(e.Name, "."+ServiceType)
	return Peer{
		Instance: strings.ReplaceAll(instance, `\ `, " "),
		Host:     strings.TrimSuffix(e.Host, "."),
		Addr:     e.AddrV4,
		Port:     e.Port,
		Info:     parseTXT(e.InfoFields),
	}, true
}

// txtRecords renders info as sorted key=value strings.
func txtRecords(info map[string]string) []string {
	if len(info) == 0 {
		return []string{"snippets"}
	}
	out := make([]string, 0, len(info))
	for k, v := range info {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

func parseTXT(fields []string) map[string]string {
	out := map[string]string{}
	for _, f := range fields {
		k, v, ok := strings.Cut(f, "=")
		if !ok || k == "" {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// FirstIPv4 returns the first non-loopback IPv4 address, or 127.0.0.1.
func FirstIPv4() net.IP {
	ifaces, _ := net.Interfaces()
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, _ := iface.Addrs()
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil {
				return ipnet.IP.To4()
			}
		}
	}
	return net.IPv4(127, 0, 0, 1)
}
