// ABOUTME: mDNS advertisement for the scope render feed
// ABOUTME: Advertises the websocket frame feed and browses for running scopes
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

// ServiceType is the mDNS service renderers browse for
const ServiceType = "_resonate-scope._tcp"

// DefaultPath is where the render hub is served
const DefaultPath = "/feed"

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	Path        string // defaults to DefaultPath
	SessionID   string // advertised so renderers can tell runs apart
}

// Manager handles mDNS advertisement
type Manager struct {
	config Config
	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	if config.Path == "" {
		config.Path = DefaultPath
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}
}

// TXT returns the TXT records advertised with the service
func (m *Manager) TXT() []string {
	txt := []string{"path=" + m.config.Path}
	if m.config.SessionID != "" {
		txt = append(txt, "session="+m.config.SessionID)
	}
	return txt
}

// Advertise advertises the render feed via mDNS until Stop is called
func (m *Manager) Advertise() error {
	if m.config.Port <= 0 || m.config.Port > 65535 {
		return fmt.Errorf("invalid port %d", m.config.Port)
	}

	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		m.TXT(),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", m.config.ServiceName, m.config.Port, ServiceType)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Stop withdraws the advertisement
func (m *Manager) Stop() {
	m.cancel()
}

// ScopeInfo describes a discovered scope
type ScopeInfo struct {
	Name      string
	Host      string
	Port      int
	Path      string
	SessionID string
}

// Addr returns host:port
func (s ScopeInfo) Addr() string {
	return net.JoinHostPort(s.Host, fmt.Sprint(s.Port))
}

// Browse queries the local network for scopes until timeout
func Browse(ctx context.Context, timeout time.Duration) ([]ScopeInfo, error) {
	entries := make(chan *mdns.ServiceEntry, 10)
	var found []ScopeInfo

	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for entry := range entries {
			info := parseEntry(entry)
			log.Printf("Discovered scope: %s at %s%s", info.Name, info.Addr(), info.Path)
			found = append(found, info)
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true

	err := mdns.QueryContext(ctx, params)
	close(entries)
	<-collected

	if err != nil {
		return found, fmt.Errorf("mdns query failed: %w", err)
	}
	return found, nil
}

// parseEntry reads the address and TXT records of a service entry
func parseEntry(entry *mdns.ServiceEntry) ScopeInfo {
	info := ScopeInfo{
		Name: entry.Name,
		Port: entry.Port,
		Path: DefaultPath,
	}
	if entry.AddrV4 != nil {
		info.Host = entry.AddrV4.String()
	} else {
		info.Host = strings.TrimSuffix(entry.Host, ".")
	}

	for _, field := range entry.InfoFields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "path":
			info.Path = value
		case "session":
			info.SessionID = value
		}
	}
	return info
}

// getLocalIPs returns non-loopback IPv4 addresses of interfaces that are up
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
