// Package discovery advertises the board server on the local network.
package discovery

import (
	"fmt"
	"net"
	"os"

	"github.com/hashicorp/mdns"
)

// ServiceType is the DNS-SD type boards are advertised under.
const ServiceType = "_whiteboard._tcp"

// Advertise announces the server on port until the returned server is shut
// down. An empty instance name falls back to the hostname.
func Advertise(instance string, port int) (*mdns.Server, error) {
	service, err := newService(instance, port, nil)
	if err != nil {
		return nil, err
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("start mdns server: %w", err)
	}
	return server, nil
}

// newService builds the zone. Nil ips are looked up from the hostname.
func newService(instance string, port int, ips []net.IP) (*mdns.MDNSService, error) {
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("hostname: %w", err)
		}
		instance = host
	}
	info := []string{"path=/boards", "ws=/ws/boards"}
	service, err := mdns.NewMDNSService(instance, ServiceType, "", "", port, ips, info)
	if err != nil {
		return nil, fmt.Errorf("create mdns service: %w", err)
	}
	return service, nil
}
