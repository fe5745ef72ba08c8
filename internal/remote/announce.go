package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/brutella/dnssd"
)

const (
	ServiceType = "_tunedeck._tcp"
	Domain      = "local"
)

// Instance is one tunedeck remote server on the local network.
type Instance struct {
	Name string
	Host string
	IPs  []net.IP
	Port int
	TLS  bool
}

// URL is the base address of the instance's API.
func (i Instance) URL() string {
	scheme := "http"
	if i.TLS {
		scheme = "https"
	}
	host := i.Host
	if len(i.IPs) > 0 {
		host = i.IPs[0].String()
	}
	return scheme + "://" + net.JoinHostPort(host, strconv.Itoa(i.Port))
}

func instanceName() string {
	h, err := os.Hostname()
	if err != nil {
		return "tunedeck"
	}
	return "tunedeck on " + h
}

// Announce advertises inst over multicast DNS until ctx is done.
func Announce(ctx context.Context, inst Instance) error {
	tls := "0"
	if inst.TLS {
		tls = "1"
	}
	service, err := dnssd.NewService(dnssd.Config{
		Name:   inst.Name,
		Type:   ServiceType,
		Domain: Domain,
		Port:   inst.Port,
		Text:   map[string]string{"tls": tls, "path": "/api"},
	})
	if err != nil {
		return fmt.Errorf("create dns-sd service: %w", err)
	}
	rp, err := dnssd.NewResponder()
	if err != nil {
		return fmt.Errorf("create dns-sd responder: %w", err)
	}
	if _, err := rp.Add(service); err != nil {
		return fmt.Errorf("add dns-sd service: %w", err)
	}
	if err := rp.Respond(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("dns-sd responder: %w", err)
	}
	return nil
}

// Discover browses the local network for wait and returns the instances
// seen, sorted by name.
func Discover(ctx context.Context, wait time.Duration) ([]Instance, error) {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	var (
		mu    sync.Mutex
		found = make(map[string]Instance)
	)
	add := func(e dnssd.BrowseEntry) {
		mu.Lock()
		defer mu.Unlock()
		found[e.Name] = Instance{Name: e.Name, Host: e.Host, IPs: e.IPs, Port: e.Port, TLS: e.Text["tls"] == "1"}
	}
	rmv := func(e dnssd.BrowseEntry) {
		mu.Lock()
		defer mu.Unlock()
		delete(found, e.Name)
	}
	err := dnssd.LookupType(ctx, ServiceType+"."+Domain+".", add, rmv)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return nil, fmt.Errorf("dns-sd lookup: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	out := make([]Instance, 0, len(found))
	for _, inst := range found {
		out = append(out, inst)
	}
	slices.SortFunc(out, func(a, b Instance) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return out, nil
}
