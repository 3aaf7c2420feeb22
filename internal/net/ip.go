package net

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
)

// GetOutgoingIP finds the preferred local IP address to show to pens.
func GetOutgoingIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		// offline: fall back to the interfaces
		return getLocalIPFallback()
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}

func getLocalIPFallback() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, address := range addrs {
		if ipnet, ok := address.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				return ipnet.IP.String(), nil
			}
		}
	}
	slog.Warn("no suitable local IP found, pen URL may not be reachable")
	return "127.0.0.1", nil
}

// PenURL is the address a remote pen dials for a server on port.
func PenURL(host string, port int) string {
	return fmt.Sprintf("ws://%s/pen", net.JoinHostPort(host, strconv.Itoa(port)))
}

// ListenPort returns the TCP port l is bound to.
func ListenPort(l net.Listener) int {
	if a, ok := l.Addr().(*net.TCPAddr); ok {
		return a.Port
	}
	return 0
}
