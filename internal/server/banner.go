package server

import (
	"fmt"
	"io"
	"net"
	"strconv"
)

// printBanner writes the startup lines shown to the person running the
// server.
func printBanner(w io.Writer, port int) {
	fmt.Fprintf(w, "HTTPS Server Running on https://localhost:%d\n", port)
	fmt.Fprintf(w, "Access from phone: https://<your-ip-address>:%d\n", port)
	fmt.Fprintln(w, "Note: You'll need to accept the security warning on your phone.")
}

// lanURLs returns an https URL for every non-loopback IPv4 address on an
// interface that is up.
func lanURLs(port int) []string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	var urls []string
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagUp == 0 || ifc.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := ifc.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if ip := ipnet.IP.To4(); ip != nil {
				urls = append(urls, "https://"+net.JoinHostPort(ip.String(), strconv.Itoa(port)))
			}
		}
	}
	return urls
}
