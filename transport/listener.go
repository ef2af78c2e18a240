package transport

import (
	"fmt"
	"net"
	"strconv"

	httperrors "github.com/nicklauri/aden/errors"
)

// Listen resolves address and binds a TCP listener on the last resolved IP
// and the given port.
func Listen(address string, port string) (*net.TCPListener, error) {
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 65535 {
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorListenFailure,
			fmt.Sprintf("invalid port %q", port),
			err,
		)
	}

	ips, err := net.LookupIP(address)
	if err != nil || len(ips) == 0 {
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorDnsFailure,
			fmt.Sprintf("failed to resolve %s", address),
			err,
		)
	}
	ip := ips[len(ips)-1]

	listener, err := net.ListenTCP("tcp", &net.TCPAddr{IP: ip, Port: portNum})
	if err != nil {
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorListenFailure,
			fmt.Sprintf("failed to bind %s", net.JoinHostPort(ip.String(), port)),
			err,
		)
	}

	return listener, nil
}
