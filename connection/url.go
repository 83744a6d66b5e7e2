// File: connection/url.go
// Package connection
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Endpoint string parsing: amqp://[user[:pass]@]host[:port][/vhost].
// Rejected synchronously at construction, before any I/O.

package connection

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/momentics/hioload-amqp/api"
	"github.com/momentics/hioload-amqp/protocol"
)

// ParseURL splits an amqp:// endpoint into its parts, applying the guest
// defaults for anything unsupplied and decoding percent escapes.
func ParseURL(raw string) (user, password, vhost, host string, port int, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", "", "", 0, fmt.Errorf("parse endpoint %q: %w", raw, err)
	}
	if u.Scheme != "amqp" {
		return "", "", "", "", 0, fmt.Errorf("%w: got %q", api.ErrUnsupportedScheme, u.Scheme)
	}

	user = protocol.DefaultUser
	password = protocol.DefaultPassword
	if u.User != nil {
		if name := u.User.Username(); name != "" {
			user = name
		}
		if pass, ok := u.User.Password(); ok && pass != "" {
			password = pass
		}
	}

	vhost = u.Path
	if vhost == "" {
		vhost = protocol.DefaultVhost
	}

	host = u.Hostname()
	if host == "" {
		host = protocol.DefaultHost
	}

	port = protocol.DefaultPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return "", "", "", "", 0, fmt.Errorf("invalid port %q in endpoint %q", p, raw)
		}
	}
	return user, password, vhost, host, port, nil
}
