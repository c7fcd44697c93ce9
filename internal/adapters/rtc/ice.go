// Package rtc publishes the ICE servers browsers use for their peer
// connections. The relay itself never terminates media.
package rtc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dkeye/roomrelay/internal/config"
	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"
)

var (
	ErrNoURLs            = errors.New("ice server has no urls")
	ErrMissingCredential = errors.New("turn server requires username and credential")
)

func DefaultICEServers() []webrtc.ICEServer {
	return []webrtc.ICEServer{
		{
			URLs: []string{"stun:stun.l.google.com:19302"},
		},
	}
}

// ICEServers validates the configured servers. An empty list yields the
// default public STUN server.
func ICEServers(cfgs []config.ICEServer) ([]webrtc.ICEServer, error) {
	if len(cfgs) == 0 {
		return DefaultICEServers(), nil
	}
	out := make([]webrtc.ICEServer, 0, len(cfgs))
	for i, c := range cfgs {
		if len(c.URLs) == 0 {
			return nil, fmt.Errorf("ice server %d: %w", i, ErrNoURLs)
		}
		for _, raw := range c.URLs {
			uri, err := stun.ParseURI(raw)
			if err != nil {
				return nil, fmt.Errorf("ice server %d: url %q: %w", i, raw, err)
			}
			isTURN := uri.Scheme == stun.SchemeTypeTURN || uri.Scheme == stun.SchemeTypeTURNS
			if isTURN && (c.Username == "" || c.Credential == "") {
				return nil, fmt.Errorf("ice server %d: %w", i, ErrMissingCredential)
			}
		}
		srv := webrtc.ICEServer{
			URLs:     c.URLs,
			Username: strings.TrimSpace(c.Username),
		}
		if c.Credential != "" {
			srv.Credential = c.Credential
		}
		out = append(out, srv)
	}
	return out, nil
}
