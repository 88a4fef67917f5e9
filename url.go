package ddtracer

import (
	"fmt"
	"strings"
)

// AgentURL locates the trace agent. For the unix-family schemes the
// authority is an absolute filesystem path and the resource path is empty;
// for http/https the input splits at the first slash after the authority.
type AgentURL struct {
	Scheme    string
	Authority string
	Path      string
}

// ParseAgentURL parses "scheme://authority[/path]". Supported schemes are
// http, https, unix, http+unix, and https+unix.
func ParseAgentURL(input string) (AgentURL, error) {
	scheme, rest, found := cutPrefixSeparator(input)
	if !found {
		return AgentURL{}, fmt.Errorf("agent URL %q lacks a \"://\" separator", input)
	}

	switch scheme {
	case "unix", "http+unix", "https+unix":
		if !strings.HasPrefix(rest, "/") {
			return AgentURL{}, fmt.Errorf(
				"agent URL %q: unix domain socket paths must be absolute", input)
		}
		return AgentURL{Scheme: scheme, Authority: rest}, nil
	case "http", "https":
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			return AgentURL{Scheme: scheme, Authority: rest[:i], Path: rest[i:]}, nil
		}
		return AgentURL{Scheme: scheme, Authority: rest}, nil
	default:
		return AgentURL{}, fmt.Errorf("agent URL %q has unsupported scheme %q", input, scheme)
	}
}

// UsesUnixSocket reports whether the URL addresses the agent over a unix
// domain socket.
func (u AgentURL) UsesUnixSocket() bool {
	return strings.HasSuffix(u.Scheme, "unix")
}

func cutPrefixSeparator(input string) (scheme, rest string, found bool) {
	i := strings.Index(input, "://")
	if i < 0 {
		return "", "", false
	}
	return input[:i], input[i+len("://"):], true
}
