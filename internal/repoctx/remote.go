package repoctx

import (
	"net/url"
	"strings"
)

// Remote is a parsed VCS remote.
type Remote struct {
	Host  string
	Owner string
	Name  string
	URL   string // credentials stripped
}

// ParseRemote extracts host, owner and repository name from a remote URL.
// Supported shapes: scheme URLs (https, http, ssh, git), SCP-style
// "user@host:path" and Azure DevOps "ssh.dev.azure.com:v3/org/project/repo".
func ParseRemote(raw string) Remote {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Remote{}
	}
	host, path := splitRemote(raw)
	r := Remote{Host: strings.ToLower(host), URL: SanitizeURL(raw)}
	segs := pathSegments(path)
	if len(segs) == 0 {
		return r
	}
	r.Owner, r.Name = ownerAndName(r.Host, segs)
	return r
}

func splitRemote(raw string) (host, path string) {
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err == nil {
			return u.Hostname(), u.Path
		}
		_, rest, _ := strings.Cut(raw, "://")
		if i := strings.LastIndex(rest, "@"); i >= 0 {
			rest = rest[i+1:]
		}
		host, path, _ = strings.Cut(rest, "/")
		return host, path
	}
	// SCP-style: [user@]host:path
	rest := raw
	if i := strings.Index(rest, "@"); i >= 0 && i < strings.Index(rest+":", ":") {
		rest = rest[i+1:]
	}
	if h, p, ok := strings.Cut(rest, ":"); ok && !strings.Contains(h, "/") {
		return h, p
	}
	// local path
	return "", raw
}

func pathSegments(path string) []string {
	path = strings.Trim(strings.ReplaceAll(path, `\`, "/"), "/")
	path = strings.TrimSuffix(path, ".git")
	var out []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func ownerAndName(host string, segs []string) (string, string) {
	last := len(segs) - 1
	switch {
	case host == "github.com" || host == "bitbucket.org":
		if len(segs) >= 2 {
			return segs[0], segs[1]
		}
	case host == "gitlab.com" || strings.HasPrefix(host, "gitlab."):
		if len(segs) >= 2 {
			return strings.Join(segs[:last], "/"), segs[last]
		}
	case host == "dev.azure.com":
		// org/project/_git/repo
		for i, s := range segs {
			if s == "_git" && i+1 < len(segs) {
				return segs[0], segs[i+1]
			}
		}
	case host == "ssh.dev.azure.com" || host == "vs-ssh.visualstudio.com":
		// v3/org/project/repo
		if len(segs) >= 4 && segs[0] == "v3" {
			return segs[1], segs[3]
		}
	case strings.HasSuffix(host, ".visualstudio.com"):
		// project/_git/repo
		for i, s := range segs {
			if s == "_git" && i+1 < len(segs) {
				return strings.TrimSuffix(host, ".visualstudio.com"), segs[i+1]
			}
		}
	}
	if len(segs) >= 2 {
		return segs[last-1], segs[last]
	}
	return "", segs[last]
}

// SanitizeURL removes embedded credentials from a remote URL. HTTP remotes
// lose all userinfo (tokens are commonly passed as the user name); other
// schemes keep the user name but lose any password. Query strings are
// dropped.
func SanitizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		// SCP-style "user:secret@host:path"
		if at := strings.Index(raw, "@"); at >= 0 {
			user := raw[:at]
			if u, _, ok := strings.Cut(user, ":"); ok {
				return u + raw[at:]
			}
		}
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		scheme, rest, _ := strings.Cut(raw, "://")
		if i := strings.LastIndex(rest, "@"); i >= 0 {
			rest = rest[i+1:]
		}
		return scheme + "://" + rest
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		u.User = nil
	default:
		if u.User != nil {
			u.User = url.User(u.User.Username())
		}
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
