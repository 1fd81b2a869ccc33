package process

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ReadProcFS lists processes from a procfs mount. Processes that exit
// while being read are skipped.
func ReadProcFS(root string) ([]Info, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", root, err)
	}
	var out []Info
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		dir := filepath.Join(root, e.Name())
		stat, err := os.ReadFile(filepath.Join(dir, "stat"))
		if err != nil {
			continue
		}
		name, ppid, ok := parseStat(string(stat))
		if !ok {
			continue
		}
		if data, err := os.ReadFile(filepath.Join(dir, "comm")); err == nil {
			if comm := strings.TrimSpace(string(data)); comm != "" {
				name = comm
			}
		}
		cmd := name
		if data, err := os.ReadFile(filepath.Join(dir, "cmdline")); err == nil {
			if c := joinCmdline(data); c != "" {
				cmd = c
			}
		}
		out = append(out, Info{PID: pid, PPID: ppid, Name: name, Cmd: cmd})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no processes under %s", root)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out, nil
}

// parseStat extracts comm and ppid from /proc/<pid>/stat:
// "pid (comm) state ppid ...". comm may contain spaces and parens.
func parseStat(s string) (string, int, bool) {
	open := strings.Index(s, "(")
	closeIdx := strings.LastIndex(s, ")")
	if open < 0 || closeIdx < open || closeIdx+2 >= len(s) {
		return "", 0, false
	}
	fields := strings.Fields(s[closeIdx+2:])
	if len(fields) < 2 {
		return "", 0, false
	}
	ppid, err := strconv.Atoi(fields[1])
	if err != nil {
		return "", 0, false
	}
	return s[open+1 : closeIdx], ppid, true
}

// joinCmdline turns a NUL-separated cmdline into a space-joined string,
// quoting arguments that contain whitespace.
func joinCmdline(data []byte) string {
	parts := strings.Split(strings.TrimRight(string(data), "\x00"), "\x00")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		if strings.ContainsAny(p, " \t") {
			p = strconv.Quote(p)
		}
		out = append(out, p)
	}
	return strings.Join(out, " ")
}
