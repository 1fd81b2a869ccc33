package process

import (
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// PSName is one row of `ps -o pid=,ppid=,comm=`.
type PSName struct {
	PPID int
	Name string
}

// ParsePSNames parses `ps -o pid=,ppid=,comm=` output. The comm column may
// contain spaces. Rows that fail to parse are skipped.
func ParsePSNames(out string) map[int]PSName {
	rows := make(map[int]PSName)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		pid, err1 := strconv.Atoi(fields[0])
		ppid, err2 := strconv.Atoi(fields[1])
		if err1 != nil || err2 != nil {
			continue
		}
		rows[pid] = PSName{PPID: ppid, Name: strings.Join(fields[2:], " ")}
	}
	return rows
}

// ParsePSArgs parses `ps -o pid=,args=` output into pid -> command line.
func ParsePSArgs(out string) map[int]string {
	rows := make(map[int]string)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		pidStr, rest, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		pid, err := strconv.Atoi(pidStr)
		if err != nil {
			continue
		}
		rows[pid] = strings.TrimSpace(rest)
	}
	return rows
}

// JoinPS merges the two ps listings by pid. A process without an args row
// uses its name as the command line.
func JoinPS(names map[int]PSName, args map[int]string) []Info {
	out := make([]Info, 0, len(names))
	for pid, n := range names {
		cmd := args[pid]
		if cmd == "" {
			cmd = n.Name
		}
		out = append(out, Info{PID: pid, PPID: n.PPID, Name: baseName(n.Name), Cmd: cmd})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out
}

// ParseProcessCSV parses Win32_Process CSV as produced by PowerShell
// ConvertTo-Csv or `wmic ... /format:csv`. Columns are located by header
// name, so column order does not matter.
func ParseProcessCSV(out string) ([]Info, error) {
	out = strings.TrimPrefix(out, "\ufeff")
	out = strings.ReplaceAll(out, "\r", "")

	r := csv.NewReader(strings.NewReader(out))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse process csv: %w", err)
	}

	var (
		cols   map[string]int
		result []Info
	)
	for _, rec := range records {
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if cols == nil {
			cols = headerIndex(rec)
			if _, ok := cols["processid"]; !ok {
				cols = nil
			}
			continue
		}
		pid, err := strconv.Atoi(field(rec, cols, "processid"))
		if err != nil {
			continue
		}
		ppid, _ := strconv.Atoi(field(rec, cols, "parentprocessid"))
		name := field(rec, cols, "name")
		cmd := field(rec, cols, "commandline")
		if cmd == "" {
			cmd = name
		}
		result = append(result, Info{PID: pid, PPID: ppid, Name: name, Cmd: cmd})
	}
	if cols == nil {
		return nil, fmt.Errorf("parse process csv: no ProcessId header")
	}
	return result, nil
}

func headerIndex(rec []string) map[string]int {
	idx := make(map[string]int, len(rec))
	for i, h := range rec {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func field(rec []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// baseName strips a directory from a comm value; macOS ps reports the full
// executable path.
func baseName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 && i < len(name)-1 {
		return name[i+1:]
	}
	return name
}
