// Package forensics implements the kernel-trace capture pipeline (§4.5):
// debounced trace-save/log-query capture, trace text parsing into
// relational rows, NDJSON log parsing, and culprit identification from a
// frozen ring buffer.
package forensics

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rogue-hunter/roguehunter/model"
)

var (
	processHeaderRe = regexp.MustCompile(`^Process:\s+(.+?)\s+\[(\d+)\]`)
	threadHeaderRe  = regexp.MustCompile(`^\s{2}Thread\s+(0x[0-9a-fA-F]+)`)
	threadQueueRe   = regexp.MustCompile(`DispatchQueue\s+"([^"]+)"\((\d+)\)`)
	threadNameRe    = regexp.MustCompile(`Thread name\s+"([^"]+)"`)
	threadSamplesRe = regexp.MustCompile(`(\d+)\s+samples?\s*\((\d+)-(\d+)\)`)
	threadPriorityRe = regexp.MustCompile(`priority\s+(\d+)`)
	threadCPURe     = regexp.MustCompile(`cpu time\s+([\d.]+)s\s*\(([\d.]+[KMGT]?)\s*cycles,\s*([\d.]+[KMGT]?)\s*instructions,\s*([\d.]+)c/i\)`)
	threadIORe      = regexp.MustCompile(`(\d+)\s+I/Os?\s*\(([^)]+)\)`)

	frameRe = regexp.MustCompile(`^(\s+)(\*?)(\d+)\s+(.+?)\s+\[(0x[0-9a-fA-F]+)\](?:\s+\(([^)]+)\))?$`)
	frameSymbolLibRe = regexp.MustCompile(`^(.+?)\s*\+\s*(\d+)\s*\((.+?)\s*\+\s*(\d+)\)$`)
	frameLibOnlyRe   = regexp.MustCompile(`^\?\?\?\s*\((.+?)\s*\+\s*(\d+)\)$`)

	binaryImageRe = regexp.MustCompile(`^\s+(\*?)(0x[0-9a-fA-F]+)\s*-\s*(0x[0-9a-fA-F]+|\?\?\?)\s+(.+?)\s*<([A-Fa-f0-9-]+)>\s*(.*)$`)

	processRefRe = regexp.MustCompile(`^\s*(.+?)\s+\[(\d+)\]`)
)

// ParseTrace parses a decoded kernel trace's full text into a TraceDocument
// (§4.5.1). Unknown tagged lines are ignored; the parser never fails on
// unexpected input.
func ParseTrace(text string) model.TraceDocument {
	lines := strings.Split(text, "\n")

	splitAt := len(lines)
	for i, l := range lines {
		if processHeaderRe.MatchString(l) {
			splitAt = i
			break
		}
	}

	header := parseHeader(lines[:splitAt])
	processes := parseProcesses(lines[splitAt:])

	return model.TraceDocument{Header: header, Processes: processes}
}

func parseHeader(lines []string) model.TraceHeader {
	var h model.TraceHeader
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "OS Version:"):
			h.OSVersion = fieldValue(line)
		case strings.HasPrefix(line, "Architecture:"):
			h.Architecture = fieldValue(line)
		case strings.HasPrefix(line, "Report Version:"):
			h.ReportVersion = fieldValue(line)
		case strings.HasPrefix(line, "Hardware Model:"):
			h.HardwareModel = fieldValue(line)
		case strings.HasPrefix(line, "Active CPUs:"):
			h.ActiveCPUs = parseIntField(fieldValue(line))
		case strings.HasPrefix(line, "Duration:"):
			h.DurationSec = parseFloatPrefix(fieldValue(line))
		case strings.HasPrefix(line, "Steps:"):
			h.Steps = parseIntField(fieldValue(line))
		case strings.HasPrefix(line, "Hardware page size:"):
			h.HWPageSize = parseIntField(fieldValue(line))
		case strings.HasPrefix(line, "VM page size:"):
			h.VMPageSize = parseIntField(fieldValue(line))
		case strings.HasPrefix(line, "Data Source:"):
			h.DataSource = fieldValue(line)
		case strings.HasPrefix(line, "Reason:"):
			h.Reason = fieldValue(line)
		case strings.HasPrefix(line, "Free Disk Space:"):
			h.FreeDiskGB = parseFloatPrefix(fieldValue(line))
		case strings.HasPrefix(line, "Total Disk Space:"):
			h.TotalDiskGB = parseFloatPrefix(fieldValue(line))
		}
	}
	return h
}

func fieldValue(line string) string {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(line[idx+1:])
}

func parseIntField(s string) int {
	re := regexp.MustCompile(`-?\d+`)
	m := re.FindString(s)
	n, _ := strconv.Atoi(m)
	return n
}

func parseFloatPrefix(s string) float64 {
	re := regexp.MustCompile(`[\d.]+`)
	m := re.FindString(s)
	f, _ := strconv.ParseFloat(m, 64)
	return f
}

func parseSize(s string) uint64 {
	re := regexp.MustCompile(`([\d.]+)\s*(KB|MB|GB|B)?`)
	m := re.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0
	}
	val, _ := strconv.ParseFloat(m[1], 64)
	switch m[2] {
	case "KB":
		val *= 1024
	case "MB":
		val *= 1024 * 1024
	case "GB":
		val *= 1024 * 1024 * 1024
	}
	return uint64(val)
}

func parseCountSuffix(s string) uint64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	mult := 1.0
	last := s[len(s)-1]
	switch last {
	case 'K', 'k':
		mult = 1e3
		s = s[:len(s)-1]
	case 'M', 'm':
		mult = 1e6
		s = s[:len(s)-1]
	case 'G', 'g':
		mult = 1e9
		s = s[:len(s)-1]
	case 'T', 't':
		mult = 1e12
		s = s[:len(s)-1]
	}
	f, _ := strconv.ParseFloat(s, 64)
	return uint64(f * mult)
}

func parseProcessRef(s string) (string, int64, bool) {
	m := processRefRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", 0, false
	}
	pid, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return m[1], pid, true
}

func parseProcesses(lines []string) []model.TraceProcess {
	var processes []model.TraceProcess
	var current *model.TraceProcess
	var currentThread *model.TraceThread
	inBinaryImages := false

	flushThread := func() {
		if current != nil && currentThread != nil {
			current.Threads = append(current.Threads, *currentThread)
			currentThread = nil
		}
	}
	flushProcess := func() {
		flushThread()
		if current != nil {
			processes = append(processes, *current)
			current = nil
		}
	}

	for _, line := range lines {
		if m := processHeaderRe.FindStringSubmatch(line); m != nil {
			flushProcess()
			pid, _ := strconv.ParseInt(m[2], 10, 64)
			current = &model.TraceProcess{PID: pid, Name: m[1]}
			inBinaryImages = false
			continue
		}
		if current == nil {
			continue
		}

		if strings.TrimSpace(line) == "Binary Images:" {
			flushThread()
			inBinaryImages = true
			continue
		}

		if inBinaryImages {
			if m := binaryImageRe.FindStringSubmatch(line); m != nil {
				current.BinaryImages = append(current.BinaryImages, model.TraceBinaryImage{
					IsKernel: m[1] == "*",
					Name:     strings.TrimSpace(m[4]),
					UUID:     m[5],
					Path:     strings.TrimSpace(m[6]),
				})
				continue
			}
			if strings.TrimSpace(line) != "" && !strings.HasPrefix(line, " ") {
				inBinaryImages = false
			} else {
				continue
			}
		}

		switch {
		case strings.HasPrefix(line, "UUID:"):
			current.UUID = fieldValue(line)
		case strings.HasPrefix(line, "Path:"):
			current.Path = fieldValue(line)
		case strings.HasPrefix(line, "Identifier:"):
			current.Identifier = fieldValue(line)
		case strings.HasPrefix(line, "Version:"):
			current.Version = fieldValue(line)
		case strings.HasPrefix(line, "Architecture:"):
			current.Architecture = fieldValue(line)
		case strings.HasPrefix(line, "Parent:"):
			if name, pid, ok := parseProcessRef(fieldValue(line)); ok {
				current.ParentName = name
				current.ParentPID = &pid
			}
		case strings.HasPrefix(line, "Responsible:"):
			if name, pid, ok := parseProcessRef(fieldValue(line)); ok {
				current.ResponsibleName = name
				current.ResponsiblePID = &pid
			}
		case strings.HasPrefix(line, "RunningBoard Mgd:"):
			current.RunningBoardManaged = strings.Contains(line, "Yes")
		case strings.HasPrefix(line, "Sudden Term:"):
			current.SuddenTerm = strings.Contains(fieldValue(line), "enabled")
		case strings.HasPrefix(line, "Note:"):
			current.Notes = append(current.Notes, model.TraceProcessNote{Note: fieldValue(line)})
		case strings.HasPrefix(line, "Footprint:"):
			current.FootprintMB = float64(parseSize(fieldValue(line))) / (1024 * 1024)
		case strings.HasPrefix(line, "Time Since Fork:"):
			current.TimeSinceForkSec = parseFloatPrefix(fieldValue(line))
		case strings.HasPrefix(line, "Num threads:"):
			current.NumThreads = parseIntField(fieldValue(line))
		case strings.HasPrefix(line, "Num samples:"):
			if m := regexp.MustCompile(`(\d+)\s*\((\d+)-(\d+)\)`).FindStringSubmatch(line); m != nil {
				current.NumSamples, _ = strconv.Atoi(m[1])
				current.SampleRangeStart, _ = strconv.Atoi(m[2])
				current.SampleRangeEnd, _ = strconv.Atoi(m[3])
			}
		case strings.HasPrefix(line, "CPU Time:"):
			if m := regexp.MustCompile(`([\d.]+)s\s*\(([\d.]+[KMGT]?)\s*cycles,\s*([\d.]+[KMGT]?)\s*instructions,\s*([\d.]+)c/i\)`).FindStringSubmatch(line); m != nil {
				current.CPUTimeSec, _ = strconv.ParseFloat(m[1], 64)
				current.Cycles = parseCountSuffix(m[2])
				current.Instructions = parseCountSuffix(m[3])
				current.CPI, _ = strconv.ParseFloat(m[4], 64)
			}
		case threadHeaderRe.MatchString(line):
			flushThread()
			currentThread = parseThreadLine(line)
		case currentThread != nil && frameRe.MatchString(line):
			currentThread.Frames = append(currentThread.Frames, parseFrameLine(line, currentThread.Frames))
		}
	}
	flushProcess()
	return processes
}

func parseThreadLine(line string) *model.TraceThread {
	m := threadHeaderRe.FindStringSubmatch(line)
	th := &model.TraceThread{}
	if m != nil {
		if id, err := strconv.ParseUint(strings.TrimPrefix(m[1], "0x"), 16, 64); err == nil {
			th.ThreadID = id
		}
	}
	if q := threadQueueRe.FindStringSubmatch(line); q != nil {
		th.DispatchQueue = q[1]
	}
	if n := threadNameRe.FindStringSubmatch(line); n != nil {
		th.ThreadName = n[1]
	}
	if s := threadSamplesRe.FindStringSubmatch(line); s != nil {
		th.NumSamples, _ = strconv.Atoi(s[1])
		th.SampleRangeStart, _ = strconv.Atoi(s[2])
		th.SampleRangeEnd, _ = strconv.Atoi(s[3])
	}
	if p := threadPriorityRe.FindStringSubmatch(line); p != nil {
		th.Priority, _ = strconv.Atoi(p[1])
	}
	if c := threadCPURe.FindStringSubmatch(line); c != nil {
		th.CPUTimeSec, _ = strconv.ParseFloat(c[1], 64)
	}
	if io := threadIORe.FindStringSubmatch(line); io != nil {
		count, _ := strconv.ParseUint(io[1], 10, 64)
		th.IOCount = count
		th.IOBytes = parseSize(io[2])
	}
	return th
}

// parseFrameLine parses one stack-frame line, resolving depth from
// indentation (2 spaces per level, starting at depth 0 for a 2-space
// indent) and ParentFrameID as the index of the most recent frame in
// existingFrames at depth-1 (§4.5.1).
func parseFrameLine(line string, existingFrames []model.TraceFrame) model.TraceFrame {
	m := frameRe.FindStringSubmatch(line)
	indent := len(m[1])
	depth := (indent - 2) / 2
	sampleCount, _ := strconv.Atoi(m[3])
	address, _ := strconv.ParseUint(strings.TrimPrefix(m[5], "0x"), 16, 64)

	f := model.TraceFrame{
		Depth:       depth,
		SampleCount: sampleCount,
		IsKernel:    m[2] == "*",
		Address:     address,
	}

	symbolInfo := strings.TrimSpace(m[4])
	if symbolInfo != "???" {
		if sl := frameSymbolLibRe.FindStringSubmatch(symbolInfo); sl != nil {
			f.SymbolName = strings.TrimSpace(sl[1])
			off, _ := strconv.ParseUint(sl[2], 10, 64)
			f.SymbolOffset = &off
			f.LibraryName = strings.TrimSpace(sl[3])
			loff, _ := strconv.ParseUint(sl[4], 10, 64)
			f.LibraryOffset = &loff
		} else if ll := frameLibOnlyRe.FindStringSubmatch(symbolInfo); ll != nil {
			f.LibraryName = strings.TrimSpace(ll[1])
			loff, _ := strconv.ParseUint(ll[2], 10, 64)
			f.LibraryOffset = &loff
		}
	}

	if stateInfo := m[6]; stateInfo != "" {
		lower := strings.ToLower(stateInfo)
		switch {
		case strings.Contains(lower, "running"):
			f.State = "running"
			if strings.Contains(lower, "p-core") {
				f.CoreType = "p-core"
			} else if strings.Contains(lower, "e-core") {
				f.CoreType = "e-core"
			}
		case strings.Contains(lower, "blocked"):
			f.State = "blocked"
			if bm := regexp.MustCompile(`blocked by \w+ on\s+(.+)`).FindStringSubmatch(lower); bm != nil {
				f.BlockedOn = bm[1]
			}
		}
	}

	// Find the most recent frame at depth-1 among frames parsed so far in
	// this thread; its slice index becomes this frame's parent reference.
	if depth > 0 {
		for i := len(existingFrames) - 1; i >= 0; i-- {
			if existingFrames[i].Depth == depth-1 {
				idx := int64(i)
				f.ParentFrameID = &idx
				break
			}
		}
	}
	return f
}
