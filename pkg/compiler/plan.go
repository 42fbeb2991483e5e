package compiler

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/netcfg-io/netcfg/pkg/dialect"
)

const (
	headerHostname   = "! hostname: "
	headerDeviceType = "! device-type: "
	headerHash       = "! plan-hash: "
	hashPrefix       = "sha256:"
)

// CommandPlan is the ordered list of CLI lines for one device. It is
// immutable once built; accessors return copies.
type CommandPlan struct {
	hostname   string
	deviceType string
	lines      []string
	hash       string
}

// NewPlan builds a plan from already rendered lines
func NewPlan(hostname, deviceType string, lines []string) *CommandPlan {
	p := &CommandPlan{
		hostname:   hostname,
		deviceType: deviceType,
		lines:      append([]string(nil), lines...),
	}
	p.hash = computeHash(deviceType, p.lines)
	return p
}

func computeHash(deviceType string, lines []string) string {
	h := sha256.New()
	h.Write([]byte(deviceType))
	for _, l := range lines {
		h.Write([]byte{'\n'})
		h.Write([]byte(l))
	}
	return hashPrefix + hex.EncodeToString(h.Sum(nil))
}

func (p *CommandPlan) Hostname() string   { return p.hostname }
func (p *CommandPlan) DeviceType() string { return p.deviceType }
func (p *CommandPlan) Len() int           { return len(p.lines) }

// Hash identifies the plan content. Two plans with the same device type and
// lines have the same hash.
func (p *CommandPlan) Hash() string { return p.hash }

// Lines returns a copy of the command lines
func (p *CommandPlan) Lines() []string {
	return append([]string(nil), p.lines...)
}

// Split separates the trailing save command from the configuration body.
// save is empty when the plan does not end with the dialect's save command.
func (p *CommandPlan) Split(d *dialect.Dialect) (body []string, save string) {
	body = p.Lines()
	if n := len(body); n > 0 && d.IsSave(body[n-1]) {
		return body[:n-1], strings.TrimSpace(body[n-1])
	}
	return body, ""
}

// Text renders the plan artifact: header comments, then one command per line.
func (p *CommandPlan) Text() string {
	var sb strings.Builder
	sb.WriteString(headerHostname + p.hostname + "\n")
	sb.WriteString(headerDeviceType + p.deviceType + "\n")
	sb.WriteString(headerHash + p.hash + "\n")
	for _, l := range p.lines {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	return sb.String()
}

type planJSON struct {
	Hostname   string   `json:"hostname"`
	DeviceType string   `json:"deviceType"`
	Hash       string   `json:"hash"`
	Commands   []string `json:"commands"`
}

func (p *CommandPlan) MarshalJSON() ([]byte, error) {
	return json.Marshal(planJSON{
		Hostname:   p.hostname,
		DeviceType: p.deviceType,
		Hash:       p.hash,
		Commands:   p.lines,
	})
}

// ParsePlan reads a plan artifact written by Text. Comment lines other than
// the known headers are skipped. When a hash header is present it must match
// the content.
func ParsePlan(data []byte) (*CommandPlan, error) {
	var hostname, deviceType, wantHash string
	var lines []string

	sc := bufio.NewScanner(strings.NewReader(string(data)))
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		switch {
		case strings.HasPrefix(line, headerHostname):
			hostname = strings.TrimSpace(strings.TrimPrefix(line, headerHostname))
		case strings.HasPrefix(line, headerDeviceType):
			deviceType = strings.TrimSpace(strings.TrimPrefix(line, headerDeviceType))
		case strings.HasPrefix(line, headerHash):
			wantHash = strings.TrimSpace(strings.TrimPrefix(line, headerHash))
		case strings.HasPrefix(line, "!"), strings.TrimSpace(line) == "":
		default:
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}

	if deviceType == "" {
		return nil, fmt.Errorf("plan has no %q header", strings.TrimSpace(headerDeviceType))
	}
	if _, ok := dialect.Lookup(deviceType); !ok {
		return nil, fmt.Errorf("plan device type %q is not supported", deviceType)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("plan for %s contains no commands", hostname)
	}

	p := NewPlan(hostname, deviceType, lines)
	if wantHash != "" && wantHash != p.hash {
		return nil, fmt.Errorf("plan hash mismatch: header %s, content %s", wantHash, p.hash)
	}
	return p, nil
}
