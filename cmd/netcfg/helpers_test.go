package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/netcfg-io/netcfg/pkg/compiler"
	"github.com/netcfg-io/netcfg/pkg/intent"
)

func TestParseLast(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"24h", 24 * time.Hour, false},
		{"90m", 90 * time.Minute, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"0d", 0, true},
		{"xd", 0, true},
		{"-1h", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		got, err := parseLast(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLast(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseLast(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestPick(t *testing.T) {
	if got := pick(0, 5); got != 5 {
		t.Errorf("pick(0, 5) = %d", got)
	}
	if got := pick(3, 5); got != 3 {
		t.Errorf("pick(3, 5) = %d", got)
	}
	if got := pick("", "/etc/known_hosts"); got != "/etc/known_hosts" {
		t.Errorf("pick(\"\", ...) = %q", got)
	}
}

func TestPromptCredentials(t *testing.T) {
	secrets := [][]byte{[]byte("pw"), []byte("en")}
	read := func() ([]byte, error) {
		s := secrets[0]
		secrets = secrets[1:]
		return s, nil
	}
	var out strings.Builder

	c, err := promptCredentials(strings.NewReader("admin\n"), &out, read)
	if err != nil {
		t.Fatalf("promptCredentials() error: %v", err)
	}
	if c.Username != "admin" || c.Password != "pw" || c.EnableSecret != "en" {
		t.Errorf("got %+v", c)
	}
	if !strings.Contains(out.String(), "Username: ") || !strings.Contains(out.String(), "Password: ") {
		t.Errorf("prompts missing: %q", out.String())
	}
}

func TestPromptCredentialsErrors(t *testing.T) {
	ok := func() ([]byte, error) { return []byte("x"), nil }
	if _, err := promptCredentials(strings.NewReader("\n"), &strings.Builder{}, ok); err == nil {
		t.Error("empty username accepted")
	}
	fail := func() ([]byte, error) { return nil, errors.New("no tty") }
	if _, err := promptCredentials(strings.NewReader("admin\n"), &strings.Builder{}, fail); err == nil {
		t.Error("password read failure not reported")
	}
}

func TestPlanMatches(t *testing.T) {
	doc := &intent.DeviceIntent{Hostname: "r1", DeviceType: "cisco_ios"}
	tests := []struct {
		name    string
		plan    *compiler.CommandPlan
		wantErr string
	}{
		{"match", compiler.NewPlan("r1", "ios", []string{"hostname r1"}), ""},
		{"other host", compiler.NewPlan("r2", "ios", []string{"hostname r2"}), "intent is for"},
		{"other type", compiler.NewPlan("r1", "eos", []string{"hostname r1"}), "device type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := planMatches(tt.plan, doc)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("planMatches() error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("planMatches() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestWritePlans(t *testing.T) {
	p1 := compiler.NewPlan("r1", "ios", []string{"hostname r1", "write memory"})
	p2 := compiler.NewPlan("r2", "ios", []string{"hostname r2", "write memory"})

	t.Run("directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "plans")
		if err := writePlans([]*compiler.CommandPlan{p1, p2}, dir); err != nil {
			t.Fatal(err)
		}
		for _, p := range []*compiler.CommandPlan{p1, p2} {
			data, err := os.ReadFile(filepath.Join(dir, p.Hostname()+PlanExt))
			if err != nil {
				t.Fatal(err)
			}
			back, err := compiler.ParsePlan(data)
			if err != nil {
				t.Fatalf("ParsePlan() error: %v", err)
			}
			if back.Hash() != p.Hash() {
				t.Errorf("%s hash = %s, want %s", p.Hostname(), back.Hash(), p.Hash())
			}
		}
	})

	t.Run("single file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "r1.cfg")
		if err := writePlans([]*compiler.CommandPlan{p1}, path); err != nil {
			t.Fatal(err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("plan not written: %v", err)
		}
	})

	t.Run("many to stdout", func(t *testing.T) {
		if err := writePlans([]*compiler.CommandPlan{p1, p2}, ""); err == nil {
			t.Error("expected an error for several plans without an output directory")
		}
	})
}
