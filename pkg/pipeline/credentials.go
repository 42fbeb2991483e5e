package pipeline

import (
	"fmt"
	"os"
	"strings"

	"github.com/netcfg-io/netcfg/pkg/intent"
	"github.com/netcfg-io/netcfg/pkg/session"
)

// Environment variables read by EnvResolver. A credentialsRef of "core"
// is looked up as NETCFG_CORE_USERNAME and so on before the shared names.
const (
	EnvUsername       = "NETWORK_USERNAME"
	EnvPassword       = "NETWORK_PASSWORD"
	EnvEnablePassword = "NETWORK_ENABLE_PASSWORD"
)

// CredentialResolver turns an intent's credentialsRef into credentials.
// It is called once per intent, before any deployment starts.
type CredentialResolver interface {
	Resolve(doc *intent.DeviceIntent) (session.Credentials, error)
}

// EnvResolver reads credentials from environment variables
type EnvResolver struct {
	// LookupEnv defaults to os.LookupEnv
	LookupEnv func(string) (string, bool)
}

func (e EnvResolver) lookup(ref, suffix, shared string) string {
	lookup := e.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if ref != "" {
		if v, ok := lookup(refVar(ref, suffix)); ok {
			return v
		}
	}
	v, _ := lookup(shared)
	return v
}

// refVar maps a ref and suffix to NETCFG_<REF>_<SUFFIX>
func refVar(ref, suffix string) string {
	up := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(ref))
	return "NETCFG_" + up + "_" + suffix
}

func (e EnvResolver) Resolve(doc *intent.DeviceIntent) (session.Credentials, error) {
	ref := doc.CredentialsRef
	c := session.Credentials{
		Username:     e.lookup(ref, "USERNAME", EnvUsername),
		Password:     e.lookup(ref, "PASSWORD", EnvPassword),
		EnableSecret: e.lookup(ref, "ENABLE_PASSWORD", EnvEnablePassword),
	}
	if c.Username == "" || c.Password == "" {
		if ref != "" {
			return c, fmt.Errorf("no credentials for ref %q: set %s/%s or %s/%s",
				ref, refVar(ref, "USERNAME"), refVar(ref, "PASSWORD"), EnvUsername, EnvPassword)
		}
		return c, fmt.Errorf("no credentials: set %s and %s", EnvUsername, EnvPassword)
	}
	return c, nil
}

// StaticResolver serves fixed credentials, optionally per ref. Used for
// interactively prompted credentials and tests.
type StaticResolver struct {
	Default session.Credentials
	ByRef   map[string]session.Credentials
}

func (s StaticResolver) Resolve(doc *intent.DeviceIntent) (session.Credentials, error) {
	if c, ok := s.ByRef[doc.CredentialsRef]; ok {
		return c, nil
	}
	if s.Default.Username == "" {
		return session.Credentials{}, fmt.Errorf("no credentials for %s", doc.Name())
	}
	return s.Default, nil
}
