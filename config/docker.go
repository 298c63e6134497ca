package config

import (
	"encoding/base64"
	"fmt"
	"strings"

	dockercfg "github.com/docker/cli/cli/config"
	"github.com/docker/cli/cli/config/configfile"
)

// dockerEnv is the environment variable docker's own config loader honors
// to relocate the config directory; set here purely for tests.
const dockerEnv = "DOCKER_CONFIG"

// DockerLoad reads the user's docker config.json (honoring $DOCKER_CONFIG)
// and returns the registry hosts it defines.
func DockerLoad() ([]Host, error) {
	cf, err := dockercfg.Load(dockercfg.Dir())
	if err != nil {
		return nil, fmt.Errorf("failed to load docker config: %w", err)
	}
	return dockerParse(cf)
}

// dockerParse translates a docker config file into a list of registry Hosts.
// Per-host credHelpers entries take priority; static "auths" entries fill in
// any username/password/identity token docker stored directly in the file;
// a global credsStore is only applied to an "auths" host without its own
// helper that has a username but no password.
func dockerParse(cf *configfile.ConfigFile) ([]Host, error) {
	if cf == nil {
		return nil, nil
	}
	hosts := map[string]*Host{}
	get := func(key string) *Host {
		name, hostname, credHost, tls := dockerKeyToHost(key)
		h, ok := hosts[name]
		if !ok {
			h = HostNewName(name)
			h.Hostname = hostname
			h.CredHost = credHost
			h.TLS = tls
			hosts[name] = h
		}
		return h
	}
	for key, prog := range cf.CredentialHelpers {
		get(key).CredHelper = "docker-credential-" + prog
	}
	for key, ac := range cf.AuthConfigs {
		h := get(key)
		switch {
		case ac.IdentityToken != "":
			h.Token = ac.IdentityToken
		case ac.Username != "" || ac.Password != "":
			h.User = ac.Username
			h.Pass = ac.Password
		case ac.Auth != "":
			user, pass, err := decodeBasicAuth(ac.Auth)
			if err != nil {
				return nil, fmt.Errorf("failed to decode auth for %s: %w", key, err)
			}
			h.User = user
			h.Pass = pass
		}
		// a username with no password means the real secret lives in the
		// credentials store rather than the config file itself
		if cf.CredentialsStore != "" && h.CredHelper == "" && h.User != "" && h.Pass == "" {
			h.CredHelper = "docker-credential-" + cf.CredentialsStore
		}
	}
	list := make([]Host, 0, len(hosts))
	for _, h := range hosts {
		list = append(list, *h)
	}
	return list, nil
}

// dockerKeyToHost maps a docker config.json auth/credHelper key to the
// registry name, connection hostname, credential-helper lookup key, and TLS
// setting it implies.
func dockerKeyToHost(key string) (name, hostname, credHost string, tls TLSConf) {
	switch {
	case key == DockerRegistry || key == DockerRegistryAuth:
		return DockerRegistry, DockerRegistryDNS, DockerRegistryAuth, TLSEnabled
	case strings.HasPrefix(key, "http://"):
		host := strings.TrimSuffix(strings.TrimPrefix(key, "http://"), "/")
		return host, host, key, TLSDisabled
	case strings.HasPrefix(key, "https://"):
		host := strings.TrimSuffix(strings.TrimPrefix(key, "https://"), "/")
		return host, host, key, TLSEnabled
	default:
		return key, key, "", TLSEnabled
	}
}

func decodeBasicAuth(auth string) (user, pass string, err error) {
	raw, err := base64.StdEncoding.DecodeString(auth)
	if err != nil {
		return "", "", err
	}
	parts := strings.SplitN(string(raw), ":", 2)
	user = parts[0]
	if len(parts) > 1 {
		pass = parts[1]
	}
	return user, pass, nil
}
