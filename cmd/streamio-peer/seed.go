package main

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/streamio/streamio-go/internal/testpeer"
)

// Seed is the YAML file describing a development upstream.
//
//	listen: ":8443"
//	path: /stream
//	instance: dev-peer
//	advertise: true
//	key_env: STREAMIO_PEER_KEY
//	resources:
//	  /users/42: {name: Ada, version: 1}
//	  /rooms: [{id: 1, title: lobby}]
type Seed struct {
	Listen    string `yaml:"listen"`
	Path      string `yaml:"path"`
	Instance  string `yaml:"instance"`
	Advertise bool   `yaml:"advertise"`

	// KeyEnv names the variable holding the HMAC key for bearer tokens.
	// Empty or unset disables authentication.
	KeyEnv string `yaml:"key_env"`

	Resources map[string]any `yaml:"resources"`
}

// LoadSeed reads and validates a seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: read file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed parses seed YAML over the defaults.
func ParseSeed(data []byte) (*Seed, error) {
	seed := &Seed{Listen: ":8443", Path: "/", Instance: "streamio-peer"}
	if err := yaml.Unmarshal(data, seed); err != nil {
		return nil, fmt.Errorf("seed: parse yaml: %w", err)
	}

	var errs []error
	if !strings.HasPrefix(seed.Path, "/") {
		errs = append(errs, fmt.Errorf("path must start with /, got %q", seed.Path))
	}
	for url := range seed.Resources {
		if url == "" {
			errs = append(errs, errors.New("resources: empty url"))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	return seed, nil
}

// Key returns the token key from the environment, nil when disabled.
func (s *Seed) Key() []byte {
	if s.KeyEnv == "" {
		return nil
	}
	if v := os.Getenv(s.KeyEnv); v != "" {
		return []byte(v)
	}
	return nil
}

// Apply loads the resources into p and returns the urls whose content
// changed, sorted.
func (s *Seed) Apply(p *testpeer.Peer) []string {
	var changed []string
	for url, data := range s.Resources {
		if p.Hash(url) == testpeer.HashOf(data) {
			continue
		}
		p.Set(url, data)
		changed = append(changed, url)
	}
	slices.Sort(changed)
	return changed
}
