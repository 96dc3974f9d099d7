package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
	"github.com/ashish-admin/stra-tech-sub002/internal/provider/embedding"
	"github.com/ashish-admin/stra-tech-sub002/internal/provider/local"
	"github.com/ashish-admin/stra-tech-sub002/internal/provider/reasoning"
	"github.com/ashish-admin/stra-tech-sub002/internal/provider/retrieval"
)

type yamlCatalog struct {
	Services []yaml.Node `yaml:"services"`
}

type tomlCatalog struct {
	Services []toml.Primitive `toml:"services"`
}

// catalogEntry decodes one service entry onto a descriptor.
type catalogEntry struct {
	where  string
	decode func(into any) error
}

// DefaultDescriptors returns the built-in service catalog.
func DefaultDescriptors(cfg *Config) []domain.ServiceDescriptor {
	return []domain.ServiceDescriptor{
		reasoning.Descriptor(cfg.Reasoning),
		retrieval.Descriptor(cfg.Retrieval),
		embedding.Descriptor(cfg.Embedding.Model),
		local.Descriptor(cfg.Local),
	}
}

// LoadCatalog builds the service catalog from the defaults and the optional
// YAML or TOML override file. Entries in the file are merged field by field
// into the default descriptor of the same name; unknown names add services.
func LoadCatalog(cfg *Config) (*domain.InMemoryCatalog, error) {
	descs := DefaultDescriptors(cfg)

	if cfg.Catalog.Path != "" {
		data, err := os.ReadFile(cfg.Catalog.Path)
		if err != nil {
			return nil, fmt.Errorf("reading service catalog: %w", err)
		}
		descs, err = mergeCatalog(descs, cfg.Catalog.Path, data)
		if err != nil {
			return nil, fmt.Errorf("service catalog %s: %w", cfg.Catalog.Path, err)
		}
	}

	hasLocal := false
	for _, desc := range descs {
		if err := desc.Validate(); err != nil {
			return nil, err
		}
		if desc.Kind == domain.KindLocal {
			hasLocal = true
		}
	}
	if !hasLocal {
		return nil, errors.New("service catalog has no local fallback service")
	}

	return domain.NewInMemoryCatalog(descs...)
}

func mergeCatalog(defaults []domain.ServiceDescriptor, path string, data []byte) ([]domain.ServiceDescriptor, error) {
	entries, err := parseCatalog(path, data)
	if err != nil {
		return nil, err
	}

	out := append([]domain.ServiceDescriptor(nil), defaults...)
	index := make(map[string]int, len(out))
	for i, desc := range out {
		index[desc.Name] = i
	}

	for _, entry := range entries {
		var named struct {
			Name string `yaml:"name" toml:"name"`
		}
		if err := entry.decode(&named); err != nil {
			return nil, fmt.Errorf("%s: %w", entry.where, err)
		}
		if named.Name == "" {
			return nil, fmt.Errorf("%s: service without name", entry.where)
		}

		i, exists := index[named.Name]
		if !exists {
			out = append(out, domain.ServiceDescriptor{})
			i = len(out) - 1
			index[named.Name] = i
		}
		if err := entry.decode(&out[i]); err != nil {
			return nil, fmt.Errorf("service %s: %w", named.Name, err)
		}
	}

	return out, nil
}

// parseCatalog splits a YAML or TOML catalog file into its service entries.
// TOML files list services as [[services]] tables.
func parseCatalog(path string, data []byte) ([]catalogEntry, error) {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		var file tomlCatalog
		md, err := toml.Decode(string(data), &file)
		if err != nil {
			return nil, fmt.Errorf("parsing toml: %w", err)
		}

		entries := make([]catalogEntry, 0, len(file.Services))
		for i, prim := range file.Services {
			entries = append(entries, catalogEntry{
				where:  fmt.Sprintf("services[%d]", i),
				decode: func(into any) error { return md.PrimitiveDecode(prim, into) },
			})
		}
		return entries, nil
	}

	var file yamlCatalog
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}

	entries := make([]catalogEntry, 0, len(file.Services))
	for i := range file.Services {
		node := &file.Services[i]
		entries = append(entries, catalogEntry{
			where:  fmt.Sprintf("line %d", node.Line),
			decode: node.Decode,
		})
	}
	return entries, nil
}
