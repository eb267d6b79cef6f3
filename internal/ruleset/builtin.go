package ruleset

import (
	"embed"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed frameworks/*.yaml
var builtinFS embed.FS

// BuiltinInfo describes one embedded rule set.
type BuiltinInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Kind        Kind   `json:"kind"`
	Categories  int    `json:"categories"`
}

// Builtins lists the embedded rule sets, sorted by name.
func Builtins() ([]BuiltinInfo, error) {
	entries, err := builtinFS.ReadDir("frameworks")
	if err != nil {
		return nil, eris.Wrap(err, "ruleset: read embedded frameworks")
	}

	var out []BuiltinInfo
	for _, e := range entries {
		data, err := builtinFS.ReadFile("frameworks/" + e.Name())
		if err != nil {
			return nil, eris.Wrapf(err, "ruleset: read embedded %s", e.Name())
		}
		var head struct {
			Name        string `yaml:"name"`
			Description string `yaml:"description"`
			Kind        Kind   `yaml:"kind"`
			Categories  []any  `yaml:"categories"`
		}
		if err := yaml.Unmarshal(data, &head); err != nil {
			return nil, eris.Wrapf(err, "ruleset: decode embedded %s", e.Name())
		}
		kind := head.Kind
		if kind == "" {
			kind = KindScoring
		}
		out = append(out, BuiltinInfo{
			Name:        head.Name,
			Description: head.Description,
			Kind:        kind,
			Categories:  len(head.Categories),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func builtinBytes(name string) ([]byte, error) {
	data, err := builtinFS.ReadFile("frameworks/" + name + ".yaml")
	if err != nil {
		return nil, eris.Errorf("ruleset: no built-in rule set named %q", name)
	}
	return data, nil
}

// LoadBuiltinFramework loads an embedded scoring rule set by name.
func LoadBuiltinFramework(name string) (*Framework, error) {
	data, err := builtinBytes(name)
	if err != nil {
		return nil, err
	}
	return ParseFramework(data)
}

// LoadBuiltinScreener loads an embedded screening rule set by name.
func LoadBuiltinScreener(name string) (*Screener, error) {
	data, err := builtinBytes(name)
	if err != nil {
		return nil, err
	}
	return ParseScreener(data)
}

// ResolveFramework loads name as a built-in when it has no path
// separator or extension, otherwise as a YAML file on disk. The analyze
// and serve commands both go through this.
func ResolveFramework(name string) (*Framework, error) {
	if isPath(name) {
		return LoadFramework(name)
	}
	return LoadBuiltinFramework(name)
}

// ResolveScreener is the screening counterpart of ResolveFramework.
func ResolveScreener(name string) (*Screener, error) {
	if isPath(name) {
		return LoadScreener(name)
	}
	return LoadBuiltinScreener(name)
}

func isPath(name string) bool {
	return strings.ContainsAny(name, "/\\") || strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}
