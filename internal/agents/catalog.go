// ABOUTME: TOML catalog overrides for agent definitions.
// ABOUTME: Lets operators replace prompts, keywords, and display text without rebuilding.

package agents

import (
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

// catalogFile is the on-disk TOML shape.
type catalogFile struct {
	Agents []agentEntry `toml:"agent"`
}

type agentEntry struct {
	Type         string   `toml:"type"`
	Name         string   `toml:"name"`
	Description  string   `toml:"description"`
	Keywords     []string `toml:"keywords"`
	SystemPrompt string   `toml:"system_prompt"`
}

// LoadCatalog reads agent overrides from a TOML file and merges them over
// the builtin catalog. Entries override whole agents; types not present in
// the file keep their builtin definitions. Environment variables in the
// ${VAR} format are expanded before parsing.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var file catalogFile
	if _, err := toml.Decode(expanded, &file); err != nil {
		return nil, fmt.Errorf("parsing catalog file: %w", err)
	}

	c := Builtin()
	for _, entry := range file.Agents {
		t, err := Parse(entry.Type)
		if err != nil {
			return nil, fmt.Errorf("catalog entry: %w", err)
		}
		c.agents[t] = Agent{
			Type:         t,
			Name:         entry.Name,
			Description:  entry.Description,
			Keywords:     entry.Keywords,
			SystemPrompt: entry.SystemPrompt,
		}
	}
	return c, nil
}

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(re.FindStringSubmatch(match)[1])
	})
}
