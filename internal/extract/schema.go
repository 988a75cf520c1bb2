package extract

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed schemas.yaml
var schemasYAML []byte

// DefaultSchema is the registry key used when a document type has no schema.
const DefaultSchema = "default"

// FieldDef describes one field the LLM is asked to extract.
type FieldDef struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
}

var (
	registryOnce sync.Once
	registry     map[string][]FieldDef
	registryErr  error
)

func loadRegistry() (map[string][]FieldDef, error) {
	registryOnce.Do(func() {
		var wrapper struct {
			Schemas map[string][]FieldDef `yaml:"schemas"`
		}
		if err := yaml.Unmarshal(schemasYAML, &wrapper); err != nil {
			registryErr = eris.Wrap(err, "extract: parse schemas.yaml")
			return
		}
		if _, ok := wrapper.Schemas[DefaultSchema]; !ok {
			registryErr = eris.New("extract: schemas.yaml has no default schema")
			return
		}
		registry = wrapper.Schemas
	})
	return registry, registryErr
}

// SchemaFor returns the ordered field list for a document type, falling back
// to the default set for unknown or empty types.
func SchemaFor(docType string) []FieldDef {
	reg, err := loadRegistry()
	if err != nil {
		// The registry is embedded; a parse failure is a build defect.
		panic(err)
	}
	if fields, ok := reg[docType]; ok {
		return fields
	}
	return reg[DefaultSchema]
}

// describeFields renders a schema as the bullet list used in the prompt.
func describeFields(fields []FieldDef) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s (%s): %s", f.Name, f.Type, f.Description)
	}
	return b.String()
}
