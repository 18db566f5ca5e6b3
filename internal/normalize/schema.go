package normalize

import (
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// shapeSchema builds the minimal shape an element must have to survive
// collection parsing: an object whose required fields are strings and
// whose id is non-empty.
func shapeSchema(kind string, required ...string) *jsonschema.Schema {
	props := make([]string, 0, len(required))
	for _, field := range required {
		if field == "id" {
			props = append(props, `"id": {"type": "string", "minLength": 1}`)
			continue
		}
		props = append(props, fmt.Sprintf(`%q: {"type": "string"}`, field))
	}
	quoted := make([]string, len(required))
	for i, field := range required {
		quoted[i] = fmt.Sprintf("%q", field)
	}
	schema := fmt.Sprintf(
		`{"type": "object", "required": [%s], "properties": {%s}}`,
		strings.Join(quoted, ", "), strings.Join(props, ", "),
	)
	return jsonschema.MustCompileString("teamboard://shape/"+kind+".json", schema)
}

var (
	taskShape         = shapeSchema("task", "id", "title")
	projectShape      = shapeSchema("project", "id", "name")
	memberShape       = shapeSchema("member", "id", "name")
	timeEntryShape    = shapeSchema("time_entry", "id")
	ruleShape         = shapeSchema("automation_rule", "id", "name")
	noteShape         = shapeSchema("note", "id")
	commentShape      = shapeSchema("comment", "id")
	notificationShape = shapeSchema("notification", "id")
	subtaskShape      = shapeSchema("subtask", "title")
	attachmentShape   = shapeSchema("attachment", "name")
)

// conforms reports whether v passes the shape check. Numeric ids are
// stringified first so integer-keyed backends are not rejected.
func conforms(schema *jsonschema.Schema, v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	if raw, present := m["id"]; present {
		if _, isString := raw.(string); !isString {
			if id := idString(raw); id != "" {
				copied := make(map[string]any, len(m))
				for k, val := range m {
					copied[k] = val
				}
				copied["id"] = id
				m = copied
			}
		}
	}
	return schema.Validate(m) == nil
}
