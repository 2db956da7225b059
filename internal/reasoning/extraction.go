package reasoning

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/sells-group/tender-cli/internal/model"
	"github.com/sells-group/tender-cli/internal/resilience"
)

var fencedJSON = regexp.MustCompile("(?s)```json\\s*\\n(.*?)\\n\\s*```")

const extractionSchema = `{
  "type": "object",
  "required": ["tender", "items"],
  "properties": {
    "tender": {"type": "object"},
    "customer": {"type": ["object", "null"]},
    "delivery_terms": {"type": ["object", "null"]},
    "items": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "quantity": {"type": ["object", "null"]},
          "specifications": {"type": ["object", "null"]},
          "requirements": {"type": ["array", "null"]}
        }
      }
    },
    "special_conditions": {"type": ["object", "null"]}
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(extractionSchema)

// ParseExtraction pulls the fenced ```json block out of model output and
// decodes it as a tender extraction. Anything short of a schema-valid block
// is an *resilience.ExtractionParseError; no partial structure is guessed.
func ParseExtraction(text string) (*model.TenderExtraction, error) {
	m := fencedJSON.FindStringSubmatch(text)
	if m == nil {
		return nil, &resilience.ExtractionParseError{Reason: "no fenced json block"}
	}
	raw := strings.TrimSpace(m[1])

	res, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, &resilience.ExtractionParseError{Reason: "malformed json", Err: err}
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, &resilience.ExtractionParseError{Reason: "schema: " + strings.Join(msgs, "; ")}
	}

	var out model.TenderExtraction
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, &resilience.ExtractionParseError{Reason: "decode", Err: err}
	}
	return &out, nil
}
