package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	validator "github.com/santhosh-tekuri/jsonschema/v5"
)

// QAPair is one generated interview question with its reference answer.
type QAPair struct {
	Question string `json:"question" jsonschema:"minLength=1,description=Interview question"`
	Answer   string `json:"answer" jsonschema:"minLength=1,description=Reference answer"`
}

// Evaluation is the model's score and feedback for one submitted answer.
type Evaluation struct {
	Ratings  int    `json:"ratings" jsonschema:"minimum=0,maximum=10,description=Score from 0 to 10"`
	Feedback string `json:"feedback" jsonschema:"description=Areas of improvement"`
}

// Schema names served under /schemas/{name}.
const (
	QuestionSetSchema = "question-set"
	EvaluationSchema  = "evaluation"
)

const schemaBaseID = "https://mockprep.local/schemas/"

// Schema returns the JSON Schema document for name. For the question set, n is
// the required number of items; n <= 0 only requires a non-empty array.
func Schema(name string, n int) (map[string]any, error) {
	switch name {
	case QuestionSetSchema:
		item, err := reflectObject(&QAPair{})
		if err != nil {
			return nil, err
		}
		doc := map[string]any{
			"$schema": jsonschema.Version,
			"$id":     schemaID(name, n),
			"title":   "Question set",
			"type":    "array",
			"items":   item,
		}
		if n > 0 {
			doc["minItems"] = n
			doc["maxItems"] = n
		} else {
			doc["minItems"] = 1
		}
		return doc, nil
	case EvaluationSchema:
		doc, err := reflectObject(&Evaluation{})
		if err != nil {
			return nil, err
		}
		doc["$schema"] = jsonschema.Version
		doc["$id"] = schemaID(name, 0)
		doc["title"] = "Answer evaluation"
		return doc, nil
	}
	return nil, fmt.Errorf("unknown schema %q", name)
}

func schemaID(name string, n int) string {
	if n > 0 {
		return fmt.Sprintf("%s%s-%d.json", schemaBaseID, name, n)
	}
	return schemaBaseID + name + ".json"
}

// reflectObject reflects v into an inline schema without $schema or $id.
func reflectObject(v any) (map[string]any, error) {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: true,
		DoNotReference:            true,
	}
	raw, err := json.Marshal(r.Reflect(v))
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	delete(m, "$schema")
	delete(m, "$id")
	return m, nil
}

var compiled sync.Map // schema $id -> *validator.Schema

func compiledSchema(name string, n int) (*validator.Schema, error) {
	id := schemaID(name, n)
	if s, ok := compiled.Load(id); ok {
		return s.(*validator.Schema), nil
	}

	doc, err := Schema(name, n)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal schema %s: %w", id, err)
	}

	c := validator.NewCompiler()
	c.Draft = validator.Draft2020
	if err := c.AddResource(id, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", id, err)
	}
	s, err := c.Compile(id)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", id, err)
	}
	actual, _ := compiled.LoadOrStore(id, s)
	return actual.(*validator.Schema), nil
}

func validate(name string, n int, v any) error {
	s, err := compiledSchema(name, n)
	if err != nil {
		return err
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	return nil
}

// QuestionSet normalizes raw as an array of question/answer pairs. When n > 0
// the array must hold exactly n items. Among the bracketed spans in the reply
// the first one that satisfies the schema is used.
func QuestionSet(raw string, n int) ([]QAPair, error) {
	s, err := extractArray(Clean(raw), func(v any) bool {
		return validate(QuestionSetSchema, n, v) == nil
	})
	if err != nil {
		return nil, err
	}
	v, err := decode(s)
	if err != nil {
		return nil, err
	}
	if err := validate(QuestionSetSchema, n, v); err != nil {
		return nil, err
	}

	items := v.([]any)
	pairs := make([]QAPair, len(items))
	for i, item := range items {
		obj := item.(map[string]any)
		pairs[i] = QAPair{
			Question: obj["question"].(string),
			Answer:   obj["answer"].(string),
		}
	}
	return pairs, nil
}

// ParseEvaluation normalizes raw as a single evaluation object.
func ParseEvaluation(raw string) (*Evaluation, error) {
	v, err := Normalize(raw, Object)
	if err != nil {
		return nil, err
	}
	if err := validate(EvaluationSchema, 0, v); err != nil {
		return nil, err
	}

	obj := v.(map[string]any)
	rating, err := obj["ratings"].(json.Number).Float64()
	if err != nil {
		return nil, fmt.Errorf("%w: ratings: %v", ErrSchemaMismatch, err)
	}
	return &Evaluation{
		Ratings:  int(rating),
		Feedback: obj["feedback"].(string),
	}, nil
}
