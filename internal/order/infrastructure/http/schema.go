package http

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var commitSchema = gojsonschema.NewStringLoader(`{
	"type": "object",
	"required": ["orderId", "sellerId"],
	"properties": {
		"orderId":  {"type": "string", "minLength": 1, "pattern": "\\S"},
		"sellerId": {"type": "string", "minLength": 1, "pattern": "\\S"}
	}
}`)

var triggerSchema = gojsonschema.NewStringLoader(`{
	"type": "object",
	"properties": {
		"action": {"type": "string"}
	}
}`)

type schemaError struct {
	problems []string
}

func (e *schemaError) Error() string {
	return "invalid request: " + strings.Join(e.problems, "; ")
}

// validate checks body against schema. A nil error means the body is well formed.
func validate(schema gojsonschema.JSONLoader, body []byte) error {
	res, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return &schemaError{problems: []string{fmt.Sprintf("malformed JSON: %v", err)}}
	}
	if res.Valid() {
		return nil
	}
	problems := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		problems = append(problems, e.String())
	}
	return &schemaError{problems: problems}
}
