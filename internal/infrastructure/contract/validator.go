package contract

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
)

//go:embed notes_api.yaml
var notesAPISpec []byte

// Document returns the embedded OpenAPI description of the notes service.
func Document() []byte {
	out := make([]byte, len(notesAPISpec))
	copy(out, notesAPISpec)
	return out
}

// Validator checks responses against the embedded contract. Routes are looked
// up by template, so server URLs in the document play no part.
type Validator struct {
	doc     *openapi3.T
	options *openapi3filter.Options
}

func NewValidator(ctx context.Context) (*Validator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(notesAPISpec)
	if err != nil {
		return nil, fmt.Errorf("load api contract: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate api contract: %w", err)
	}
	return &Validator{
		doc: doc,
		options: &openapi3filter.Options{
			MultiError: true,
		},
	}, nil
}

// ValidateResponse validates status, headers and body for route (a path
// template such as "/api/notes/{id}"). Statuses the contract does not
// describe are accepted.
func (v *Validator) ValidateResponse(ctx context.Context, route string, req *http.Request, status int, header http.Header, body []byte) error {
	pathItem := v.doc.Paths.Value(route)
	if pathItem == nil {
		return fmt.Errorf("route %s is not part of the api contract", route)
	}
	operation := pathItem.GetOperation(req.Method)
	if operation == nil {
		return fmt.Errorf("%s %s is not part of the api contract", req.Method, route)
	}

	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request: req,
			Route: &routers.Route{
				Spec:      v.doc,
				Path:      route,
				PathItem:  pathItem,
				Method:    req.Method,
				Operation: operation,
			},
			Options: v.options,
		},
		Status:  status,
		Header:  header,
		Options: v.options,
	}
	input.SetBodyBytes(body)
	return openapi3filter.ValidateResponse(ctx, input)
}
