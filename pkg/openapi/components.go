package openapi

import "maps"

// errorSchema describes the JSON body of every error response.
var errorSchema = &Schema{
	Type: "object",
	Properties: map[string]*Schema{
		"kind":  {Type: "string", Description: "Error classification"},
		"error": {Type: "string", Description: "Error message"},
	},
	Required: []string{"error"},
}

func errorResponse(description string) *Response {
	return ResponseJSON(description, "Error")
}

// NewComponents creates Components with shared schemas and error responses.
func NewComponents() *Components {
	return &Components{
		Schemas: map[string]*Schema{
			"Error": errorSchema,
			"PageRequest": {
				Type: "object",
				Properties: map[string]*Schema{
					"page":      {Type: "integer", Description: "Page number (1-indexed)", Example: 1},
					"page_size": {Type: "integer", Description: "Results per page", Example: 10},
					"search":    {Type: "string", Description: "Search query"},
					"sort":      {Type: "string", Description: "Comma-separated sort fields. Prefix with - for descending. Example: name,-uploaded_at"},
				},
			},
		},
		Responses: map[string]*Response{
			"BadRequest":         errorResponse("Invalid request"),
			"NotFound":           errorResponse("Resource not found"),
			"Conflict":           errorResponse("Name already in use"),
			"RequestTimeout":     errorResponse("Request cancelled"),
			"PayloadTooLarge":    errorResponse("Upload exceeds the size limit"),
			"UnsupportedType":    errorResponse("Unsupported file type"),
			"Unprocessable":      errorResponse("Document has no usable content"),
			"InternalError":      errorResponse("Internal error"),
			"ServiceUnavailable": errorResponse("Search index unavailable"),
			"GatewayTimeout":     errorResponse("Operation timed out"),
		},
	}
}

// AddSchemas merges the given schemas into the component schemas.
func (c *Components) AddSchemas(schemas map[string]*Schema) {
	maps.Copy(c.Schemas, schemas)
}

// AddResponses merges the given responses into the component responses.
func (c *Components) AddResponses(responses map[string]*Response) {
	maps.Copy(c.Responses, responses)
}
