package api

import (
	"github.com/JaimeStill/covenant/internal/contracts"
	"github.com/JaimeStill/covenant/internal/corpus"
	"github.com/JaimeStill/covenant/internal/prompts"
	"github.com/JaimeStill/covenant/pkg/openapi"
)

// NewSpec describes the API routes registered by registerRoutes.
func NewSpec(title, description, version, basePath string) *openapi.Spec {
	spec := openapi.NewSpec(title, version)
	spec.SetDescription(description)
	spec.AddServer(basePath)
	spec.AddTag("Contracts", "Document ingestion and contract records")
	spec.AddTag("Questions", "Grounded question answering over the corpus")
	spec.AddTag("Reports", "Portfolio status and risk summaries")
	spec.AddTag("Index", "Search index maintenance")
	spec.AddTag("Prompts", "Instruction overrides for the classify and answer stages")
	spec.Components.AddSchemas(schemas())

	idParam := openapi.PathParam("id", "Contract id")
	errs := func(codes ...int) map[int]*openapi.Response {
		names := map[int]string{
			400: "BadRequest",
			404: "NotFound",
			409: "Conflict",
			408: "RequestTimeout",
			413: "PayloadTooLarge",
			415: "UnsupportedType",
			422: "Unprocessable",
			500: "InternalError",
			503: "ServiceUnavailable",
			504: "GatewayTimeout",
		}
		out := make(map[int]*openapi.Response, len(codes)+1)
		for _, c := range codes {
			out[c] = openapi.ResponseRef(names[c])
		}
		out[500] = openapi.ResponseRef(names[500])
		return out
	}
	with := func(m map[int]*openapi.Response, code int, r *openapi.Response) map[int]*openapi.Response {
		m[code] = r
		return m
	}

	upload := &openapi.RequestBody{
		Required: true,
		Content: map[string]*openapi.MediaType{
			"multipart/form-data": {
				Schema: &openapi.Schema{
					Type: "object",
					Properties: map[string]*openapi.Schema{
						"file": {Type: "string", Format: "binary", Description: "PDF, DOCX, or plain text document"},
					},
					Required: []string{"file"},
				},
			},
		},
	}

	spec.Paths["/contracts"] = &openapi.PathItem{
		Get: &openapi.Operation{
			OperationID: "listContracts",
			Summary:     "List contracts",
			Tags:        []string{"Contracts"},
			Parameters: []*openapi.Parameter{
				openapi.QueryParam("page", "integer", "Page number (1-indexed)", false),
				openapi.QueryParam("page_size", "integer", "Results per page", false),
				openapi.QueryParam("search", "string", "Matches contract name or parties", false),
				openapi.QueryParam("sort", "string", "Sort fields: name, expiry_date, uploaded_at, status, risk_score", false),
				openapi.QueryParam("status", "string", "Active, Renewal Due, or Expired", false),
				openapi.QueryParam("risk", "string", "Low, Medium, or High", false),
			},
			Responses: with(errs(), 200, openapi.ResponseJSON("Contract page", "ContractPage")),
		},
		Post: &openapi.Operation{
			OperationID: "ingestDocument",
			Summary:     "Ingest a document",
			Tags:        []string{"Contracts"},
			RequestBody: upload,
			Responses:   with(errs(400, 408, 413, 415, 422), 201, openapi.ResponseJSON("Ingested contract", "ContractDetails")),
		},
	}

	spec.Paths["/contracts/{id}"] = &openapi.PathItem{
		Get: &openapi.Operation{
			OperationID: "getContractDetails",
			Summary:     "Get contract details",
			Tags:        []string{"Contracts"},
			Parameters:  []*openapi.Parameter{idParam},
			Responses:   with(errs(400, 404), 200, openapi.ResponseJSON("Contract details", "ContractDetails")),
		},
		Put: &openapi.Operation{
			OperationID: "reingest",
			Summary:     "Replace a contract document",
			Tags:        []string{"Contracts"},
			Parameters:  []*openapi.Parameter{idParam},
			RequestBody: upload,
			Responses:   with(errs(400, 404, 408, 413, 415, 422), 200, openapi.ResponseJSON("Reingested contract", "ContractDetails")),
		},
		Delete: &openapi.Operation{
			OperationID: "deleteContract",
			Summary:     "Delete a contract",
			Tags:        []string{"Contracts"},
			Parameters:  []*openapi.Parameter{idParam},
			Responses:   with(errs(400, 404), 204, &openapi.Response{Description: "Deleted"}),
		},
	}

	spec.Paths["/contracts/{id}/reprocess"] = &openapi.PathItem{
		Post: &openapi.Operation{
			OperationID: "reprocessContract",
			Summary:     "Re-run the pipeline over the stored document",
			Tags:        []string{"Contracts"},
			Parameters:  []*openapi.Parameter{idParam},
			Responses:   with(errs(400, 404, 422), 200, openapi.ResponseJSON("Reprocessed contract", "ContractDetails")),
		},
	}

	spec.Paths["/contracts/{id}/document"] = &openapi.PathItem{
		Get: &openapi.Operation{
			OperationID: "downloadDocument",
			Summary:     "Download the original document",
			Tags:        []string{"Contracts"},
			Parameters:  []*openapi.Parameter{idParam},
			Responses: with(errs(400, 404), 200, &openapi.Response{
				Description: "Original upload",
				Content: map[string]*openapi.MediaType{
					"application/octet-stream": {Schema: &openapi.Schema{Type: "string", Format: "binary"}},
				},
			}),
		},
	}

	spec.Paths["/contracts/events"] = &openapi.PathItem{
		Get: &openapi.Operation{
			OperationID: "streamEvents",
			Summary:     "Stream ingestion stage events",
			Description: "Server-sent events named segmented, extracted, indexed, committed, or failed.",
			Tags:        []string{"Contracts"},
			Responses: map[int]*openapi.Response{
				200: {
					Description: "Event stream",
					Content: map[string]*openapi.MediaType{
						"text/event-stream": {Schema: openapi.SchemaRef("Event")},
					},
				},
			},
		},
	}

	spec.Paths["/ask"] = &openapi.PathItem{
		Post: &openapi.Operation{
			OperationID: "ask",
			Summary:     "Answer a question from the corpus",
			Tags:        []string{"Questions"},
			RequestBody: openapi.RequestBodyJSON("AskCommand", true),
			Responses:   with(errs(400, 404, 408, 503, 504), 200, openapi.ResponseJSON("Grounded answer", "QueryResult")),
		},
	}

	spec.Paths["/reports"] = &openapi.PathItem{
		Get: &openapi.Operation{
			OperationID: "getReports",
			Summary:     "Portfolio reports",
			Tags:        []string{"Reports"},
			Responses:   with(errs(), 200, openapi.ResponseJSON("Report", "Report")),
		},
	}

	spec.Paths["/index/rebuild"] = &openapi.PathItem{
		Post: &openapi.Operation{
			OperationID: "rebuildIndex",
			Summary:     "Rebuild the search index",
			Tags:        []string{"Index"},
			Responses:   with(errs(408), 200, openapi.ResponseJSON("Index stats", "IndexStats")),
		},
	}

	promptID := openapi.PathParam("id", "Prompt id")
	stageParam := openapi.PathParam("stage", "classify or answer")

	spec.Paths["/prompts"] = &openapi.PathItem{
		Get: &openapi.Operation{
			OperationID: "listPrompts",
			Summary:     "List prompt overrides",
			Tags:        []string{"Prompts"},
			Parameters: []*openapi.Parameter{
				openapi.QueryParam("page", "integer", "Page number (1-indexed)", false),
				openapi.QueryParam("page_size", "integer", "Results per page", false),
				openapi.QueryParam("search", "string", "Matches name or description", false),
				openapi.QueryParam("sort", "string", "Sort fields: name, stage, active", false),
				openapi.QueryParam("stage", "string", "classify or answer", false),
				openapi.QueryParam("name", "string", "Name contains", false),
				openapi.QueryParam("active", "boolean", "Active flag", false),
			},
			Responses: with(errs(400), 200, openapi.ResponseJSON("Prompt page", "PromptPage")),
		},
		Post: &openapi.Operation{
			OperationID: "createPrompt",
			Summary:     "Create an inactive prompt override",
			Tags:        []string{"Prompts"},
			RequestBody: openapi.RequestBodyJSON("PromptCommand", true),
			Responses:   with(errs(400, 409), 201, openapi.ResponseJSON("Created prompt", "Prompt")),
		},
	}

	spec.Paths["/prompts/stages"] = &openapi.PathItem{
		Get: &openapi.Operation{
			OperationID: "listPromptStages",
			Summary:     "List prompt stages",
			Tags:        []string{"Prompts"},
			Responses: with(errs(), 200, &openapi.Response{
				Description: "Stages",
				Content: map[string]*openapi.MediaType{
					"application/json": {Schema: &openapi.Schema{Type: "array", Items: openapi.SchemaRef("Stage")}},
				},
			}),
		},
	}

	spec.Paths["/prompts/{id}"] = &openapi.PathItem{
		Get: &openapi.Operation{
			OperationID: "getPrompt",
			Summary:     "Get a prompt override",
			Tags:        []string{"Prompts"},
			Parameters:  []*openapi.Parameter{promptID},
			Responses:   with(errs(400, 404), 200, openapi.ResponseJSON("Prompt", "Prompt")),
		},
		Put: &openapi.Operation{
			OperationID: "updatePrompt",
			Summary:     "Update a prompt override",
			Tags:        []string{"Prompts"},
			Parameters:  []*openapi.Parameter{promptID},
			RequestBody: openapi.RequestBodyJSON("PromptCommand", true),
			Responses:   with(errs(400, 404, 409), 200, openapi.ResponseJSON("Updated prompt", "Prompt")),
		},
		Delete: &openapi.Operation{
			OperationID: "deletePrompt",
			Summary:     "Delete a prompt override",
			Tags:        []string{"Prompts"},
			Parameters:  []*openapi.Parameter{promptID},
			Responses:   with(errs(400, 404), 204, &openapi.Response{Description: "Deleted"}),
		},
	}

	spec.Paths["/prompts/{id}/activate"] = &openapi.PathItem{
		Post: &openapi.Operation{
			OperationID: "activatePrompt",
			Summary:     "Make a prompt the active override for its stage",
			Tags:        []string{"Prompts"},
			Parameters:  []*openapi.Parameter{promptID},
			Responses:   with(errs(400, 404), 200, openapi.ResponseJSON("Activated prompt", "Prompt")),
		},
	}

	spec.Paths["/prompts/{id}/deactivate"] = &openapi.PathItem{
		Post: &openapi.Operation{
			OperationID: "deactivatePrompt",
			Summary:     "Clear a prompt's active flag",
			Tags:        []string{"Prompts"},
			Parameters:  []*openapi.Parameter{promptID},
			Responses:   with(errs(400, 404), 200, openapi.ResponseJSON("Deactivated prompt", "Prompt")),
		},
	}

	spec.Paths["/prompts/{stage}/instructions"] = &openapi.PathItem{
		Get: &openapi.Operation{
			OperationID: "getStageInstructions",
			Summary:     "Effective instructions for a stage",
			Tags:        []string{"Prompts"},
			Parameters:  []*openapi.Parameter{stageParam},
			Responses:   with(errs(400), 200, openapi.ResponseJSON("Stage instructions", "StageContent")),
		},
	}

	spec.Paths["/prompts/{stage}/spec"] = &openapi.PathItem{
		Get: &openapi.Operation{
			OperationID: "getStageSpec",
			Summary:     "Fixed response specification for a stage",
			Tags:        []string{"Prompts"},
			Parameters:  []*openapi.Parameter{stageParam},
			Responses:   with(errs(400), 200, openapi.ResponseJSON("Stage specification", "StageContent")),
		},
	}

	return spec
}

func enum[T ~string](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func schemas() map[string]*openapi.Schema {
	uuid := &openapi.Schema{Type: "string", Format: "uuid"}
	uuids := &openapi.Schema{Type: "array", Items: uuid}
	timestamp := &openapi.Schema{Type: "string", Format: "date-time"}
	status := &openapi.Schema{Type: "string", Enum: enum(corpus.Statuses())}
	risk := &openapi.Schema{Type: "string", Enum: enum(corpus.Risks())}
	strs := &openapi.Schema{Type: "array", Items: &openapi.Schema{Type: "string"}}
	score := openapi.Range(&openapi.Schema{Type: "number"}, 0, 100)
	counts := func(desc string) *openapi.Schema {
		return &openapi.Schema{Type: "object", Description: desc}
	}

	contract := map[string]*openapi.Schema{
		"id":           uuid,
		"name":         {Type: "string"},
		"parties":      strs,
		"expiry_date":  timestamp,
		"uploaded_on":  timestamp,
		"status":       status,
		"risk_score":   risk,
		"filename":     {Type: "string"},
		"content_type": {Type: "string"},
		"size_bytes":   {Type: "integer"},
		"page_count":   {Type: "integer"},
		"locator":      {Type: "string"},
		"digest":       {Type: "string"},
		"warnings":     strs,
	}

	details := make(map[string]*openapi.Schema, len(contract)+3)
	for k, v := range contract {
		details[k] = v
	}
	details["clauses"] = &openapi.Schema{Type: "array", Items: openapi.SchemaRef("Clause")}
	details["insights"] = &openapi.Schema{Type: "array", Items: openapi.SchemaRef("Insight")}
	details["evidence"] = &openapi.Schema{Type: "array", Items: openapi.SchemaRef("Evidence")}

	return map[string]*openapi.Schema{
		"Contract":        {Type: "object", Properties: contract},
		"ContractDetails": {Type: "object", Properties: details},
		"Clause": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":          uuid,
				"contract_id": uuid,
				"title":       {Type: "string"},
				"text":        {Type: "string"},
				"confidence":  score,
				"chunk_ids":   uuids,
			},
		},
		"Insight": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":          uuid,
				"contract_id": uuid,
				"type":        {Type: "string", Enum: []any{string(corpus.InsightRisk), string(corpus.InsightRecommendation)}},
				"text":        {Type: "string"},
				"severity":    risk,
				"clause_ids":  uuids,
				"chunk_ids":   uuids,
			},
		},
		"Evidence": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":            uuid,
				"contract_id":   uuid,
				"contract_name": {Type: "string"},
				"text":          {Type: "string"},
				"page":          {Type: "integer"},
				"position":      {Type: "integer"},
				"relevance":     score,
			},
		},
		"ContractPage": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"data":        {Type: "array", Items: openapi.SchemaRef("Contract")},
				"total":       {Type: "integer"},
				"page":        {Type: "integer"},
				"page_size":   {Type: "integer"},
				"total_pages": {Type: "integer"},
			},
		},
		"AskCommand": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"query":        {Type: "string"},
				"contract_ids": uuids,
				"top_k":        {Type: "integer"},
			},
			Required: []string{"query"},
		},
		"QueryResult": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"answer": {Type: "string"},
				"chunks": {Type: "array", Items: openapi.SchemaRef("Evidence")},
			},
		},
		"Report": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"total":                {Type: "integer"},
				"status_summary":       counts("Count per status"),
				"risk_summary":         counts("Count per risk level"),
				"status_percent":       counts("Percentage per status"),
				"risk_percent":         counts("Percentage per risk level"),
				"upcoming_expirations": {Type: "array", Items: openapi.SchemaRef("Contract")},
				"horizon_days":         {Type: "integer"},
				"generated_at":         timestamp,
			},
		},
		"Event": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"contract_id": uuid,
				"filename":    {Type: "string"},
				"stage":       {Type: "string", Enum: enum(contracts.Stages())},
				"count":       {Type: "integer"},
				"kind":        {Type: "string"},
				"error":       {Type: "string"},
				"time":        timestamp,
			},
		},
		"Stage": {Type: "string", Enum: enum(prompts.Stages())},
		"Prompt": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":           uuid,
				"name":         {Type: "string"},
				"stage":        openapi.SchemaRef("Stage"),
				"instructions": {Type: "string"},
				"description":  {Type: "string"},
				"active":       {Type: "boolean"},
			},
		},
		"PromptCommand": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"name":         {Type: "string"},
				"stage":        openapi.SchemaRef("Stage"),
				"instructions": {Type: "string"},
				"description":  {Type: "string"},
			},
			Required: []string{"name", "stage", "instructions"},
		},
		"PromptPage": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"data":        {Type: "array", Items: openapi.SchemaRef("Prompt")},
				"total":       {Type: "integer"},
				"page":        {Type: "integer"},
				"page_size":   {Type: "integer"},
				"total_pages": {Type: "integer"},
			},
		},
		"StageContent": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"stage":   openapi.SchemaRef("Stage"),
				"content": {Type: "string"},
			},
		},
		"IndexStats": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"contracts":    {Type: "integer"},
				"chunks":       {Type: "integer"},
				"vectors":      {Type: "boolean"},
				"rebuilds":     {Type: "integer"},
				"last_rebuild": timestamp,
			},
		},
	}
}
