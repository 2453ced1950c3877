package mcpadapter

import "github.com/mark3labs/mcp-go/mcp"

const (
	toolSearch   = "search_research"
	toolSimilar  = "similar_research"
	toolFeedback = "record_feedback"
)

var filtersSchema = map[string]any{
	"type":        "object",
	"description": "Optional filters; blank fields are ignored",
	"properties": map[string]any{
		"year":         map[string]any{"type": "string", "description": "Exact four-digit publication year"},
		"author":       map[string]any{"type": "string", "description": "Case-insensitive author name substring"},
		"source_title": map[string]any{"type": "string", "description": "Case-insensitive source title substring"},
		"source_type":  map[string]any{"type": "string", "description": "Source type substring"},
		"type":         map[string]any{"type": "string", "description": "Item type key or label substring"},
		"category":     map[string]any{"type": "string", "description": "Item category or category label substring"},
	},
}

func searchTool() mcp.Tool {
	return mcp.Tool{
		Name:        toolSearch,
		Description: "Search research items with hybrid dense and lexical retrieval",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Natural language query",
				},
				"top_k": map[string]any{
					"type":        "integer",
					"description": "Number of results to return",
					"default":     5,
					"minimum":     1,
				},
				"mode": map[string]any{
					"type":    "string",
					"enum":    []string{"hybrid", "dense-only", "lexical-only"},
					"default": "hybrid",
				},
				"filters": filtersSchema,
			},
			Required: []string{"query"},
		},
	}
}

func similarTool() mcp.Tool {
	return mcp.Tool{
		Name:        toolSimilar,
		Description: "Find research items similar to a stored item",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"id": map[string]any{
					"type":        "integer",
					"description": "Research item id",
				},
				"top_k": map[string]any{
					"type":    "integer",
					"default": 5,
					"minimum": 1,
				},
			},
			Required: []string{"id"},
		},
	}
}

func feedbackTool() mcp.Tool {
	label := map[string]any{
		"type":        []string{"integer", "null"},
		"enum":        []any{0, 1, nil},
		"description": "1 relevant, 0 not relevant, null clears",
	}
	return mcp.Tool{
		Name:        toolFeedback,
		Description: "Record relevance feedback for a search",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"feedback_id":     map[string]any{"type": "string", "description": "Id returned by search_research"},
				"user_id":         map[string]any{"type": "string"},
				"global_feedback": label,
				"global_reason":   map[string]any{"type": []string{"string", "null"}},
				"item": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":     map[string]any{"type": "integer"},
						"label":  label,
						"reason": map[string]any{"type": []string{"string", "null"}},
					},
					"required": []string{"id", "label"},
				},
				"query":   map[string]any{"type": "string", "description": "Required when feedback_id is unknown"},
				"filters": filtersSchema,
			},
		},
	}
}
