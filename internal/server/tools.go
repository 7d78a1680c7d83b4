package server

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/qolaba/qolaba-mcp-go/internal/schema"
)

// toolDescriptions holds the caller-facing summary for each operation.
var toolDescriptions = map[string]string{
	schema.OpTextToImage:       "Generate an image from a text prompt. Returns a task id; poll task_status for the result.",
	schema.OpImageToImage:      "Transform an existing image guided by a text prompt. Returns a task id; poll task_status for the result.",
	schema.OpInpainting:        "Repaint the masked region of an image according to a prompt. Returns a task id; poll task_status for the result.",
	schema.OpReplaceBackground: "Replace the background of an image with a generated or supplied one. Returns a task id; poll task_status for the result.",
	schema.OpTextToSpeech:      "Convert text to spoken audio. Returns a task id; poll task_status for the result.",
	schema.OpChat:              "Send a chat conversation and receive the complete reply.",
	schema.OpStreamChat:        "Send a chat conversation; the streamed reply is aggregated into one complete response.",
	schema.OpStoreVectorDB:     "Ingest a file into a named vector database collection for retrieval.",
	schema.OpTaskStatus:        "Look up the status and result of a previously started task by its UUID.",
	schema.OpPricing:           "Fetch the current pricing table for all operations.",
}

// toolFromSpec translates one catalog entry into an MCP tool declaration.
// The declared schema mirrors the validator's field table so clients see the
// same constraints the server enforces.
func toolFromSpec(name string, spec *schema.OperationSpec) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(toolDescriptions[name]),
	}
	for i := range spec.Fields {
		opts = append(opts, fieldOption(&spec.Fields[i]))
	}
	return mcp.NewTool(name, opts...)
}

func fieldOption(f *schema.Field) mcp.ToolOption {
	var props []mcp.PropertyOption
	props = append(props, mcp.Description(f.Description))
	if f.Required {
		props = append(props, mcp.Required())
	}

	switch f.Type {
	case schema.TypeInt, schema.TypeFloat:
		if f.Min != nil {
			props = append(props, mcp.Min(*f.Min))
		}
		if f.Max != nil {
			props = append(props, mcp.Max(*f.Max))
		}
		return mcp.WithNumber(f.Name, props...)
	case schema.TypeBytes:
		// Bytes travel as base64 strings over the tool protocol.
		return mcp.WithString(f.Name, props...)
	case schema.TypeMap:
		return mcp.WithObject(f.Name, props...)
	case schema.TypeMessages:
		return mcp.WithArray(f.Name, props...)
	default:
		if f.MinLen > 0 {
			props = append(props, mcp.MinLength(f.MinLen))
		}
		if f.MaxLen > 0 {
			props = append(props, mcp.MaxLength(f.MaxLen))
		}
		if f.Pattern != nil {
			props = append(props, mcp.Pattern(f.Pattern.String()))
		}
		return mcp.WithString(f.Name, props...)
	}
}
