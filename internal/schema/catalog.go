package schema

import (
	"regexp"

	"github.com/qolaba/qolaba-mcp-go/internal/reqcontext"
)

// Operation names exposed through the tool surface.
const (
	OpTextToImage       = "text_to_image"
	OpImageToImage      = "image_to_image"
	OpInpainting        = "inpainting"
	OpReplaceBackground = "replace_background"
	OpTextToSpeech      = "text_to_speech"
	OpChat              = "chat"
	OpStreamChat        = "stream_chat"
	OpStoreVectorDB     = "store_vector_db"
	OpTaskStatus        = "task_status"
	OpPricing           = "pricing"
)

var collectionNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// chatFields is shared by chat and stream_chat; only the endpoint differs.
func chatFields() []Field {
	return []Field{
		{Name: "messages", Type: TypeMessages, Required: true, Description: "Conversation messages, each {role, content}"},
		{Name: "model", Type: TypeString, Description: "Chat model to use"},
		{Name: "temperature", Type: TypeFloat, Min: f64(0), Max: f64(2), Description: "Response creativity (0..2)"},
		{Name: "max_tokens", Type: TypeInt, Min: f64(1), Description: "Maximum response tokens"},
	}
}

// Catalog returns the full operation table keyed by operation name.
// Constructed once at startup and treated as immutable.
func Catalog() map[string]*OperationSpec {
	specs := []*OperationSpec{
		{
			Name: OpTextToImage, Path: "/text-to-image", Method: "POST",
			Body: BodyJSON, Response: ResponseAsyncTask,
			Fields: []Field{
				{Name: "prompt", Type: TypeString, Required: true, MinLen: 1, MaxLen: 4000, Description: "Text description of the image to generate"},
				{Name: "model", Type: TypeString, Description: "Model to use for generation"},
				{Name: "width", Type: TypeInt, Min: f64(64), Max: f64(4096), Description: "Image width in pixels (64..4096)"},
				{Name: "height", Type: TypeInt, Min: f64(64), Max: f64(4096), Description: "Image height in pixels (64..4096)"},
				{Name: "steps", Type: TypeInt, Min: f64(1), Max: f64(150), Description: "Number of inference steps (1..150)"},
				{Name: "guidance_scale", Type: TypeFloat, Min: f64(0), Max: f64(50), Description: "Guidance scale (0..50)"},
				{Name: "seed", Type: TypeInt, Description: "Random seed for reproducibility"},
				{Name: "negative_prompt", Type: TypeString, Description: "What to avoid in the image"},
			},
		},
		{
			Name: OpImageToImage, Path: "/image-to-image", Method: "POST",
			Body: BodyMultipart, Response: ResponseAsyncTask,
			Fields: []Field{
				{Name: "image", Type: TypeBytes, Required: true, File: true, Description: "Source image (base64 or raw bytes)"},
				{Name: "prompt", Type: TypeString, Required: true, MinLen: 1, Description: "Text description of the transformation"},
				{Name: "strength", Type: TypeFloat, Min: f64(0), Max: f64(1), Description: "Transformation strength (0..1)"},
				{Name: "guidance_scale", Type: TypeFloat, Min: f64(0), Max: f64(50), Description: "Guidance scale (0..50)"},
				{Name: "steps", Type: TypeInt, Min: f64(1), Max: f64(150), Description: "Number of inference steps (1..150)"},
				{Name: "seed", Type: TypeInt, Description: "Random seed for reproducibility"},
			},
		},
		{
			Name: OpInpainting, Path: "/inpainting", Method: "POST",
			Body: BodyMultipart, Response: ResponseAsyncTask,
			Fields: []Field{
				{Name: "image", Type: TypeBytes, Required: true, File: true, Description: "Source image (base64 or raw bytes)"},
				{Name: "mask", Type: TypeBytes, Required: true, File: true, Description: "Mask image (base64 or raw bytes)"},
				{Name: "prompt", Type: TypeString, Required: true, MinLen: 1, Description: "Text description of what to paint"},
				{Name: "guidance_scale", Type: TypeFloat, Min: f64(0), Max: f64(50), Description: "Guidance scale (0..50)"},
				{Name: "steps", Type: TypeInt, Min: f64(1), Max: f64(150), Description: "Number of inference steps (1..150)"},
				{Name: "seed", Type: TypeInt, Description: "Random seed for reproducibility"},
			},
		},
		{
			Name: OpReplaceBackground, Path: "/replace-background", Method: "POST",
			Body: BodyMultipart, Response: ResponseAsyncTask,
			Fields: []Field{
				{Name: "image", Type: TypeBytes, Required: true, File: true, Description: "Source image (base64 or raw bytes)"},
				{Name: "background_prompt", Type: TypeString, Description: "Text description of the new background"},
				{Name: "background_image", Type: TypeBytes, File: true, Description: "Replacement background image"},
				{Name: "mask_threshold", Type: TypeFloat, Min: f64(0), Max: f64(1), Description: "Mask threshold (0..1)"},
			},
		},
		{
			Name: OpTextToSpeech, Path: "/text-to-speech", Method: "POST",
			Body: BodyJSON, Response: ResponseAsyncTask,
			Fields: []Field{
				{Name: "text", Type: TypeString, Required: true, MinLen: 1, MaxLen: 10000, Description: "Text to convert to speech"},
				{Name: "voice", Type: TypeString, Description: "Voice to use"},
				{Name: "language", Type: TypeString, Description: "Language code"},
				{Name: "speed", Type: TypeFloat, Min: f64(0.25), Max: f64(4), Description: "Speech speed (0.25..4)"},
				{Name: "pitch", Type: TypeFloat, Description: "Voice pitch adjustment"},
			},
		},
		{
			Name: OpChat, Path: "/chat", Method: "POST",
			Body: BodyJSON, Response: ResponseSyncResult,
			Fields: chatFields(),
		},
		{
			Name: OpStreamChat, Path: "/streamchat", Method: "POST",
			Body: BodyJSON, Response: ResponseSyncResult,
			Fields: chatFields(),
		},
		{
			Name: OpStoreVectorDB, Path: "/store-file-in-vector-database", Method: "POST",
			Body: BodyMultipart, Response: ResponseSyncResult,
			Fields: []Field{
				{Name: "file", Type: TypeBytes, Required: true, File: true, Description: "File content to ingest (base64 or raw bytes)"},
				{Name: "collection_name", Type: TypeString, Required: true, MinLen: 1, Pattern: collectionNamePattern, Description: "Vector collection name (letters, digits, underscores, hyphens)"},
				{Name: "metadata", Type: TypeMap, Description: "File metadata"},
				{Name: "chunk_size", Type: TypeInt, Min: f64(1), Description: "Text chunk size"},
				{Name: "overlap", Type: TypeInt, Min: f64(0), Description: "Chunk overlap; must be less than chunk_size"},
			},
			Check: checkOverlap,
		},
		{
			Name: OpTaskStatus, Path: "/task-status/{task_id}", Method: "GET",
			Body: BodyNone, Response: ResponseSyncResult,
			Fields: []Field{
				{Name: "task_id", Type: TypeString, Required: true, PathParam: true, Description: "Task identifier (UUID)"},
			},
			Check: checkTaskID,
		},
		{
			Name: OpPricing, Path: "/pricing", Method: "GET",
			Body: BodyNone, Response: ResponseSyncResult,
		},
	}

	catalog := make(map[string]*OperationSpec, len(specs))
	for _, s := range specs {
		catalog[s.Name] = s
	}
	return catalog
}

// checkOverlap enforces overlap < chunk_size when both are present. The
// upstream default chunk size applies when chunk_size is omitted, so an
// overlap on its own is accepted.
func checkOverlap(args map[string]any) []Issue {
	overlap, okO := args["overlap"].(int64)
	size, okS := args["chunk_size"].(int64)
	if okO && okS && overlap >= size {
		return []Issue{{
			Path:    "overlap",
			Message: "overlap must be less than chunk_size",
			Code:    CodeConstraint,
		}}
	}
	return nil
}

func checkTaskID(args map[string]any) []Issue {
	id, _ := args["task_id"].(string)
	if id == "" {
		return nil // required check already reported it
	}
	if !reqcontext.IsUUID(id) {
		return []Issue{{
			Path:    "task_id",
			Message: "task_id must be a UUID",
			Code:    CodeInvalidFormat,
		}}
	}
	return nil
}
