package llm

import "strings"

// DefaultImagePrompt is used when a vision request is built without a prompt
const DefaultImagePrompt = "Describe this image in detail."

// NewVisionRequest assembles a multimodal request. Image bytes are passed
// through untouched: format checks belong to whoever offered the file, and
// transport encoding belongs to the client.
func NewVisionRequest(prompt string, image []byte, model string) (GenerationRequest, error) {
	if len(image) == 0 {
		return GenerationRequest{}, &InvalidImageError{Reason: "image data is empty"}
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultImagePrompt
	}
	return GenerationRequest{
		Model:  model,
		Prompt: prompt,
		Image:  image,
	}, nil
}

// IsVisionModel returns true if the given model name is likely vision-capable
func IsVisionModel(name string) bool {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "llava"),
		strings.Contains(n, "bakllava"),
		strings.Contains(n, "moondream"),
		strings.Contains(n, "minicpm-v"),
		strings.Contains(n, ":vision"),
		strings.Contains(n, "-vision"):
		return true
	default:
		return false
	}
}
