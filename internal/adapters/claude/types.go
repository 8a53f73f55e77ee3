package claude

// Message is one turn of the model conversation. Content is either a plain
// string or a []ContentBlock for multimodal turns.
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// Roles accepted by the messages API.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ContentBlock is one element of a multimodal message.
type ContentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *ImageSource `json:"source,omitempty"`
}

// ImageSource describes where an image block's bytes come from.
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// TextBlock builds a plain text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: "text", Text: text}
}

// ImageBase64Block builds an inline image block from base64 data.
func ImageBase64Block(mediaType, data string) ContentBlock {
	return ContentBlock{
		Type:   "image",
		Source: &ImageSource{Type: "base64", MediaType: mediaType, Data: data},
	}
}

// ImageURLBlock builds an image block the API fetches itself.
func ImageURLBlock(url string) ContentBlock {
	return ContentBlock{
		Type:   "image",
		Source: &ImageSource{Type: "url", URL: url},
	}
}

type generateRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
}

type generateResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Reply is the model's answer plus the token usage the credit guard bills.
type Reply struct {
	Content      string
	InputTokens  int
	OutputTokens int
}
