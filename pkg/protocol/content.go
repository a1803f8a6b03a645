package protocol

import "fmt"

// Content types carried by tool results, prompt messages and sampling messages
const (
	ContentTypeText     = "text"
	ContentTypeImage    = "image"
	ContentTypeAudio    = "audio"
	ContentTypeResource = "resource"
)

// Role identifies the speaker of a prompt or sampling message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Content is a single content block. Which fields are set depends on Type.
type Content struct {
	Type     string            `json:"type"`
	Text     string            `json:"text,omitempty"`
	Data     string            `json:"data,omitempty"`
	MimeType string            `json:"mimeType,omitempty"`
	Resource *ResourceContents `json:"resource,omitempty"`
}

// TextContent builds a text content block
func TextContent(text string) Content {
	return Content{Type: ContentTypeText, Text: text}
}

// String renders the content block as human readable text
func (c Content) String() string {
	switch c.Type {
	case ContentTypeText:
		return c.Text
	case ContentTypeImage, ContentTypeAudio:
		return fmt.Sprintf("[%s %s, %d bytes base64]", c.Type, c.MimeType, len(c.Data))
	case ContentTypeResource:
		if c.Resource == nil {
			return "[resource]"
		}
		if c.Resource.Text != "" {
			return c.Resource.Text
		}
		return fmt.Sprintf("[resource %s]", c.Resource.URI)
	default:
		return fmt.Sprintf("[%s]", c.Type)
	}
}
