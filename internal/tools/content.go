package tools

import (
	"encoding/json"
	"fmt"
)

// ContentType tags a content item.
type ContentType string

const (
	ContentText     ContentType = "text"
	ContentImage    ContentType = "image"
	ContentResource ContentType = "resource"
)

// Content is one unit of a tool call result.
type Content struct {
	Type     ContentType
	Text     string // Text, or the body of an embedded text resource
	Data     []byte // Image bytes
	MIMEType string
	URI      string // Embedded resource URI
}

// TextContent returns a text item.
func TextContent(text string) Content {
	return Content{Type: ContentText, Text: text}
}

// ImageContent returns an image item.
func ImageContent(data []byte, mimeType string) Content {
	return Content{Type: ContentImage, Data: data, MIMEType: mimeType}
}

// ResourceContent returns an embedded text resource item.
func ResourceContent(uri, mimeType, text string) Content {
	return Content{Type: ContentResource, URI: uri, MIMEType: mimeType, Text: text}
}

// CallResult is the normalized outcome of a tool call.
type CallResult struct {
	Content    []Content
	Structured map[string]any // Set when the handler returned a mapping
	IsError    bool           // The handler failed; Content describes the failure
}

// Texts returns the text of every text item, in order.
func (r *CallResult) Texts() []string {
	var out []string
	for _, c := range r.Content {
		if c.Type == ContentText {
			out = append(out, c.Text)
		}
	}
	return out
}

// Normalize converts a handler return value into a CallResult.
//
// A string becomes one text item and a []string one item per string. A mapping is
// kept as structured content with its indented JSON as the text item. Content
// values pass through, nil yields no items and anything else is formatted as text.
func Normalize(value any) *CallResult {
	switch v := value.(type) {
	case nil:
		return &CallResult{Content: []Content{}}
	case *CallResult:
		return v
	case string:
		return &CallResult{Content: []Content{TextContent(v)}}
	case []string:
		content := make([]Content, 0, len(v))
		for _, s := range v {
			content = append(content, TextContent(s))
		}
		return &CallResult{Content: content}
	case Content:
		return &CallResult{Content: []Content{v}}
	case []Content:
		return &CallResult{Content: v}
	case map[string]any:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return &CallResult{Content: []Content{TextContent(fmt.Sprint(v))}, Structured: v}
		}
		return &CallResult{Content: []Content{TextContent(string(data))}, Structured: v}
	case fmt.Stringer:
		return &CallResult{Content: []Content{TextContent(v.String())}}
	default:
		return &CallResult{Content: []Content{TextContent(fmt.Sprint(v))}}
	}
}
