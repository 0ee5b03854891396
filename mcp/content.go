package mcp

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

type ContentType string

// Content item kinds
const (
	ContentText  ContentType = "text"
	ContentImage ContentType = "image"
	ContentAudio ContentType = "audio"
)

// Content is one typed unit of a tool result. Type selects which fields are
// meaningful: Text for text items, Data (base64) and MIMEType for binary items.
type Content struct {
	Type     ContentType `json:"type"`
	Text     string      `json:"text,omitempty"`
	Data     string      `json:"data,omitempty"`
	MIMEType string      `json:"mimeType,omitempty"`
}

// NewTextContent creates a text item.
func NewTextContent(text string) Content {
	return Content{Type: ContentText, Text: text}
}

// NewImageContent base64-encodes raw under the given MIME type.
func NewImageContent(raw []byte, mimeType string) Content {
	return Content{
		Type:     ContentImage,
		Data:     base64.StdEncoding.EncodeToString(raw),
		MIMEType: mimeType,
	}
}

// NewAudioContent base64-encodes raw under the given MIME type.
func NewAudioContent(raw []byte, mimeType string) Content {
	return Content{
		Type:     ContentAudio,
		Data:     base64.StdEncoding.EncodeToString(raw),
		MIMEType: mimeType,
	}
}

// IsBinary reports whether the item carries base64 data.
func (c Content) IsBinary() bool {
	return c.Type == ContentImage || c.Type == ContentAudio
}

// Bytes decodes the base64 payload of a binary item.
func (c Content) Bytes() ([]byte, error) {
	if !c.IsBinary() {
		return nil, fmt.Errorf("content of type %q has no binary payload", c.Type)
	}
	raw, err := base64.StdEncoding.DecodeString(c.Data)
	if err != nil {
		return nil, fmt.Errorf("decode %s data: %w", c.Type, err)
	}
	return raw, nil
}

// Validate checks that the fields required by the item's type are present.
func (c Content) Validate() error {
	switch c.Type {
	case ContentText:
		return nil
	case ContentImage, ContentAudio:
		if c.MIMEType == "" {
			return fmt.Errorf("%s content requires a mimeType", c.Type)
		}
		if _, err := base64.StdEncoding.DecodeString(c.Data); err != nil {
			return fmt.Errorf("%s content data is not base64: %w", c.Type, err)
		}
		return nil
	default:
		return fmt.Errorf("unknown content type %q", c.Type)
	}
}

// MarshalJSON writes only the fields of the item's variant; text items always
// carry "text", even when empty.
func (c Content) MarshalJSON() ([]byte, error) {
	switch c.Type {
	case ContentText:
		return json.Marshal(struct {
			Type ContentType `json:"type"`
			Text string      `json:"text"`
		}{c.Type, c.Text})
	case ContentImage, ContentAudio:
		return json.Marshal(struct {
			Type     ContentType `json:"type"`
			Data     string      `json:"data"`
			MIMEType string      `json:"mimeType"`
		}{c.Type, c.Data, c.MIMEType})
	default:
		type alias Content
		return json.Marshal(alias(c))
	}
}
