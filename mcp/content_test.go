package mcp

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
)

func TestImageContentRoundTrip(t *testing.T) {
	raw := []byte{0x89, 'P', 'N', 'G', 0x00, 0xff, 0x10, 0x7f}
	item := NewImageContent(raw, "image/png")

	if item.Type != ContentImage {
		t.Fatalf("expected image content, got %q", item.Type)
	}
	decoded, err := item.Bytes()
	if err != nil {
		t.Fatalf("decode image data: %v", err)
	}
	if !bytes.Equal(decoded, raw) {
		t.Fatalf("decoded bytes differ: %v vs %v", decoded, raw)
	}
	if reencoded := base64.StdEncoding.EncodeToString(decoded); reencoded != item.Data {
		t.Fatalf("re-encoding changed payload: %q vs %q", reencoded, item.Data)
	}
}

func TestContentMarshalPerVariant(t *testing.T) {
	textJSON, err := json.Marshal(NewTextContent(""))
	if err != nil {
		t.Fatalf("marshal text: %v", err)
	}
	if string(textJSON) != `{"type":"text","text":""}` {
		t.Fatalf("unexpected text wire shape: %s", textJSON)
	}

	imageJSON, err := json.Marshal(NewImageContent([]byte("abc"), "image/png"))
	if err != nil {
		t.Fatalf("marshal image: %v", err)
	}
	if string(imageJSON) != `{"type":"image","data":"YWJj","mimeType":"image/png"}` {
		t.Fatalf("unexpected image wire shape: %s", imageJSON)
	}

	var back Content
	if err := json.Unmarshal(imageJSON, &back); err != nil {
		t.Fatalf("unmarshal image: %v", err)
	}
	if back.Type != ContentImage || back.MIMEType != "image/png" || back.Data != "YWJj" {
		t.Fatalf("unexpected decoded content: %+v", back)
	}
}

func TestContentBytesRejectsText(t *testing.T) {
	if _, err := NewTextContent("hello").Bytes(); err == nil {
		t.Fatal("expected text content to have no binary payload")
	}
}

func TestContentValidate(t *testing.T) {
	if err := NewAudioContent([]byte("RIFF"), "audio/wav").Validate(); err != nil {
		t.Fatalf("expected valid audio content, got %v", err)
	}
	if err := (Content{Type: ContentImage, Data: "YWJj"}).Validate(); err == nil {
		t.Fatal("expected missing mimeType to fail")
	}
	if err := (Content{Type: ContentImage, Data: "%%%", MIMEType: "image/png"}).Validate(); err == nil {
		t.Fatal("expected malformed base64 to fail")
	}
	if err := (Content{Type: "video"}).Validate(); err == nil {
		t.Fatal("expected unknown content type to fail")
	}
}

func TestCallToolResultMarshalKeepsEmptyContent(t *testing.T) {
	raw, err := json.Marshal(CallToolResult{})
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	if string(raw) != `{"content":[],"isError":false}` {
		t.Fatalf("unexpected result wire shape: %s", raw)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	argErr := &ArgumentError{Tool: "multiply", Argument: "b", Reason: "missing"}
	if !errors.Is(argErr, ErrInvalidArguments) || !IsInvalidArguments(argErr) {
		t.Fatal("argument error should match ErrInvalidArguments")
	}
	if argErr.Error() != `invalid argument "b" for tool "multiply": missing` {
		t.Fatalf("unexpected message: %s", argErr.Error())
	}

	remote := NewRemoteToolError("divide", &CallToolResult{
		Content: []Content{NewTextContent("division by zero")},
		IsError: true,
	})
	if !errors.Is(remote, ErrRemoteTool) {
		t.Fatal("remote tool error should match ErrRemoteTool")
	}
	if remote.Message != "division by zero" {
		t.Fatalf("unexpected remote message: %q", remote.Message)
	}
}

func TestIsSupportedProtocolVersion(t *testing.T) {
	if !IsSupportedProtocolVersion(ProtocolVersion) {
		t.Fatal("current protocol version must be supported")
	}
	if !IsSupportedProtocolVersion("2024-11-05") {
		t.Fatal("expected 2024-11-05 to be supported")
	}
	if IsSupportedProtocolVersion("") || IsSupportedProtocolVersion("1999-01-01") {
		t.Fatal("unexpected version accepted")
	}
}
