package rfc822

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"

	"github.com/hostwell/mailgate/internal/model"
)

func TestCompose_SinglePartPlainText(t *testing.T) {
	raw := Compose(model.OutboundMessage{
		FromName: "Jordan Lee",
		FromAddr: "jordan@example.com",
		To:       "buyer@example.com",
		Subject:  "Hello",
		Text:     "Thanks for visiting the open house.",
	})

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("parse message: %v", err)
	}
	ct := msg.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		t.Fatalf("parse content-type %q: %v", ct, err)
	}
	if mediaType != "text/plain" {
		t.Fatalf("media type = %q, want text/plain", mediaType)
	}
	if msg.Header.Get("Subject") != "Hello" {
		t.Fatalf("ascii subject must pass through verbatim, got %q", msg.Header.Get("Subject"))
	}
	body, _ := io.ReadAll(msg.Body)
	if string(body) != "Thanks for visiting the open house." {
		t.Fatalf("body = %q", body)
	}
	if strings.Contains(string(raw), "--mailgate_") {
		t.Fatal("single-part message must not contain boundary markers")
	}
}

func TestCompose_MultipartAlternativeTextThenHTML(t *testing.T) {
	raw := Compose(model.OutboundMessage{
		FromAddr: "agent@example.com",
		To:       "buyer@example.com",
		Subject:  "Open house Sunday",
		Text:     "plain version",
		HTML:     "<p>html version</p>",
	})

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("parse message: %v", err)
	}
	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil {
		t.Fatalf("parse content-type: %v", err)
	}
	if mediaType != "multipart/alternative" {
		t.Fatalf("media type = %q, want multipart/alternative", mediaType)
	}
	if params["boundary"] == "" {
		t.Fatal("missing boundary param")
	}

	mr := multipart.NewReader(msg.Body, params["boundary"])

	p1, err := mr.NextPart()
	if err != nil {
		t.Fatalf("first part: %v", err)
	}
	if got := p1.Header.Get("Content-Type"); !strings.HasPrefix(got, "text/plain") {
		t.Fatalf("first part content-type = %q, want text/plain", got)
	}
	b1, _ := io.ReadAll(p1)
	if strings.TrimRight(string(b1), "\r\n") != "plain version" {
		t.Fatalf("first part body = %q", b1)
	}

	p2, err := mr.NextPart()
	if err != nil {
		t.Fatalf("second part: %v", err)
	}
	if got := p2.Header.Get("Content-Type"); !strings.HasPrefix(got, "text/html") {
		t.Fatalf("second part content-type = %q, want text/html", got)
	}
	b2, _ := io.ReadAll(p2)
	if strings.TrimRight(string(b2), "\r\n") != "<p>html version</p>" {
		t.Fatalf("second part body = %q", b2)
	}

	if _, err := mr.NextPart(); err != io.EOF {
		t.Fatalf("expected exactly two parts, got extra part (err=%v)", err)
	}
}

func TestCompose_BlankHTMLFallsBackToSinglePart(t *testing.T) {
	raw := Compose(model.OutboundMessage{
		FromAddr: "agent@example.com",
		To:       "b@example.com",
		Subject:  "s",
		Text:     "t",
		HTML:     "   \n ",
	})
	if bytes.Contains(raw, []byte("multipart")) {
		t.Fatal("whitespace-only html must produce a single-part message")
	}
}

func TestCompose_NonASCIISubjectUsesRFC2047B(t *testing.T) {
	const subject = "很高兴见到您"
	raw := Compose(model.OutboundMessage{
		FromAddr: "agent@example.com",
		To:       "b@example.com",
		Subject:  subject,
		Text:     "hi",
	})

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("parse message: %v", err)
	}
	encoded := msg.Header.Get("Subject")
	if !strings.HasPrefix(encoded, "=?UTF-8?B?") || !strings.HasSuffix(encoded, "?=") {
		t.Fatalf("subject = %q, want =?UTF-8?B?...?= form", encoded)
	}
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(encoded)
	if err != nil {
		t.Fatalf("decode subject: %v", err)
	}
	if decoded != subject {
		t.Fatalf("decoded subject = %q, want %q", decoded, subject)
	}
}

func TestCompose_FromDisplayNameEncodedAddressLiteral(t *testing.T) {
	raw := Compose(model.OutboundMessage{
		FromName: "陈静",
		FromAddr: "chen@example.com",
		To:       "b@example.com",
		Subject:  "s",
		Text:     "t",
	})
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("parse message: %v", err)
	}
	from := msg.Header.Get("From")
	if !strings.Contains(from, "<chen@example.com>") {
		t.Fatalf("address portion must stay literal, got %q", from)
	}
	if !strings.HasPrefix(from, "=?UTF-8?B?") {
		t.Fatalf("display name must be B-encoded, got %q", from)
	}
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(from)
	if err != nil {
		t.Fatalf("decode from: %v", err)
	}
	if decoded != "陈静 <chen@example.com>" {
		t.Fatalf("decoded from = %q", decoded)
	}
}

func TestCompose_OptionalThreadingHeaders(t *testing.T) {
	raw := Compose(model.OutboundMessage{
		FromAddr:   "a@example.com",
		To:         "b@example.com",
		Subject:    "re: visit",
		Text:       "t",
		InReplyTo:  "<abc@mail.gmail.com>",
		References: "<abc@mail.gmail.com>",
	})
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("parse message: %v", err)
	}
	if msg.Header.Get("In-Reply-To") != "<abc@mail.gmail.com>" {
		t.Fatalf("In-Reply-To = %q", msg.Header.Get("In-Reply-To"))
	}
	if msg.Header.Get("References") != "<abc@mail.gmail.com>" {
		t.Fatalf("References = %q", msg.Header.Get("References"))
	}

	// Absent when not provided.
	raw = Compose(model.OutboundMessage{FromAddr: "a@example.com", To: "b@example.com", Subject: "s", Text: "t"})
	msg, _ = mail.ReadMessage(bytes.NewReader(raw))
	if msg.Header.Get("In-Reply-To") != "" || msg.Header.Get("Reply-To") != "" {
		t.Fatal("optional headers must be omitted when empty")
	}
}

func TestCompose_CRLFHeaderDiscipline(t *testing.T) {
	raw := string(Compose(model.OutboundMessage{FromAddr: "a@example.com", To: "b@example.com", Subject: "s", Text: "body"}))
	headerEnd := strings.Index(raw, "\r\n\r\n")
	if headerEnd < 0 {
		t.Fatal("missing CRLF blank line between headers and body")
	}
	for _, line := range strings.Split(raw[:headerEnd], "\r\n") {
		if strings.ContainsAny(line, "\n") {
			t.Fatalf("bare newline in header line %q", line)
		}
	}
}
