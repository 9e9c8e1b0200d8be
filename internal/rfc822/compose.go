// Package rfc822 builds raw RFC 822 messages for the Gmail send API, which
// takes the full message as base64url-encoded bytes.
package rfc822

import (
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
	"github.com/hostwell/mailgate/internal/model"
)

const crlf = "\r\n"

// Compose renders m into raw message bytes. Single-part text/plain when HTML
// is empty after trimming, multipart/alternative (text then html) otherwise.
// Deterministic except for the multipart boundary, which is unique per call so
// it cannot collide with body content.
func Compose(m model.OutboundMessage) []byte {
	var b strings.Builder

	header := func(name, value string) {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString(crlf)
	}

	header("From", formatFrom(m.FromName, m.FromAddr))
	header("To", m.To)
	header("Subject", encodeWord(m.Subject))
	// Threading headers pass through verbatim; they are already header-safe
	// message-id forms when present.
	if v := strings.TrimSpace(m.ReplyTo); v != "" {
		header("Reply-To", v)
	}
	if v := strings.TrimSpace(m.InReplyTo); v != "" {
		header("In-Reply-To", v)
	}
	if v := strings.TrimSpace(m.References); v != "" {
		header("References", v)
	}
	header("MIME-Version", "1.0")

	html := strings.TrimSpace(m.HTML)
	if html == "" {
		header("Content-Type", `text/plain; charset="UTF-8"`)
		b.WriteString(crlf)
		b.WriteString(m.Text)
		return []byte(b.String())
	}

	boundary := "mailgate_" + uuid.NewString()
	header("Content-Type", `multipart/alternative; boundary="`+boundary+`"`)
	b.WriteString(crlf)

	b.WriteString("--" + boundary + crlf)
	header("Content-Type", `text/plain; charset="UTF-8"`)
	header("Content-Transfer-Encoding", "7bit")
	b.WriteString(crlf)
	b.WriteString(m.Text)
	b.WriteString(crlf)

	b.WriteString("--" + boundary + crlf)
	header("Content-Type", `text/html; charset="UTF-8"`)
	header("Content-Transfer-Encoding", "7bit")
	b.WriteString(crlf)
	b.WriteString(html)
	b.WriteString(crlf)

	b.WriteString("--" + boundary + "--" + crlf)
	return []byte(b.String())
}

// formatFrom keeps the address literal and encodes only the display name when
// it carries non-ASCII characters.
func formatFrom(name, addr string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return addr
	}
	return encodeWord(name) + " <" + addr + ">"
}

// encodeWord applies RFC 2047 B encoding to the whole value when any byte
// falls outside printable ASCII (0x20–0x7E); ASCII-only values pass through.
func encodeWord(s string) string {
	if isPrintableASCII(s) {
		return s
	}
	return "=?UTF-8?B?" + base64.StdEncoding.EncodeToString([]byte(s)) + "?="
}

func isPrintableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}
