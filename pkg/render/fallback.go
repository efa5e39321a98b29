package render

import "fmt"

// Defaults used by the degraded-content fallback when the request did not
// carry the corresponding fields.
const (
	defaultTitle     = "Notification"
	defaultContent   = "This is a notification message"
	defaultTimestamp = "just now"
)

// FallbackDocument reduces the original request fields to a fixed markdown
// summary. It is rendered by the local strategy when both document
// strategies have failed, so the recipient still gets a best-effort image.
func FallbackDocument(fields map[string]string) string {
	title := fields["title"]
	if title == "" {
		title = defaultTitle
	}
	content := fields["content"]
	if content == "" {
		content = defaultContent
	}
	timestamp := fields["timestamp"]
	if timestamp == "" {
		timestamp = defaultTimestamp
	}

	return fmt.Sprintf(`# 📢 %s

---

%s

---

🕒 **Time**: %s

---
*Generated by renderbridge (fallback rendering)*`, title, content, timestamp)
}

// FallbackText is the plain-text rendition sent directly as a chat message
// when image delivery itself fails after a successful render.
func FallbackText(fields map[string]string) string {
	title := fields["title"]
	if title == "" {
		title = defaultTitle
	}
	content := fields["content"]
	if content == "" {
		content = defaultContent
	}
	timestamp := fields["timestamp"]
	if timestamp == "" {
		timestamp = defaultTimestamp
	}

	return fmt.Sprintf("📢 %s\n\n%s\n\n🕒 %s", title, content, timestamp)
}
