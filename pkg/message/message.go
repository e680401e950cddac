// Package message defines the outbound directives the engine produces and
// the transports deliver, in order.
package message

// Kind distinguishes directive payloads.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Directive is one outbound message. Text directives carry Text; image
// directives carry a non-empty URL and a preview URL.
type Directive struct {
	Kind       Kind   `json:"type"`
	Text       string `json:"text,omitempty"`
	URL        string `json:"url,omitempty"`
	PreviewURL string `json:"preview_url,omitempty"`
}

// Text returns a text directive.
func Text(body string) Directive {
	return Directive{Kind: KindText, Text: body}
}

// Image returns an image directive that uses url for both the full image
// and its preview.
func Image(url string) Directive {
	return Directive{Kind: KindImage, URL: url, PreviewURL: url}
}

// Builder accumulates directives, dropping empty text and images without
// a URL so optional level fields can be appended unconditionally.
type Builder struct {
	directives []Directive
}

// Text appends a text directive when body is not empty.
func (b *Builder) Text(body string) *Builder {
	if body != "" {
		b.directives = append(b.directives, Text(body))
	}
	return b
}

// Image appends an image directive when url is not empty.
func (b *Builder) Image(url string) *Builder {
	if url != "" {
		b.directives = append(b.directives, Image(url))
	}
	return b
}

// Build returns the accumulated directives.
func (b *Builder) Build() []Directive {
	return b.directives
}
