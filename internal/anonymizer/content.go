package anonymizer

// Content is the anonymization result for one uploaded document. Text
// documents come back as redacted text; scanned documents (images, image-only
// PDFs) come back as a redacted image to be scored visually.
type Content struct {
	Type         string
	OriginalType string
	Text         string
	PIIFound     []string
	Image        []byte
	ImageMime    string
}

const (
	TypeText  = "text"
	TypeImage = "image"
)

// IsImage reports whether the redacted document must be scored as an image.
func (c Content) IsImage() bool {
	return c.Type == TypeImage
}
