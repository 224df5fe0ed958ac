// Package media enforces the attachment constraints applied to picker
// results before they reach the form state.
package media

import (
	"fmt"
	"path"
	"strings"

	"neurolink/pkg/types"

	"github.com/gabriel-vasile/mimetype"
)

type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindImage, "mriphoto":
		return KindImage, nil
	case KindVideo, "seizurevideo":
		return KindVideo, nil
	}
	return "", fmt.Errorf("unknown media kind %q", s)
}

// FieldName is the multipart part name the backend expects for the kind.
func (k Kind) FieldName() string {
	if k == KindVideo {
		return "seizureVideo"
	}
	return "mriPhoto"
}

func (k Kind) defaultFileName() string {
	if k == KindVideo {
		return "seizure_video.mp4"
	}
	return "mri_photo.jpg"
}

func (k Kind) defaultMimeType() string {
	if k == KindVideo {
		return "video/mp4"
	}
	return "image/jpeg"
}

const (
	MaxVideoSeconds = 300
	MaxVideoBytes   = 250 << 20
	MaxImageBytes   = 10 << 20

	// Pickers report duration either in seconds or in milliseconds.
	millisecondThreshold = 1000
)

var allowedTypes = map[Kind][]string{
	KindImage: {"image/jpeg", "image/png", "image/jpg"},
	KindVideo: {"video/mp4", "video/avi", "video/mov", "video/quicktime"},
}

var extensionTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".mp4":  "video/mp4",
	".avi":  "video/avi",
	".mov":  "video/quicktime",
}

// SelectedMedia is what a picker hands back. Zero SizeBytes or Duration
// means the picker did not report it.
type SelectedMedia struct {
	URI       string
	MimeType  string
	FileName  string
	SizeBytes int64
	Duration  float64
}

// ConstraintError is a picked file rejected by a size, duration or type rule.
type ConstraintError struct {
	Kind    Kind
	Message string
}

func (e *ConstraintError) Error() string {
	return e.Message
}

func reject(kind Kind, format string, args ...any) error {
	return &ConstraintError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// DurationSeconds normalizes a picker duration to seconds.
func DurationSeconds(d float64) float64 {
	if d > millisecondThreshold {
		return d / 1000
	}
	return d
}

// Check turns an accepted selection into an attachment.
func Check(sel SelectedMedia, kind Kind) (*types.Attachment, error) {
	if strings.TrimSpace(sel.URI) == "" {
		return nil, reject(kind, "Selected file has no location.")
	}

	switch kind {
	case KindVideo:
		if DurationSeconds(sel.Duration) > MaxVideoSeconds {
			return nil, reject(kind, "Video must be %d minutes or shorter.", MaxVideoSeconds/60)
		}
		if sel.SizeBytes > MaxVideoBytes {
			return nil, reject(kind, "Video must be smaller than %d MB.", MaxVideoBytes>>20)
		}
	case KindImage:
		if sel.SizeBytes > MaxImageBytes {
			return nil, reject(kind, "Image must be smaller than %d MB.", MaxImageBytes>>20)
		}
	default:
		return nil, reject(kind, "Unsupported media kind %q.", kind)
	}

	mimeType := normalizeMime(sel.MimeType)
	if mimeType == "" {
		mimeType = typeFromName(sel.FileName)
	}
	if mimeType == "" {
		mimeType = typeFromName(sel.URI)
	}
	if mimeType == "" {
		mimeType = kind.defaultMimeType()
	}

	if !Allowed(kind, mimeType) {
		return nil, reject(kind, "File type %s is not accepted for this field.", mimeType)
	}

	fileName := strings.TrimSpace(sel.FileName)
	if fileName == "" {
		fileName = DefaultFileName(kind, mimeType)
	}

	return &types.Attachment{
		URI:       sel.URI,
		MimeType:  mimeType,
		FileName:  fileName,
		SizeBytes: sel.SizeBytes,
	}, nil
}

// HandlePick runs Check and hands accepted media to onChange. A nil
// selection is a cancelled picker and does nothing.
func HandlePick(sel *SelectedMedia, kind Kind, onChange func(*types.Attachment)) error {
	if sel == nil {
		return nil
	}

	attachment, err := Check(*sel, kind)
	if err != nil {
		return err
	}

	if onChange != nil {
		onChange(attachment)
	}

	return nil
}

func Allowed(kind Kind, mimeType string) bool {
	for _, t := range allowedTypes[kind] {
		if t == mimeType {
			return true
		}
	}
	return false
}

// DefaultFileName names an attachment the picker left unnamed, keeping the
// extension in line with its type.
func DefaultFileName(kind Kind, mimeType string) string {
	base := kind.defaultFileName()
	if mimeType == "" || mimeType == kind.defaultMimeType() {
		return base
	}

	if m := mimetype.Lookup(mimeType); m != nil && m.Extension() != "" {
		return strings.TrimSuffix(base, path.Ext(base)) + m.Extension()
	}

	return base
}

var mimeAliases = map[string]string{
	"video/x-msvideo": "video/avi",
	"video/msvideo":   "video/avi",
}

func normalizeMime(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	if alias, ok := mimeAliases[s]; ok {
		return alias
	}
	return s
}

func typeFromName(name string) string {
	return extensionTypes[strings.ToLower(path.Ext(name))]
}
