package session

import (
	"regexp"
	"strings"
)

// maxFileSize is the hard ceiling on reported file size: 100 GiB (§4.C).
const maxFileSize = 100 * (1 << 30)

// maxFilenameBytes and maxMIMEBytes bound the sanitized/normalized field
// lengths persisted by the repository (§4.C).
const (
	maxFilenameBytes = 255
	maxMIMEBytes     = 100
)

// sessionIDPattern matches the canonical 36-char hyphenated hex UUID form
// used as a session identifier (§4.C, §3).
var sessionIDPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// unsafeFilenameChars is the set of characters replaced with '_' during
// filename sanitization, beyond the explicit ".." substring removal (§4.C).
const unsafeFilenameChars = `<>:"|?*/\`

// blockedExtensions is the glossary's blocked-extension set: executables,
// scripts, installers, shortcuts.
var blockedExtensions = map[string]bool{
	"exe": true, "dll": true, "bat": true, "cmd": true, "com": true,
	"scr": true, "pif": true, "vbs": true, "js": true, "jse": true,
	"wsf": true, "wsh": true, "msi": true, "msp": true, "hta": true,
	"cpl": true, "jar": true, "ps1": true, "psm1": true, "reg": true,
	"vb": true, "vbe": true, "ws": true, "application": true,
	"gadget": true, "msc": true, "lnk": true,
}

// suspiciousMIMETypes is the glossary's suspicious-MIME set.
var suspiciousMIMETypes = []string{
	"application/x-msdownload",
	"application/x-msdos-program",
	"application/x-executable",
	"application/x-bat",
	"application/x-sh",
	"text/x-script.python",
}

// ValidationResult is the tagged result of a Validator call (§4.C). Callers
// MUST check Valid before using any other field.
type ValidationResult struct {
	Valid     bool
	Sanitized string
	Error     error
	Dangerous bool
	Warning   string
}

// Validator normalizes and accepts/rejects the fields carried by inbound
// events. It holds no state and is safe for concurrent use.
type Validator struct{}

// NewValidator constructs a Validator. It has no dependencies.
func NewValidator() *Validator {
	return &Validator{}
}

// Filename sanitizes and validates a candidate filename per §4.C: strip any
// ".." substrings, replace path separators, the characters <>:"|?* and
// control bytes with '_', truncate to 255 bytes, and reject if empty.
func (v *Validator) Filename(name string) ValidationResult {
	if name == "" {
		return ValidationResult{Error: ErrEmptyFilename}
	}

	sanitized := strings.ReplaceAll(name, "..", "")
	sanitized = sanitizeFilenameChars(sanitized)

	if len(sanitized) > maxFilenameBytes {
		sanitized = sanitized[:maxFilenameBytes]
	}

	if sanitized == "" {
		return ValidationResult{Error: ErrFilenameSanitized}
	}

	dangerous, warning := classifyExtension(sanitized)

	return ValidationResult{
		Valid:     true,
		Sanitized: sanitized,
		Dangerous: dangerous,
		Warning:   warning,
	}
}

func sanitizeFilenameChars(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r < 0x20:
			b.WriteByte('_')
		case strings.ContainsRune(unsafeFilenameChars, r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// classifyExtension implements the extension-danger rule of §4.C, including
// the double-extension case (e.g. "invoice.pdf.exe").
func classifyExtension(name string) (dangerous bool, warning string) {
	segments := strings.Split(name, ".")
	if len(segments) < 2 {
		return false, ""
	}

	last := strings.ToLower(segments[len(segments)-1])
	if blockedExtensions[last] {
		return true, "file extension ." + last + " is commonly associated with executable content"
	}

	if len(segments) >= 3 {
		secondToLast := strings.ToLower(segments[len(segments)-2])
		if blockedExtensions[secondToLast] {
			return true, "filename uses a double extension (." + secondToLast + "." + last + ") commonly used to disguise executables"
		}
	}

	return false, ""
}

// Size validates a reported file size per §4.C: a non-negative integer,
// non-zero, not exceeding 100 GiB.
func (v *Validator) Size(size int64) ValidationResult {
	if size <= 0 || size > maxFileSize {
		return ValidationResult{Error: ErrSizeOutOfRange}
	}
	return ValidationResult{Valid: true}
}

// MIMEType normalizes and flags a reported MIME type per §4.C: non-empty,
// truncated to 100 bytes, lowercased. A substring match against the
// suspicious list sets Dangerous but never fails validation.
func (v *Validator) MIMEType(mime string) ValidationResult {
	if mime == "" {
		return ValidationResult{Error: ErrEmptyMIMEType}
	}

	normalized := strings.ToLower(mime)
	if len(normalized) > maxMIMEBytes {
		normalized = normalized[:maxMIMEBytes]
	}

	for _, suspicious := range suspiciousMIMETypes {
		if strings.Contains(normalized, suspicious) {
			return ValidationResult{
				Valid:     true,
				Sanitized: normalized,
				Dangerous: true,
				Warning:   "mime type " + normalized + " is associated with executable content",
			}
		}
	}

	return ValidationResult{Valid: true, Sanitized: normalized}
}

// SessionID validates a session identifier against the canonical UUID-like
// pattern of §4.C.
func (v *Validator) SessionID(id string) ValidationResult {
	if !sessionIDPattern.MatchString(strings.ToLower(id)) {
		return ValidationResult{Error: ErrInvalidSessionID}
	}
	return ValidationResult{Valid: true, Sanitized: strings.ToLower(id)}
}

// EndpointID validates an endpoint identifier: any non-empty string (§4.C).
func (v *Validator) EndpointID(id string) ValidationResult {
	if id == "" {
		return ValidationResult{Error: ErrEmptyEndpointID}
	}
	return ValidationResult{Valid: true, Sanitized: id}
}
