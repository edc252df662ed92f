// Package validation checks candidate posts and image uploads before they
// reach the record store.
package validation

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// MaxImageBytes is the largest accepted image upload (1 MiB).
const MaxImageBytes = 1024 * 1024

var imageTypePattern = regexp.MustCompile(`^image/(jpeg|jpg|png)$`)

// ErrImageConstraint matches every ImageConstraintError via errors.Is.
var ErrImageConstraint = errors.New("image constraint violated")

// PostInput is the editable text of a candidate post.
type PostInput struct {
	Title       string
	Description string
	Content     string
	Category    string
}

// Errors maps a field name to a human readable message.
type Errors map[string]string

// Err returns nil when there are no field errors.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return &ValidationError{Fields: e}
}

// ValidationError rejects a candidate post; it must not be committed.
type ValidationError struct {
	Fields Errors
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ValidatePost reports every required field that is missing or blank.
func ValidatePost(in PostInput) Errors {
	errs := Errors{}
	if strings.TrimSpace(in.Title) == "" {
		errs["title"] = "Title is required"
	}
	if strings.TrimSpace(in.Description) == "" {
		errs["description"] = "Description is required"
	}
	if strings.TrimSpace(in.Content) == "" {
		errs["content"] = "Content is required"
	}
	if strings.TrimSpace(in.Category) == "" {
		errs["category"] = "Please select a category"
	}
	return errs
}

// ImageFile describes an upload by its declared media type and size.
type ImageFile struct {
	ContentType string
	Size        int64
}

// ImageConstraintError blocks attaching an image but not the rest of the form.
type ImageConstraintError struct {
	ContentType string
	Size        int64
	Reason      string
}

func (e *ImageConstraintError) Error() string {
	return fmt.Sprintf("image rejected (%s, %d bytes): %s", e.ContentType, e.Size, e.Reason)
}

func (e *ImageConstraintError) Is(target error) bool { return target == ErrImageConstraint }

// ValidateImage accepts JPEG or PNG media up to MaxImageBytes.
func ValidateImage(f ImageFile) error {
	ct := strings.ToLower(strings.TrimSpace(f.ContentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if !imageTypePattern.MatchString(ct) {
		return &ImageConstraintError{ContentType: f.ContentType, Size: f.Size, Reason: "Only JPG/PNG files up to 1MB are allowed"}
	}
	if f.Size < 0 || f.Size > MaxImageBytes {
		return &ImageConstraintError{ContentType: f.ContentType, Size: f.Size, Reason: "Only JPG/PNG files up to 1MB are allowed"}
	}
	return nil
}

// ImageDataURI embeds raw image bytes as a data URI suitable for Post.Image.
func ImageDataURI(contentType string, data []byte) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "image/jpg" {
		ct = "image/jpeg"
	}
	return "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(data)
}
