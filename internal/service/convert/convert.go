// Package convert maps text between script variants of written Chinese.
package convert

import (
	"fmt"
	"strings"

	"github.com/longbridgeapp/opencc"
)

// SchemeNone disables conversion.
const SchemeNone = "none"

// Converter maps a piece of text to the target script variant.
type Converter interface {
	Convert(text string) (string, error)
}

// Identity returns its input unchanged.
type Identity struct{}

// Convert implements Converter.
func (Identity) Convert(text string) (string, error) {
	return text, nil
}

// OpenCC converts with an OpenCC dictionary chain such as s2twp (simplified to Taiwan
// traditional with Taiwanese phrasing).
type OpenCC struct {
	cc *opencc.OpenCC
}

// NewOpenCC loads the dictionaries for scheme.
func NewOpenCC(scheme string) (*OpenCC, error) {
	cc, err := opencc.New(scheme)
	if err != nil {
		return nil, fmt.Errorf("failed to load opencc scheme %q: %w", scheme, err)
	}
	return &OpenCC{cc: cc}, nil
}

// Convert implements Converter.
func (c *OpenCC) Convert(text string) (string, error) {
	if text == "" {
		return "", nil
	}
	return c.cc.Convert(text)
}

// New returns the converter for scheme; "none" or an empty scheme yields Identity.
func New(scheme string) (Converter, error) {
	scheme = strings.ToLower(strings.TrimSpace(scheme))
	if scheme == "" || scheme == SchemeNone {
		return Identity{}, nil
	}
	return NewOpenCC(scheme)
}
