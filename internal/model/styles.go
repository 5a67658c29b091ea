package model

import (
	"fmt"
	"strings"
)

// Tags whose appearance a project controls, in stylesheet order.
var StyleTags = []string{"h1", "h2", "h3", "p"}

// Style properties accepted by SetStyle.
const (
	PropFontFamily = "fontFamily"
	PropFontSize   = "fontSize"
	PropColor      = "color"
)

// FontFamilies lists the families offered by the editor.
var FontFamilies = []string{
	"Georgia, serif",
	"Arial, sans-serif",
	"Verdana, sans-serif",
	"Times New Roman, serif",
}

// StyleRule is the typography applied to one tag.
type StyleRule struct {
	FontFamily string `json:"fontFamily"`
	FontSize   string `json:"fontSize"`
	Color      string `json:"color"`
}

// DefaultStyles returns a fresh copy of the default style sheet.
func DefaultStyles() map[string]StyleRule {
	return map[string]StyleRule{
		"h1": {FontFamily: "Georgia, serif", FontSize: "2.5em", Color: "#2c3e50"},
		"h2": {FontFamily: "Georgia, serif", FontSize: "2.0em", Color: "#34495e"},
		"h3": {FontFamily: "Georgia, serif", FontSize: "1.5em", Color: "#7f8c8d"},
		"p":  {FontFamily: "Georgia, serif", FontSize: "1em", Color: "#333333"},
	}
}

// NormalizeStyles returns a style sheet holding exactly the StyleTags keys.
// Rules from stored are kept, empty properties fall back to the defaults and
// keys outside StyleTags are dropped. stored may be nil.
func NormalizeStyles(stored map[string]StyleRule) map[string]StyleRule {
	out := DefaultStyles()
	for tag, def := range out {
		rule, ok := stored[tag]
		if !ok {
			continue
		}
		if rule.FontFamily == "" {
			rule.FontFamily = def.FontFamily
		}
		if rule.FontSize == "" {
			rule.FontSize = def.FontSize
		}
		if rule.Color == "" {
			rule.Color = def.Color
		}
		out[tag] = rule
	}
	return out
}

func isStyleTag(tag string) bool {
	for _, t := range StyleTags {
		if t == tag {
			return true
		}
	}
	return false
}

// SetStyle updates one property of one tag's rule.
func (p *Project) SetStyle(tag, property, value string) error {
	if !isStyleTag(tag) {
		return fmt.Errorf("%w: tag %q", ErrUnknownStyle, tag)
	}
	if p.Styles == nil {
		p.Styles = DefaultStyles()
	}
	rule := p.Styles[tag]
	switch property {
	case PropFontFamily:
		rule.FontFamily = value
	case PropFontSize:
		rule.FontSize = value
	case PropColor:
		rule.Color = value
	default:
		return fmt.Errorf("%w: property %q", ErrUnknownStyle, property)
	}
	p.Styles[tag] = rule
	return nil
}

// StyleSheet renders the project's rules as CSS in StyleTags order.
func (p *Project) StyleSheet() string {
	var b strings.Builder
	for _, tag := range StyleTags {
		rule, ok := p.Styles[tag]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s { font-family: %s; font-size: %s; color: %s; }\n",
			tag, rule.FontFamily, rule.FontSize, rule.Color)
	}
	return b.String()
}
