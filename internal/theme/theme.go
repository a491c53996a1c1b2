// Package theme resolves a request's style and language ids against the
// host-supplied style/language tables and produces the rendering context the
// SVG renderer consumes.
package theme

import "encoding/json"

// Direction is the text direction of a resolved language.
type Direction string

const (
	DirectionLTR Direction = "LTR"
	DirectionRTL Direction = "RTL"
)

// Style is one row of the style table. Properties is an opaque serialized
// blob (JSON object) passed through to the renderer.
type Style struct {
	ID           int
	Properties   string
	LastModified int64
}

// Language is one row of the language table.
type Language struct {
	ID        int
	Direction Direction
}

// Tables is an immutable snapshot of both lookup tables plus the configured
// default ids. Fallback never depends on map iteration order.
type Tables struct {
	Styles            map[int]Style
	Languages         map[int]Language
	DefaultStyleID    int
	DefaultLanguageID int
}

// RenderContext is the per-request rendering context derived from a snapshot.
type RenderContext struct {
	StyleID           int
	LanguageID        int
	Direction         Direction
	Properties        map[string]interface{}
	StyleLastModified int64
}

func lookupStyle(id int, tables Tables) (Style, bool) {
	if id != 0 {
		if s, ok := tables.Styles[id]; ok {
			return s, true
		}
	}
	s, ok := tables.Styles[tables.DefaultStyleID]
	return s, ok
}

func lookupLanguage(id int, tables Tables) (Language, bool) {
	if id != 0 {
		if l, ok := tables.Languages[id]; ok {
			return l, true
		}
	}
	l, ok := tables.Languages[tables.DefaultLanguageID]
	return l, ok
}

// Resolve maps the requested style and language ids onto the snapshot,
// falling back to the configured defaults for unknown ids and to a zero
// style / LTR language when the tables are empty.
func Resolve(styleID, languageID int, tables Tables) RenderContext {
	ctx := RenderContext{
		Direction:  DirectionLTR,
		Properties: map[string]interface{}{},
	}

	if style, ok := lookupStyle(styleID, tables); ok {
		ctx.StyleID = style.ID
		ctx.StyleLastModified = style.LastModified
		ctx.Properties = decodeProperties(style.Properties)
	}

	if lang, ok := lookupLanguage(languageID, tables); ok {
		ctx.LanguageID = lang.ID
		if lang.Direction == DirectionRTL {
			ctx.Direction = DirectionRTL
		}
	}

	return ctx
}

// decodeProperties never fails: a malformed blob yields an empty property set
// so a broken style row cannot take down the render pipeline.
func decodeProperties(blob string) map[string]interface{} {
	if blob == "" {
		return map[string]interface{}{}
	}
	var props map[string]interface{}
	if err := json.Unmarshal([]byte(blob), &props); err != nil || props == nil {
		return map[string]interface{}{}
	}
	return props
}
