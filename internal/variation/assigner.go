// Package variation deterministically assigns visual treatments to items.
// Renders must be reproducible from the item id alone, so assignments come
// from a stable hash rather than a random source.
package variation

import "hash/fnv"

// HookStyles is the fixed vocabulary of hook scene treatments. The chosen
// entry becomes the hook scene's type tag in the storyboard.
var HookStyles = []string{
	"hook_text",
	"hook_question",
	"hook_countdown",
	"hook_statistic",
}

// Palettes is the fixed vocabulary of color palettes handed to the renderer.
var Palettes = []string{
	"midnight",
	"ember",
	"glacier",
	"neon",
	"sandstone",
}

const (
	hookStyleSalt = "hook-style"
	paletteSalt   = "palette"
)

// Assignment is the visual treatment derived for one item.
type Assignment struct {
	HookStyleIndex int    `json:"hook_style_index"`
	HookStyle      string `json:"hook_style"`
	PaletteIndex   int    `json:"palette_index"`
	Palette        string `json:"palette"`
}

// Assigner maps item ids onto the style and palette vocabularies.
type Assigner struct {
	styles   []string
	palettes []string
}

// NewAssigner uses the default vocabularies.
func NewAssigner() *Assigner {
	return &Assigner{styles: HookStyles, palettes: Palettes}
}

// NewAssignerWithVocabulary allows tests and future channels to supply
// their own style sets. Empty slices fall back to the defaults.
func NewAssignerWithVocabulary(styles, palettes []string) *Assigner {
	a := NewAssigner()
	if len(styles) > 0 {
		a.styles = styles
	}
	if len(palettes) > 0 {
		a.palettes = palettes
	}
	return a
}

// Assign derives the item's visual treatment. The two indices come from
// independently salted hashes so style and palette do not correlate.
func (a *Assigner) Assign(itemID string) Assignment {
	styleIdx := int(saltedHash(itemID, hookStyleSalt) % uint64(len(a.styles)))
	paletteIdx := int(saltedHash(itemID, paletteSalt) % uint64(len(a.palettes)))
	return Assignment{
		HookStyleIndex: styleIdx,
		HookStyle:      a.styles[styleIdx],
		PaletteIndex:   paletteIdx,
		Palette:        a.palettes[paletteIdx],
	}
}

func saltedHash(itemID, salt string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(itemID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(salt))
	return h.Sum64()
}
