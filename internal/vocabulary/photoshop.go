package vocabulary

// photoshopTools is the Photoshop toolbar catalog used for the tutorial
// dataset. The order is the detection priority and must stay as is: "Move"
// precedes "Content-Aware Move", "Brush" precedes "Mixer Brush", and so on.
var photoshopTools = []string{
	"Move", "Marquee", "Lasso", "Object Selection", "Quick Selection", "Magic Wand", "Crop",
	"Perspective Crop", "Slice", "Slice Select", "Eyedropper", "3D Material Eyedropper",
	"Color Sampler", "Ruler", "Note", "Count", "Spot Healing Brush", "Healing Brush", "Patch",
	"Content-Aware Move", "Red Eye", "Brush", "Pencil", "Color Replacement", "Mixer Brush",
	"Clone Stamp", "Pattern Stamp", "History Brush", "Art History Brush", "Eraser",
	"Background Eraser", "Magic Eraser", "Gradient", "Paint Bucket", "Blur", "Sharpen",
	"Smudge", "Dodge", "Burn", "Sponge", "Pen", "Freeform Pen", "Curvature Pen",
	"Add Anchor Point", "Delete Anchor Point", "Convert Point", "Horizontal Type",
	"Vertical Type", "Horizontal Type Mask", "Vertical Type Mask", "Path Selection",
	"Direct Selection", "Rectangle", "Rounded Rectangle", "Ellipse", "Polygon", "Line",
	"Custom Shape", "Hand", "Rotate View", "Zoom",
}

// Photoshop returns the default tool vocabulary.
func Photoshop() *Vocabulary {
	return MustNew(photoshopTools)
}
