package domain

// Layer is one stacked image as the view renders it.
type Layer struct {
	Name       string  `json:"name"`
	Src        string  `json:"src"`
	Opacity    float64 `json:"opacity"`
	TranslateX int     `json:"translate_x"`
	TranslateY int     `json:"translate_y"`
	RotateDeg  float64 `json:"rotate_deg"`
	Transform  string  `json:"transform,omitempty"`
}

// View is the presentation of a session: base beneath, overlay on top.
type View struct {
	Base    Layer    `json:"base"`
	Overlay Layer    `json:"overlay"`
	Readout []string `json:"readout"`
}

// ImageSource resolves frame indices to image identifiers.
type ImageSource interface {
	Name(index int) string
	URL(index int) string
}
