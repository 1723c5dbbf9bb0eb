package app

import (
	"fmt"
	"strconv"

	"github.com/hideo54/image-adjuster/internal/domain"
)

// Render maps session state to the two stacked layers the view draws.
// Positive X moves the overlay right, positive Y down, positive degrees clockwise.
func Render(state domain.SessionState, images domain.ImageSource) domain.View {
	base := domain.Layer{Opacity: state.BaseOpacity}
	overlay := domain.Layer{
		Opacity:    state.OverlayOpacity,
		TranslateX: state.OffsetX,
		TranslateY: state.OffsetY,
		RotateDeg:  state.RotationDeg,
		Transform:  OverlayTransform(state.OffsetX, state.OffsetY, state.RotationDeg),
	}
	if images != nil {
		base.Name = images.Name(state.FrameIndex)
		base.Src = images.URL(state.FrameIndex)
		overlay.Name = images.Name(state.FrameIndex + 1)
		overlay.Src = images.URL(state.FrameIndex + 1)
	}

	return domain.View{
		Base:    base,
		Overlay: overlay,
		Readout: []string{
			fmt.Sprintf("x: %d px", state.OffsetX),
			fmt.Sprintf("y: %d px", state.OffsetY),
			fmt.Sprintf("deg: %s deg", formatDegrees(state.RotationDeg)),
		},
	}
}

// OverlayTransform is the CSS transform for the overlay layer.
func OverlayTransform(x, y int, deg float64) string {
	return fmt.Sprintf("translateX(%dpx) translateY(%dpx) rotate(%sdeg)", x, y, formatDegrees(deg))
}

func formatDegrees(deg float64) string {
	return strconv.FormatFloat(deg, 'f', -1, 64)
}
