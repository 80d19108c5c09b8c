// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package web

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/relabs-tech/geofence/internal/geofence"
)

const (
	badgeHeight  = 20
	badgePadding = 6
)

var (
	colorLabel   = color.RGBA{0x55, 0x55, 0x55, 0xff}
	colorInside  = color.RGBA{0x2e, 0x9e, 0x44, 0xff}
	colorOutside = color.RGBA{0xd0, 0x3a, 0x2f, 0xff}
	colorUnknown = color.RGBA{0x9f, 0x9f, 0x9f, 0xff}
)

// badgeText returns the value text and color for a status.
func badgeText(st geofence.RangeStatus) (string, color.Color) {
	switch {
	case st.Error == geofence.ReasonPermissionDenied:
		return "permission denied", colorUnknown
	case st.Error == geofence.ReasonUnavailable:
		return "unavailable", colorUnknown
	case !st.Known:
		return "unknown", colorUnknown
	case st.WithinRange:
		return fmt.Sprintf("in range %.1fm", st.DistanceMeters), colorInside
	default:
		return fmt.Sprintf("out of range %.0fm", st.DistanceMeters), colorOutside
	}
}

// RenderBadge draws a two-part "geofence | state" badge.
func RenderBadge(st geofence.RangeStatus) *image.RGBA {
	face := basicfont.Face7x13
	label := "geofence"
	value, valueColor := badgeText(st)

	labelW := font.MeasureString(face, label).Ceil() + 2*badgePadding
	valueW := font.MeasureString(face, value).Ceil() + 2*badgePadding

	img := image.NewRGBA(image.Rect(0, 0, labelW+valueW, badgeHeight))
	draw.Draw(img, image.Rect(0, 0, labelW, badgeHeight), image.NewUniform(colorLabel), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(labelW, 0, labelW+valueW, badgeHeight), image.NewUniform(valueColor), image.Point{}, draw.Src)

	baseline := (badgeHeight+face.Ascent)/2 - 1
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(badgePadding, baseline),
	}
	d.DrawString(label)
	d.Dot = fixed.P(labelW+badgePadding, baseline)
	d.DrawString(value)

	return img
}
