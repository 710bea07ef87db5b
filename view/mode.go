package view

//go:generate go tool stringer --linecomment --type Mode --output mode_string.go

import "github.com/ardnew/folio/script"

// Mode is how a view's process hook consumes documents.
type Mode uint8

const (
	ModeItem       Mode = iota // item
	ModeCollection             // collection
)

// modeOf maps the shape of a process definition to a mode. A view without
// process runs in item mode and passes documents through unchanged.
func modeOf(shape script.Shape, defined bool) (Mode, bool) {
	if !defined {
		return ModeItem, true
	}

	switch shape {
	case script.ShapeItem:
		return ModeItem, true
	case script.ShapeCollection:
		return ModeCollection, true
	}

	return 0, false
}
