// Package panels provides UI panels for the application.
package panels

import (
	"fmt"
	"log"
	"strconv"

	"refview/internal/app"
	"refview/internal/imageio"
	"refview/pkg/geometry"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// ReferencesPanel manages the reference image list: the global toggle, the
// add/remove/reorder commands, and the field editors for the selected
// record.
type ReferencesPanel struct {
	state     *app.State
	window    fyne.Window
	container fyne.CanvasObject

	enabledCheck *widget.Check
	list         *widget.List
	detailCard   *widget.Card

	nameEntry     *widget.Entry
	pathLabel     *widget.Label
	opacitySlider *widget.Slider
	posXEntry     *widget.Entry
	posYEntry     *widget.Entry
	scaleXEntry   *widget.Entry
	scaleYEntry   *widget.Entry
	flipXCheck    *widget.Check
	flipYCheck    *widget.Check

	// True while the panel itself writes widget values, so change
	// callbacks don't echo back into the state.
	updating bool
}

// NewReferencesPanel creates the references panel bound to state.
func NewReferencesPanel(state *app.State) *ReferencesPanel {
	rp := &ReferencesPanel{state: state}

	rp.enabledCheck = widget.NewCheck("References On", func(on bool) {
		if rp.updating {
			return
		}
		state.SetEnabled(on)
	})
	rp.enabledCheck.SetChecked(state.Enabled())

	rp.list = widget.NewList(
		func() int {
			return state.Len()
		},
		func() fyne.CanvasObject {
			check := widget.NewCheck("", nil)
			label := widget.NewLabel("Reference")
			return container.NewBorder(nil, nil, check, nil, label)
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			rec := state.RecordAt(int(id))
			if rec == nil {
				return
			}
			border := obj.(*fyne.Container)
			check := border.Objects[1].(*widget.Check)
			label := border.Objects[0].(*widget.Label)

			check.OnChanged = nil
			check.SetChecked(rec.Visible)
			check.OnChanged = func(visible bool) {
				state.SetVisible(int(id), visible)
			}
			label.SetText(rec.Name)
		},
	)
	rp.list.OnSelected = func(id widget.ListItemID) {
		state.SetSelected(int(id))
		rp.showDetail(int(id))
	}

	toolbar := container.NewHBox(
		widget.NewButtonWithIcon("", theme.ContentAddIcon(), func() {
			rp.AddReference()
		}),
		widget.NewButtonWithIcon("", theme.ContentRemoveIcon(), func() {
			state.RemoveSelected()
		}),
		widget.NewButtonWithIcon("", theme.MoveUpIcon(), func() {
			state.MoveSelected(-1)
		}),
		widget.NewButtonWithIcon("", theme.MoveDownIcon(), func() {
			state.MoveSelected(1)
		}),
	)

	rp.buildDetailForm()

	listScroll := container.NewVScroll(rp.list)
	listScroll.SetMinSize(fyne.NewSize(0, 200))

	rp.container = container.NewBorder(
		container.NewVBox(rp.enabledCheck, toolbar),
		rp.detailCard,
		nil, nil,
		listScroll,
	)

	rp.registerEventHandlers()
	return rp
}

// buildDetailForm creates the editors for the selected record.
func (rp *ReferencesPanel) buildDetailForm() {
	rp.nameEntry = widget.NewEntry()
	rp.nameEntry.OnChanged = func(text string) {
		if rp.updating {
			return
		}
		rp.state.SetName(rp.state.Selected(), text)
	}

	rp.pathLabel = widget.NewLabel("")
	rp.pathLabel.Wrapping = fyne.TextTruncate

	rp.opacitySlider = widget.NewSlider(0, 1)
	rp.opacitySlider.Step = 0.01
	rp.opacitySlider.OnChanged = func(v float64) {
		if rp.updating {
			return
		}
		rp.state.SetOpacity(rp.state.Selected(), v)
	}

	rp.posXEntry = rp.newFloatEntry(func(v float64) {
		idx := rp.state.Selected()
		if rec := rp.state.RecordAt(idx); rec != nil {
			rp.state.SetPosition(idx, geometry.Point2D{X: v, Y: rec.Position.Y})
		}
	})
	rp.posYEntry = rp.newFloatEntry(func(v float64) {
		idx := rp.state.Selected()
		if rec := rp.state.RecordAt(idx); rec != nil {
			rp.state.SetPosition(idx, geometry.Point2D{X: rec.Position.X, Y: v})
		}
	})
	rp.scaleXEntry = rp.newFloatEntry(func(v float64) {
		idx := rp.state.Selected()
		if rec := rp.state.RecordAt(idx); rec != nil {
			rp.state.SetScale(idx, geometry.Point2D{X: v, Y: rec.Scale.Y})
		}
	})
	rp.scaleYEntry = rp.newFloatEntry(func(v float64) {
		idx := rp.state.Selected()
		if rec := rp.state.RecordAt(idx); rec != nil {
			rp.state.SetScale(idx, geometry.Point2D{X: rec.Scale.X, Y: v})
		}
	})

	rp.flipXCheck = widget.NewCheck("Flip X", func(flip bool) {
		if rp.updating {
			return
		}
		rp.state.SetFlipX(rp.state.Selected(), flip)
	})
	rp.flipYCheck = widget.NewCheck("Flip Y", func(flip bool) {
		if rp.updating {
			return
		}
		rp.state.SetFlipY(rp.state.Selected(), flip)
	})

	position := container.NewGridWithColumns(2,
		labeled("Position X", rp.posXEntry),
		labeled("Position Y", rp.posYEntry),
	)
	scale := container.NewGridWithColumns(2,
		labeled("Scale X", rp.scaleXEntry),
		labeled("Scale Y", rp.scaleYEntry),
	)

	content := container.NewVBox(
		rp.nameEntry,
		rp.pathLabel,
		widget.NewLabel("Opacity"),
		rp.opacitySlider,
		position,
		scale,
		container.NewHBox(rp.flipXCheck, rp.flipYCheck),
	)
	rp.detailCard = widget.NewCard("Selected Reference", "", content)
}

// newFloatEntry creates an entry committing a parsed float on submit.
func (rp *ReferencesPanel) newFloatEntry(commit func(float64)) *widget.Entry {
	entry := widget.NewEntry()
	entry.OnSubmitted = func(text string) {
		if rp.updating {
			return
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			log.Printf("invalid number %q", text)
			return
		}
		commit(v)
	}
	return entry
}

// labeled stacks a caption above an editor.
func labeled(caption string, obj fyne.CanvasObject) fyne.CanvasObject {
	return container.NewVBox(widget.NewLabel(caption), obj)
}

// registerEventHandlers keeps the widgets in sync with the document.
func (rp *ReferencesPanel) registerEventHandlers() {
	rp.state.On(app.EventReferencesChanged, func(interface{}) {
		rp.list.Refresh()
		rp.showDetail(rp.state.Selected())
	})
	rp.state.On(app.EventSelectionChanged, func(data interface{}) {
		if idx, ok := data.(int); ok {
			rp.list.Select(widget.ListItemID(idx))
			rp.showDetail(idx)
		}
	})
	rp.state.On(app.EventEnabledChanged, func(data interface{}) {
		if on, ok := data.(bool); ok {
			rp.updating = true
			rp.enabledCheck.SetChecked(on)
			rp.updating = false
		}
	})
}

// showDetail populates the detail editors from the record at index.
func (rp *ReferencesPanel) showDetail(index int) {
	rec := rp.state.RecordAt(index)
	if rec == nil {
		rp.detailCard.SetTitle("Selected Reference")
		rp.detailCard.SetSubTitle("")
		return
	}

	rp.updating = true
	rp.nameEntry.SetText(rec.Name)
	rp.pathLabel.SetText(rec.SourcePath)
	rp.opacitySlider.SetValue(rec.Opacity)
	rp.posXEntry.SetText(fmt.Sprintf("%.1f", rec.Position.X))
	rp.posYEntry.SetText(fmt.Sprintf("%.1f", rec.Position.Y))
	rp.scaleXEntry.SetText(fmt.Sprintf("%.2f", rec.Scale.X))
	rp.scaleYEntry.SetText(fmt.Sprintf("%.2f", rec.Scale.Y))
	rp.flipXCheck.SetChecked(rec.FlipX)
	rp.flipYCheck.SetChecked(rec.FlipY)
	rp.updating = false

	rp.detailCard.SetTitle(rec.Name)
}

// AddReference prompts for an image file and appends it to the list.
func (rp *ReferencesPanel) AddReference() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()
		if !imageio.IsSupportedFormat(path) {
			log.Printf("unsupported image format: %s", path)
			return
		}
		rp.state.AddReference(path)
	}, rp.window)
	fd.SetFilter(storage.NewExtensionFileFilter(imageio.SupportedFormats()))
	fd.Show()
}

// Container returns the panel container.
func (rp *ReferencesPanel) Container() fyne.CanvasObject {
	return rp.container
}

// SetWindow sets the parent window for dialogs.
func (rp *ReferencesPanel) SetWindow(w fyne.Window) {
	rp.window = w
}

// Refresh refreshes the panel display.
func (rp *ReferencesPanel) Refresh() {
	rp.list.Refresh()
}
