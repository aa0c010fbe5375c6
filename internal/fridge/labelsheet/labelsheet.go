// Package labelsheet renders the printable sheet of item labels for one
// compartment.
package labelsheet

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/gosimple/slug"
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/smallbiznis/dormitory/internal/fridge/domain"
	"github.com/smallbiznis/dormitory/internal/fridge/label"
)

const labelsPerRow = 6

type Sheet struct {
	Unit        domain.FridgeUnit
	Compartment domain.FridgeCompartment
}

// FileName is the download name of the sheet, e.g. floor-3-kitchen-a-labels.pdf.
func FileName(sheet Sheet) string {
	slot, err := label.SlotLetter(sheet.Compartment.SlotIndex)
	if err != nil {
		slot = sheet.Compartment.ID.String()
	}
	return slug.Make(fmt.Sprintf("floor %d %s %s labels", sheet.Unit.Floor, sheet.Unit.Location, slot)) + ".pdf"
}

type Renderer interface {
	Render(ctx context.Context, sheet Sheet) (io.Reader, error)
}

type PDFRenderer struct{}

func NewRenderer() Renderer {
	return &PDFRenderer{}
}

// Labels lists every item label of the compartment's range in order.
func Labels(c domain.FridgeCompartment) ([]string, error) {
	if !label.ValidRange(c.LabelRangeStart, c.LabelRangeEnd) {
		return nil, domain.ErrInvalidLabelRange
	}
	out := make([]string, 0, c.LabelRangeEnd-c.LabelRangeStart+1)
	for n := c.LabelRangeStart; n <= c.LabelRangeEnd; n++ {
		l, err := label.ItemLabel(c.SlotIndex, n)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func (r *PDFRenderer) Render(ctx context.Context, sheet Sheet) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	labels, err := Labels(sheet.Compartment)
	if err != nil {
		return nil, err
	}
	slot, err := label.SlotLetter(sheet.Compartment.SlotIndex)
	if err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	location := sheet.Unit.Location
	if sheet.Unit.DisplayName != "" {
		location = sheet.Unit.DisplayName + " (" + sheet.Unit.Location + ")"
	}
	m.AddRow(20,
		text.NewCol(8, "Compartment "+slot, props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, string(sheet.Compartment.CompartmentType), props.Text{
			Size:  12,
			Align: align.Right,
		}),
	)
	m.AddRow(12,
		col.New(8).Add(
			text.New(fmt.Sprintf("Floor %d, %s", sheet.Unit.Floor, location), props.Text{Size: 9}),
			text.New("Labels "+label.RangeText(sheet.Compartment.LabelRangeStart, sheet.Compartment.LabelRangeEnd), props.Text{Size: 9, Top: 4}),
		),
		col.New(4),
	)

	width := 12 / labelsPerRow
	for i := 0; i < len(labels); i += labelsPerRow {
		cols := make([]core.Col, 0, labelsPerRow)
		for j := i; j < i+labelsPerRow; j++ {
			if j >= len(labels) {
				cols = append(cols, col.New(width))
				continue
			}
			cols = append(cols, text.NewCol(width, labels[j], props.Text{
				Size:  11,
				Style: fontstyle.Bold,
				Align: align.Center,
				Top:   3,
			}))
		}
		m.AddRow(12, cols...)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}
