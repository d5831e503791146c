package pass

import (
	"bytes"
	"fmt"
	"image/png"
	"time"

	"github.com/signintech/gopdf"
	"golang.org/x/image/font/gofont/goregular"
)

const fontFamily = "goregular"

// Ticket is the printable form of a pass.
type Ticket struct {
	Claims
	EventTitle string
	Location   string
	StartsAt   time.Time
}

// PDF renders a one-page A4 ticket with the attendee details and the QR code.
func (g *Generator) PDF(t Ticket) ([]byte, string, error) {
	qr, token, err := g.PNG(t.Claims)
	if err != nil {
		return nil, "", err
	}

	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	if err := pdf.AddTTFFontData(fontFamily, goregular.TTF); err != nil {
		return nil, "", fmt.Errorf("failed to load font: %w", err)
	}
	if err := pdf.SetFont(fontFamily, "", 20); err != nil {
		return nil, "", fmt.Errorf("failed to set font: %w", err)
	}

	pdf.SetXY(40, 40)
	if err := pdf.Cell(nil, "EVENT PASS"); err != nil {
		return nil, "", fmt.Errorf("failed to write header: %w", err)
	}

	if err := pdf.SetFont(fontFamily, "", 13); err != nil {
		return nil, "", fmt.Errorf("failed to set font: %w", err)
	}
	pdf.SetXY(40, 90)
	for _, line := range ticketLines(t) {
		pdf.SetX(40)
		if err := pdf.Cell(nil, line); err != nil {
			return nil, "", fmt.Errorf("failed to write ticket info: %w", err)
		}
		pdf.Br(22)
	}

	img, err := png.Decode(bytes.NewReader(qr))
	if err != nil {
		return nil, "", fmt.Errorf("decode qr: %w", err)
	}
	if err := pdf.ImageFrom(img, 40, pdf.GetY()+20, &gopdf.Rect{W: 180, H: 180}); err != nil {
		return nil, "", fmt.Errorf("failed to draw qr code: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Write(&buf); err != nil {
		return nil, "", fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), token, nil
}

func ticketLines(t Ticket) []string {
	lines := []string{
		"Event: " + t.EventTitle,
		"Starts: " + t.StartsAt.UTC().Format("Mon 02 Jan 2006 15:04 MST"),
	}
	if t.Location != "" {
		lines = append(lines, "Location: "+t.Location)
	}
	return append(lines,
		"Attendee: "+t.Name,
		"Email: "+t.Email,
		fmt.Sprintf("Registration: #%d", t.RegistrationID),
	)
}
