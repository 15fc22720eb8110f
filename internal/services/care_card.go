package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/HammerMeetNail/plantcare/internal/models"
)

const (
	careCardWidth  = 1200
	careCardHeight = 630
)

var (
	fontOnce      sync.Once
	parsedGoFont  *opentype.Font
	parsedGoError error
)

var (
	cardBackground = color.RGBA{0xF5, 0xF8, 0xF2, 0xFF}
	cardInk        = color.RGBA{0x24, 0x3B, 0x26, 0xFF}
	cardMuted      = color.RGBA{0x5E, 0x6E, 0x5F, 0xFF}
	cardAccent     = color.RGBA{0x3F, 0x7D, 0x45, 0xFF}
	cardOverdue    = color.RGBA{0xB5, 0x4A, 0x2E, 0xFF}
	cardDisabled   = color.RGBA{0x9A, 0x9A, 0x9A, 0xFF}
)

// RenderCareCard renders the owner's care card for one reminder.
func (s *ReminderService) RenderCareCard(ctx context.Context, userID, reminderID uuid.UUID) ([]byte, error) {
	reminder, err := s.Get(ctx, userID, reminderID)
	if err != nil {
		return nil, err
	}
	return RenderCareCardPNG(*reminder, s.now())
}

// RenderCareCardPNG draws a shareable summary of a reminder: plant, care
// action, schedule and current status.
func RenderCareCardPNG(reminder models.Reminder, now time.Time) ([]byte, error) {
	const padding = 56
	const borderWidth = 6

	img := image.NewRGBA(image.Rect(0, 0, careCardWidth, careCardHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: cardBackground}, image.Point{}, draw.Src)

	status, statusColor := careCardStatus(reminder, now)
	drawBorder(img, img.Bounds(), borderWidth, statusColor)

	titleFace, err := newFontFace(64)
	if err != nil {
		return nil, err
	}
	defer func() { _ = titleFace.Close() }()

	bodyFace, err := newFontFace(34)
	if err != nil {
		return nil, err
	}
	defer func() { _ = bodyFace.Close() }()

	smallFace, err := newFontFace(26)
	if err != nil {
		return nil, err
	}
	defer func() { _ = smallFace.Close() }()

	textWidth := careCardWidth - padding*2
	plantName := reminder.PlantName
	if strings.TrimSpace(plantName) == "" {
		plantName = "Your plant"
	}
	title := plantName
	if font.MeasureString(titleFace, title).Ceil() > textWidth {
		title = truncateToWidth(titleFace, title, textWidth)
	}

	drawText(img, titleFace, padding, padding+60, title, cardInk)
	drawText(img, bodyFace, padding, padding+130, describeSchedule(reminder), cardAccent)
	drawText(img, bodyFace, padding, padding+190, "Next: "+reminder.NextDue.UTC().Format("Mon, Jan 2 2006 15:04 MST"), cardInk)

	badge := image.Rect(padding, padding+220, padding+font.MeasureString(smallFace, status).Ceil()+40, padding+270)
	draw.Draw(img, badge, &image.Uniform{C: statusColor}, image.Point{}, draw.Src)
	drawWrappedText(img, smallFace, badge, []string{status}, color.White)

	if reminder.Notes != nil && strings.TrimSpace(*reminder.Notes) != "" {
		notesRect := image.Rect(padding, padding+300, careCardWidth-padding, careCardHeight-padding)
		lines := wrapText(smallFace, *reminder.Notes, notesRect.Dx())
		lines = clampLines(smallFace, lines, 5, notesRect.Dx())
		lineHeight := smallFace.Metrics().Height.Ceil()
		for i, line := range lines {
			drawText(img, smallFace, notesRect.Min.X, notesRect.Min.Y+smallFace.Metrics().Ascent.Ceil()+i*lineHeight, line, cardMuted)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func careCardStatus(reminder models.Reminder, now time.Time) (string, color.RGBA) {
	switch {
	case !reminder.Enabled:
		return "Paused", cardDisabled
	case reminder.Overdue(now):
		return "Overdue", cardOverdue
	default:
		return "Due " + humanizeUntil(reminder.NextDue.Sub(now)), cardAccent
	}
}

func describeSchedule(reminder models.Reminder) string {
	unit := reminder.FrequencyUnit
	if !unit.Valid() {
		unit = models.DefaultFrequencyUnit
	}
	label := capitalize(strings.TrimSpace(reminder.Type))
	if label == "" {
		label = "Care"
	}
	if reminder.Frequency == 1 {
		return fmt.Sprintf("%s every %s", label, strings.TrimSuffix(string(unit), "s"))
	}
	return fmt.Sprintf("%s every %d %s", label, reminder.Frequency, unit)
}

func humanizeUntil(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("in %d min", int(d/time.Minute))
	case d < 48*time.Hour:
		return fmt.Sprintf("in %d h", int(d/time.Hour))
	default:
		return fmt.Sprintf("in %d days", int(d/(24*time.Hour)))
	}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func newFontFace(size float64) (*opentype.Face, error) {
	fontOnce.Do(func() {
		parsedGoFont, parsedGoError = opentype.Parse(goregular.TTF)
	})
	if parsedGoError != nil {
		return nil, fmt.Errorf("parse font: %w", parsedGoError)
	}
	face, err := opentype.NewFace(parsedGoFont, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("load font face: %w", err)
	}
	otFace, ok := face.(*opentype.Face)
	if !ok {
		return nil, fmt.Errorf("load font face: unexpected type")
	}
	return otFace, nil
}

func drawText(img draw.Image, face font.Face, x, y int, text string, clr color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(clr),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func drawBorder(img draw.Image, rect image.Rectangle, width int, clr color.Color) {
	border := image.NewUniform(clr)
	draw.Draw(img, image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+width), border, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(rect.Min.X, rect.Max.Y-width, rect.Max.X, rect.Max.Y), border, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+width, rect.Max.Y), border, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(rect.Max.X-width, rect.Min.Y, rect.Max.X, rect.Max.Y), border, image.Point{}, draw.Src)
}

func wrapText(face font.Face, text string, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{}
	}

	d := &font.Drawer{Face: face}
	lines := []string{}
	current := words[0]

	for _, word := range words[1:] {
		test := current + " " + word
		if d.MeasureString(test).Ceil() <= maxWidth {
			current = test
			continue
		}
		lines = append(lines, current)
		current = word
	}
	lines = append(lines, current)
	return lines
}

// clampLines keeps at most maxLines lines, ending the last kept line with an
// ellipsis that fits maxWidth.
func clampLines(face font.Face, lines []string, maxLines int, maxWidth int) []string {
	if len(lines) <= maxLines {
		return lines
	}
	lines = lines[:maxLines]
	lines[maxLines-1] = truncateToWidth(face, lines[maxLines-1], maxWidth)
	return lines
}

// truncateToWidth drops whole runes from the end of text until it fits
// maxWidth with a trailing ellipsis.
func truncateToWidth(face font.Face, text string, maxWidth int) string {
	const ellipsis = "..."
	d := &font.Drawer{Face: face}

	runes := []rune(text)
	for d.MeasureString(string(runes)+ellipsis).Ceil() > maxWidth && len(runes) > 0 {
		runes = runes[:len(runes)-1]
	}
	return strings.TrimSpace(string(runes)) + ellipsis
}

func drawWrappedText(img draw.Image, face font.Face, rect image.Rectangle, lines []string, clr color.Color) {
	if len(lines) == 0 {
		return
	}
	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()
	textHeight := lineHeight * len(lines)
	startY := rect.Min.Y + (rect.Dy()-textHeight)/2 + metrics.Ascent.Ceil()

	for i, line := range lines {
		lineWidth := font.MeasureString(face, line).Ceil()
		x := rect.Min.X + (rect.Dx()-lineWidth)/2
		y := startY + i*lineHeight
		drawText(img, face, x, y, line, clr)
	}
}
