// Package report renders a completed analysis into a downloadable PDF.
// Rendering is a pure function of the analysis snapshot and the injected
// clock; it never touches the store.
package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"video-analysis-service/internal/apperrors"
	"video-analysis-service/internal/entity"
)

// Risk tier thresholds over the fraud score.
const (
	lowRiskBelow    = 0.3
	mediumRiskBelow = 0.7
)

// RiskLevel maps a fraud score to its human-readable risk tier.
func RiskLevel(score float64) string {
	switch {
	case score < lowRiskBelow:
		return "Low Risk"
	case score < mediumRiskBelow:
		return "Medium Risk"
	default:
		return "High Risk"
	}
}

func recommendations(score float64) []string {
	switch {
	case score < lowRiskBelow:
		return []string{
			"Content appears legitimate with low risk of deception",
			"Continue normal engagement with this content",
			"Standard caution is appropriate",
		}
	case score < mediumRiskBelow:
		return []string{
			"Approach this content with caution",
			"Verify claims through secondary sources",
			"Pay attention to the specific markers in the timeline",
		}
	default:
		return []string{
			"High probability of deceptive content",
			"Not recommended for informational purposes",
			"Seek verified alternative sources",
		}
	}
}

// Renderer builds fraud analysis reports.
type Renderer struct {
	now func() time.Time
}

func NewRenderer() *Renderer {
	return &Renderer{now: time.Now}
}

// Generate renders the report for a completed analysis. Calling it for any
// other status is a contract violation and returns an invalid-state error.
func (r *Renderer) Generate(a *entity.Analysis) ([]byte, error) {
	if a.Status != entity.StatusCompleted {
		return nil, apperrors.InvalidState("report is only available for completed analyses")
	}

	now := r.now()

	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetCreationDate(now)
	pdf.SetModificationDate(now)
	pdf.SetTitle("Fraud Detection Analysis", false)
	pdf.AddPage()

	// Title
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, "Fraud Detection Analysis", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Report Generated: "+now.Format("2006-01-02 15:04"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	// Video information
	r.heading(pdf, "Video Information")
	r.infoRow(pdf, "URL", a.VideoURL)
	r.infoRow(pdf, "Title", orNA(a.Title))
	r.infoRow(pdf, "Format", orNA(a.VideoFormat))
	r.infoRow(pdf, "Subscribers", countOrNA(a.Subscribers))
	r.infoRow(pdf, "Views", countOrNA(a.Views))
	r.infoRow(pdf, "Published Date", dateOrNA(a.PublishedAt, "2006-01-02"))
	r.infoRow(pdf, "Analysis Date", a.CreatedAt.Format("2006-01-02 15:04"))
	pdf.Ln(4)

	// Fraud detection results
	r.heading(pdf, "Fraud Detection Results")
	score := 0.0
	if a.FraudScore != nil {
		score = *a.FraudScore
	}
	confidence := 0.0
	if a.Confidence != nil {
		confidence = *a.Confidence
	}
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Fraud Score: %d%%", int(score*100)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Confidence: %d%%", int(confidence*100)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Risk Level: "+RiskLevel(score), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	// Summary
	r.heading(pdf, "Analysis Summary")
	pdf.SetFont("Helvetica", "", 10)
	summary := "No summary available"
	if a.Summary != nil && *a.Summary != "" {
		summary = *a.Summary
	}
	pdf.MultiCell(0, 5, summary, "", "L", false)
	pdf.Ln(4)

	// Recommendations
	r.heading(pdf, "Recommendations")
	pdf.SetFont("Helvetica", "", 10)
	for _, rec := range recommendations(score) {
		pdf.MultiCell(0, 5, "- "+rec, "", "L", false)
	}
	pdf.Ln(4)

	// Timeline
	r.heading(pdf, "Timeline Analysis")
	pdf.SetFont("Helvetica", "", 10)
	if len(a.Timeline) == 0 {
		pdf.MultiCell(0, 5,
			"No timeline events detected. No specific fraudulent patterns were identified at particular timestamps.",
			"", "L", false)
	} else {
		for i, ev := range a.Timeline {
			pdf.SetFont("Helvetica", "B", 10)
			pdf.CellFormat(0, 6,
				fmt.Sprintf("Event %d: %s - Severity: %s", i+1, ev.TimestampFormatted, capitalize(string(ev.Severity))),
				"", 1, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, ev.Description, "", "L", false)
			pdf.CellFormat(0, 6, fmt.Sprintf("Confidence: %d%%", int(ev.Confidence*100)), "", 1, "L", false, 0, "")
			if i < len(a.Timeline)-1 {
				pdf.Ln(2)
			}
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) heading(pdf *fpdf.Fpdf, text string) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, text, "", 1, "L", false, 0, "")
}

func (r *Renderer) infoRow(pdf *fpdf.Fpdf, label, value string) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(40, 6, label, "1", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, value, "1", 1, "L", false, 0, "")
}

func orNA(s *string) string {
	if s == nil || *s == "" {
		return "N/A"
	}
	return *s
}

func countOrNA(n *int64) string {
	if n == nil {
		return "N/A"
	}
	return strconv.FormatInt(*n, 10)
}

func dateOrNA(t *time.Time, layout string) string {
	if t == nil {
		return "N/A"
	}
	return t.Format(layout)
}

func capitalize(s string) string {
	if s == "" {
		return "N/A"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
