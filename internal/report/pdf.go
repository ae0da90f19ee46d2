package report

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/jung-kurt/gofpdf"

	"example.com/gatherview/internal/gather"
)

// FileSummary collects everything the summary PDF presents about one
// SEG-Y file and the window currently displayed on it.
type FileSummary struct {
	Path         string
	Sha256       string
	SizeBytes    int64
	TotalTraces  int
	NumSamples   int
	SampleRateUs int
	TraceLenMs   float64
	SampleFormat string

	TextHeader []string

	Window    gather.Window
	Head1     gather.HeaderFieldSpec
	Head2     gather.HeaderFieldSpec
	Head1Vals []float64
	Head2Vals []float64
}

// SaveSummaryPDF renders the file summary into a PDF document. The file's
// SHA-256 fingerprint is stamped both as text and as a QR code so a printed
// report can be matched back to the exact file it describes.
func SaveSummaryPDF(sum FileSummary, out string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("SEG-Y File Summary", false)
	pdf.SetAuthor("gatherctl", false)
	pdf.SetCreator("gatherctl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addPDFTitle(pdf, "SEG-Y File Summary")
	addFingerprint(pdf, sum.Sha256)
	addFileSection(pdf, sum)
	addGeometrySection(pdf, sum)
	addWindowSection(pdf, sum)
	addTextHeaderSection(pdf, sum.TextHeader)

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addFileSection(pdf *gofpdf.Fpdf, sum FileSummary) {
	addSectionHeading(pdf, "File")
	addKeyValues(pdf, []keyValue{
		{"Path", sum.Path},
		{"Size", fmt.Sprintf("%d bytes", sum.SizeBytes)},
		{"SHA-256", sum.Sha256},
	})
}

func addGeometrySection(pdf *gofpdf.Fpdf, sum FileSummary) {
	addSectionHeading(pdf, "Geometry")
	addKeyValues(pdf, []keyValue{
		{"Traces", strconv.Itoa(sum.TotalTraces)},
		{"Samples per trace", strconv.Itoa(sum.NumSamples)},
		{"Sample interval", fmt.Sprintf("%d us", sum.SampleRateUs)},
		{"Trace length", fmt.Sprintf("%.1f ms", sum.TraceLenMs)},
		{"Sample format", sum.SampleFormat},
	})
}

func addWindowSection(pdf *gofpdf.Fpdf, sum FileSummary) {
	addSectionHeading(pdf, "Displayed Window")
	addKeyValues(pdf, []keyValue{
		{"First trace", strconv.Itoa(sum.Window.Start)},
		{"Width", strconv.Itoa(sum.Window.Width())},
		{"Header 1", describeSpec(sum.Head1, sum.Head1Vals)},
		{"Header 2", describeSpec(sum.Head2, sum.Head2Vals)},
	})
}

func describeSpec(spec gather.HeaderFieldSpec, vals []float64) string {
	desc := fmt.Sprintf("byte %d, %s", spec.BytePos, spec.Format)
	if len(vals) == 0 {
		return desc
	}
	min, max := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return fmt.Sprintf("%s, range %g to %g", desc, min, max)
}

func addTextHeaderSection(pdf *gofpdf.Fpdf, lines []string) {
	if len(lines) == 0 {
		return
	}
	pdf.AddPage()
	addSectionHeading(pdf, "EBCDIC Text Header")
	pdf.SetFont("Courier", "", 8)
	for _, line := range lines {
		pdf.CellFormat(0, 4, line, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addFingerprint(pdf *gofpdf.Fpdf, hash string) {
	png, err := FingerprintQR(hash, 256)
	if err != nil {
		return
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("fingerprint-qr", opts, newByteReader(png))
	pdf.ImageOptions("fingerprint-qr", 166, 12, 28, 28, false, opts, 0, "")
}

func newByteReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}

type keyValue struct {
	label string
	value string
}

func addSectionHeading(pdf *gofpdf.Fpdf, heading string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, heading)
	pdf.Ln(8)
}

func addKeyValues(pdf *gofpdf.Fpdf, items []keyValue) {
	for _, item := range items {
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(50, 6, item.label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}
