package reports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

const (
	contentTypeExcel = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeCSV   = "text/csv"
	contentTypePDF   = "application/pdf"
)

// ReportExporter renders reports into downloadable files.
type ReportExporter interface {
	// ExportParticipants returns the file body, its name and content type.
	ExportParticipants(format string, rows []ParticipantRow) ([]byte, string, string, error)
	Confirmation(c Confirmation) ([]byte, string, error)
}

type reportExporter struct {
	now func() time.Time
}

func NewReportExporter() ReportExporter {
	return &reportExporter{now: time.Now}
}

func (e *reportExporter) ExportParticipants(format string, rows []ParticipantRow) ([]byte, string, string, error) {
	timestamp := e.now().Format("20060102_150405")

	switch format {
	case FormatExcel, "":
		data, err := e.participantsExcel(rows)
		if err != nil {
			return nil, "", "", err
		}
		return data, fmt.Sprintf("niebocross_uczestnicy_%s.xlsx", timestamp), contentTypeExcel, nil

	case FormatCSV:
		data, err := e.participantsCSV(rows)
		if err != nil {
			return nil, "", "", err
		}
		return data, fmt.Sprintf("niebocross_uczestnicy_%s.csv", timestamp), contentTypeCSV, nil

	case FormatPDF:
		data, err := e.participantsPDF(rows)
		if err != nil {
			return nil, "", "", err
		}
		return data, fmt.Sprintf("niebocross_uczestnicy_%s.pdf", timestamp), contentTypePDF, nil

	default:
		return nil, "", "", fmt.Errorf("unsupported format for participants: %s", format)
	}
}

//// ============================
/// PARTICIPANT EXPORTS
//// ============================

func (e *reportExporter) participantsExcel(rows []ParticipantRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Uczestnicy"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	for i, h := range ParticipantHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		f.SetCellValue(sheet, cell, h)
	}

	for rIdx, r := range rows {
		for cIdx, v := range r.Values() {
			cell, err := excelize.CoordinatesToCellName(cIdx+1, rIdx+2)
			if err != nil {
				return nil, err
			}
			f.SetCellValue(sheet, cell, v)
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *reportExporter) participantsCSV(rows []ParticipantRow) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(ParticipantHeaders); err != nil {
		return nil, err
	}
	for _, r := range rows {
		values := r.Values()
		record := make([]string, len(values))
		for i, v := range values {
			record[i] = fmt.Sprint(v)
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *reportExporter) participantsPDF(rows []ParticipantRow) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(40, 10, "NieboCross - lista uczestnikow")
	pdf.Ln(10)

	headers := []string{"Imie i nazwisko", "Ur.", "Miejscowosc", "Klub", "Kategoria", "Koszulka", "Telefon", "Platnosc"}
	widths := []float64{55, 22, 40, 50, 25, 20, 25, 25}

	pdf.SetFont("Arial", "B", 9)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, r := range rows {
		cells := []string{r.FullName, r.BirthDate, r.City, r.Club, r.RaceCategory, r.TshirtSize, r.PhoneNumber, r.PaymentStatus}
		for i, v := range cells {
			pdf.CellFormat(widths[i], 6, ascii(v), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

//// ============================
/// PAYMENT CONFIRMATION
//// ============================

// Confirmation renders the payment confirmation a registrant downloads
// from the panel.
func (e *reportExporter) Confirmation(c Confirmation) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("NieboCross - potwierdzenie platnosci", false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "Potwierdzenie platnosci - NieboCross", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, "Stowarzyszenie ZATYRANI - www.zatyrani.pl", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	line := func(label, value string) {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(55, 7, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 7, ascii(value), "", 1, "L", false, 0, "")
	}
	line("Numer rejestracji:", c.RegistrationID)
	line("Osoba kontaktowa:", c.ContactPerson)
	line("E-mail:", c.Email)
	line("ID transakcji:", c.TransactionID)
	line("Data platnosci:", c.PaidAt.Format("02.01.2006 15:04"))
	if !c.EventDate.IsZero() {
		line("Data wydarzenia:", c.EventDate.Format("02.01.2006"))
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	widths := []float64{90, 50, 40}
	for i, h := range []string{"Uczestnik", "Kategoria", "Koszulka"} {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, p := range c.Participants {
		shirt := p.TshirtSize
		if shirt == "" {
			shirt = "-"
		}
		pdf.CellFormat(widths[0], 6, ascii(p.FullName), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, strings.ReplaceAll(p.RaceCategory, "_", " "), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[2], 6, shirt, "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	amount := func(label string, v float64) {
		pdf.CellFormat(120, 7, label, "", 0, "R", false, 0, "")
		pdf.CellFormat(0, 7, fmt.Sprintf("%.2f zl", v), "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Arial", "", 10)
	amount("Oplaty startowe:", c.RaceFees)
	amount("Koszulki:", c.TshirtFees)
	if c.ExtraDonation > 0 {
		amount("Dodatkowa darowizna:", c.ExtraDonation)
	}
	pdf.SetFont("Arial", "B", 11)
	amount("Razem zaplacono:", c.TotalAmount)
	pdf.SetFont("Arial", "", 10)
	amount("W tym na cel charytatywny:", c.CharityAmount)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), fmt.Sprintf("niebocross_potwierdzenie_%s.pdf", shortID(c.RegistrationID)), nil
}

// core PDF fonts have no Polish glyphs
var asciiFold = strings.NewReplacer(
	"ą", "a", "ć", "c", "ę", "e", "ł", "l", "ń", "n", "ó", "o", "ś", "s", "ż", "z", "ź", "z",
	"Ą", "A", "Ć", "C", "Ę", "E", "Ł", "L", "Ń", "N", "Ó", "O", "Ś", "S", "Ż", "Z", "Ź", "Z",
)

func ascii(s string) string {
	return asciiFold.Replace(s)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
