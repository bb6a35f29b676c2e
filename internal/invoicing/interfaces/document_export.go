package interfaces

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	invoicing "stewardship-cloud/internal/invoicing/domain"
)

var errNoDocuments = errors.New("export: no documents")

// BuildDocumentsPDF renders the documents of one invoice batch, one section
// per document.
func BuildDocumentsPDF(invoiceBatchID string, docs []*invoicing.Document) ([]byte, error) {
	if len(docs) == 0 {
		return nil, errNoDocuments
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Invoice Batch")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Batch: %s", invoiceBatchID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Scheme: %s", docs[0].SchemeID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Documents: %d", len(docs)))
	pdf.Ln(8)

	for _, d := range docs {
		pdf.SetFont("Arial", "B", 10)
		pdf.Cell(0, 6, fmt.Sprintf("%s  %s %s", d.Number, d.Type, d.Classification))
		pdf.Ln(6)
		pdf.SetFont("Arial", "", 9)
		pdf.Cell(0, 5, fmt.Sprintf("Counterparty: %s %s", d.CounterpartyID, d.CounterpartyName))
		pdf.Ln(5)
		pdf.Cell(0, 5, fmt.Sprintf("Business unit: %s  Legal entity: %s", d.BusinessUnit, d.LegalEntity))
		pdf.Ln(5)
		pdf.Cell(0, 5, d.Description)
		pdf.Ln(5)
		pdf.Cell(0, 5, fmt.Sprintf("Total (%s): %s  Tax: %s", d.Currency, d.TotalAmount.StringFixed(2), d.TaxAmount.StringFixed(2)))
		pdf.Ln(6)

		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(12, 6, "#", "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, "Material", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Quantity", "1", 0, "C", false, 0, "")
		pdf.CellFormat(15, 6, "Unit", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Unit Price", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Amount", "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, "Tax", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Tax Class", "1", 0, "C", false, 0, "")
		pdf.CellFormat(60, 6, "Distribution", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
		for _, l := range d.Lines {
			pdf.CellFormat(12, 6, fmt.Sprintf("%d", l.LineNumber), "1", 0, "C", false, 0, "")
			pdf.CellFormat(40, 6, l.MaterialID, "1", 0, "L", false, 0, "")
			pdf.CellFormat(30, 6, l.Quantity.StringFixed(3), "1", 0, "R", false, 0, "")
			pdf.CellFormat(15, 6, l.Unit, "1", 0, "C", false, 0, "")
			pdf.CellFormat(30, 6, l.UnitPrice.StringFixed(4), "1", 0, "R", false, 0, "")
			pdf.CellFormat(30, 6, l.Amount.StringFixed(2), "1", 0, "R", false, 0, "")
			pdf.CellFormat(25, 6, l.TaxAmount.StringFixed(2), "1", 0, "R", false, 0, "")
			pdf.CellFormat(30, 6, l.TaxClassification, "1", 0, "L", false, 0, "")
			pdf.CellFormat(60, 6, l.Distribution, "1", 0, "L", false, 0, "")
			pdf.Ln(-1)
		}
		pdf.Ln(4)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildDocumentsXLSX renders the documents of one invoice batch as a
// documents sheet and a lines sheet.
func BuildDocumentsXLSX(invoiceBatchID string, docs []*invoicing.Document) ([]byte, error) {
	if len(docs) == 0 {
		return nil, errNoDocuments
	}
	f := excelize.NewFile()
	defer f.Close()
	docSheet := "documents"
	lineSheet := "lines"
	if err := f.SetSheetName("Sheet1", docSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(lineSheet); err != nil {
		return nil, err
	}

	docHeader := []any{"Batch", "Number", "Type", "Classification", "Business Unit", "Legal Entity",
		"Counterparty", "Counterparty Name", "Category", "Payment Type", "Payment Method", "Lot",
		"Currency", "Total", "Tax", "Description", "Created", "Synced"}
	if err := f.SetSheetRow(docSheet, "A1", &docHeader); err != nil {
		return nil, err
	}
	lineHeader := []any{"Document", "Line", "Fact", "Material", "Quantity", "Unit", "Unit Price",
		"Amount", "Tax", "Tax Class", "Distribution"}
	if err := f.SetSheetRow(lineSheet, "A1", &lineHeader); err != nil {
		return nil, err
	}

	lineRow := 2
	for i, d := range docs {
		synced := ""
		if d.Synced() {
			synced = d.SyncedAt.Format(time.RFC3339)
		}
		row := []any{invoiceBatchID, d.Number, string(d.Type), string(d.Classification), d.BusinessUnit, d.LegalEntity,
			d.CounterpartyID, d.CounterpartyName, d.Category, d.PaymentType, d.PaymentMethod, d.AuctionLotID,
			d.Currency, d.TotalAmount.InexactFloat64(), d.TaxAmount.InexactFloat64(), d.Description,
			d.CreatedAt.Format(time.RFC3339), synced}
		if err := f.SetSheetRow(docSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, err
		}
		for _, l := range d.Lines {
			line := []any{d.Number, l.LineNumber, l.FactID, l.MaterialID, l.Quantity.InexactFloat64(), l.Unit,
				l.UnitPrice.InexactFloat64(), l.Amount.InexactFloat64(), l.TaxAmount.InexactFloat64(),
				l.TaxClassification, l.Distribution}
			if err := f.SetSheetRow(lineSheet, fmt.Sprintf("A%d", lineRow), &line); err != nil {
				return nil, err
			}
			lineRow++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
