package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"payment-gateway/internal/audit"
	"payment-gateway/internal/auth"
	"payment-gateway/internal/observability/metrics"
	paymentapp "payment-gateway/internal/payment/application"
	payment "payment-gateway/internal/payment/domain"
)

const (
	formatPDF  = "pdf"
	formatXLSX = "xlsx"

	// MaxExportRows caps a single export.
	MaxExportRows = 10000
)

func (h *Handler) handleExport(format string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		data, rows, err := h.export(r, format)
		if err != nil {
			metrics.ObserveExport(format, metrics.ResultError, time.Since(start))
			h.writeError(w, err)
			return
		}
		metrics.ObserveExport(format, metrics.ResultSuccess, time.Since(start))

		filename := fmt.Sprintf("payments-%s.%s", h.now().Format("20060102-150405"), format)
		switch format {
		case formatPDF:
			w.Header().Set("Content-Type", "application/pdf")
		case formatXLSX:
			w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		}
		w.Header().Set("Content-Disposition", "attachment; filename="+filename)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)

		var partnerID int64
		if scoped, ok := auth.PartnerScope(r.Context()); ok {
			partnerID = scoped
		}
		h.logAudit(r, partnerID, audit.ActionPaymentExport, filename, map[string]any{
			"format": format,
			"rows":   rows,
			"query":  r.URL.RawQuery,
		})
	}
}

func (h *Handler) export(r *http.Request, format string) ([]byte, int, error) {
	filter, err := parseFilter(r)
	if err != nil {
		return nil, 0, err
	}
	items, summary, err := h.collect(r, filter)
	if err != nil {
		return nil, 0, err
	}
	generatedAt := h.now()
	var data []byte
	switch format {
	case formatPDF:
		data, err = BuildPaymentsPDF(items, summary, generatedAt)
	default:
		data, err = BuildPaymentsXLSX(items, summary, generatedAt)
	}
	if err != nil {
		return nil, 0, err
	}
	return data, len(items), nil
}

// collect follows cursor pages until the filtered set is exhausted or the
// export cap is reached. The summary always covers the whole filtered set.
func (h *Handler) collect(r *http.Request, filter paymentapp.Filter) ([]payment.Payment, payment.Summary, error) {
	filter.Limit = paymentapp.MaxPageLimit
	var (
		items   []payment.Payment
		summary payment.Summary
	)
	for first := true; ; first = false {
		result, err := h.queries.Query(r.Context(), filter)
		if err != nil {
			return nil, payment.Summary{}, err
		}
		if first {
			summary = result.Summary
		}
		items = append(items, result.Items...)
		if len(items) >= MaxExportRows {
			h.logger.Warn("payment export truncated", zap.Int("rows", MaxExportRows))
			return items[:MaxExportRows], summary, nil
		}
		if !result.HasNext || result.NextCursor == nil {
			return items, summary, nil
		}
		filter.Cursor = *result.NextCursor
	}
}

// BuildPaymentsPDF renders payment history as a PDF table.
func BuildPaymentsPDF(items []payment.Payment, summary payment.Summary, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Payment History")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generatedAt.UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Count: %d", summary.Count))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total Amount: %s", summary.TotalAmount.StringFixed(2)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total Net Amount: %s", summary.TotalNetAmount.StringFixed(2)))
	pdf.Ln(5)
	if int64(len(items)) < summary.Count {
		pdf.Cell(0, 6, fmt.Sprintf("Rows: first %d of %d", len(items), summary.Count))
		pdf.Ln(5)
	}
	pdf.Ln(3)

	headers := []string{"ID", "Partner", "Amount", "Fee Rate", "Fee", "Net", "Card", "Approval", "Status", "Created"}
	widths := []float64{18, 18, 30, 22, 26, 30, 18, 26, 24, 45}
	pdf.SetFont("Arial", "B", 9)
	for i, header := range headers {
		pdf.CellFormat(widths[i], 6, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, item := range items {
		cells := []string{
			strconv.FormatInt(item.ID, 10),
			strconv.FormatInt(item.PartnerID, 10),
			item.Amount.StringFixed(2),
			item.AppliedFeeRate.String(),
			item.FeeAmount.StringFixed(2),
			item.NetAmount.StringFixed(2),
			item.CardLast4,
			item.ApprovalCode,
			string(item.Status),
			item.CreatedAt.UTC().Format(time.RFC3339),
		}
		for i, cell := range cells {
			align := "R"
			if i >= 6 {
				align = "C"
			}
			pdf.CellFormat(widths[i], 6, cell, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildPaymentsXLSX renders payment history as a workbook with a summary
// sheet and an items sheet.
func BuildPaymentsXLSX(items []payment.Payment, summary payment.Summary, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	itemsSheet := "payments"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Payment History")
	_ = f.SetCellValue(summarySheet, "A3", "Generated")
	_ = f.SetCellValue(summarySheet, "B3", generatedAt.UTC().Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A4", "Count")
	_ = f.SetCellValue(summarySheet, "B4", summary.Count)
	_ = f.SetCellValue(summarySheet, "A5", "Total Amount")
	_ = f.SetCellValue(summarySheet, "B5", summary.TotalAmount.StringFixed(2))
	_ = f.SetCellValue(summarySheet, "A6", "Total Net Amount")
	_ = f.SetCellValue(summarySheet, "B6", summary.TotalNetAmount.StringFixed(2))
	_ = f.SetCellValue(summarySheet, "A7", "Exported Rows")
	_ = f.SetCellValue(summarySheet, "B7", len(items))

	headers := []string{"ID", "Partner", "Amount", "Fee Rate", "Fee", "Net", "Card Last4", "Approval Code", "Approved At", "Status", "Created At"}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(itemsSheet, cell, header)
	}
	for i, item := range items {
		row := i + 2
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("A%d", row), item.ID)
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("B%d", row), item.PartnerID)
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("C%d", row), item.Amount.StringFixed(2))
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("D%d", row), item.AppliedFeeRate.String())
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("E%d", row), item.FeeAmount.StringFixed(2))
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("F%d", row), item.NetAmount.StringFixed(2))
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("G%d", row), item.CardLast4)
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("H%d", row), item.ApprovalCode)
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("I%d", row), item.ApprovedAt.UTC().Format(time.RFC3339))
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("J%d", row), string(item.Status))
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("K%d", row), item.CreatedAt.UTC().Format(time.RFC3339))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
