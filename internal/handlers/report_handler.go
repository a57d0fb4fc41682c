package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/kamenolom/transport-service/internal/auth"
	"github.com/kamenolom/transport-service/internal/repository"
	"github.com/kamenolom/transport-service/internal/services"
	"github.com/kamenolom/transport-service/internal/utils"

	"github.com/xuri/excelize/v2"
)

// ReportHandler renders read-only reporting over reconciler output.
type ReportHandler struct {
	Service *services.FulfillmentService
	Users   repository.UserRepository
	Logger  *log.Logger
	Timeout time.Duration
}

// NewReportHandler creates a new ReportHandler instance.
func NewReportHandler(service *services.FulfillmentService, users repository.UserRepository, logger *log.Logger, timeout time.Duration) *ReportHandler {
	return &ReportHandler{
		Service: service,
		Users:   users,
		Logger:  logger,
		Timeout: timeout,
	}
}

// PayoutReport streams an Excel workbook of delivered counts and payouts
// per acceptance. Admin only.
func (h *ReportHandler) PayoutReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only GET is allowed")
		return
	}
	actor, ok := auth.CurrentUser(r.Context())
	if !ok {
		utils.SendErrorResponse(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if !actor.IsAdmin() {
		utils.SendErrorResponse(w, http.StatusForbidden, "admin access required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	report, err := h.Service.PayoutReport(ctx, h.Users)
	if err != nil {
		h.Logger.Println(err)
		utils.SendDomainError(w, err)
		return
	}

	f := excelize.NewFile()
	sheetName := "Isplate"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "failed to build report")
		return
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headers := []string{"Request", "Quarry", "Destination", "Date", "Driver", "Registrations", "Accepted", "Delivered", "Status", "Payment", "Payout"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}

	rowIndex := 2
	for _, row := range report {
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", rowIndex), row.RequestID)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", rowIndex), string(row.Origin))
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", rowIndex), row.Destination)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", rowIndex), row.TransportDate.Format("02.01.2006"))
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", rowIndex), row.Driver)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", rowIndex), strings.Join(row.Registrations, ", "))
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", rowIndex), row.AcceptedCount)
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", rowIndex), row.DeliveredCount)
		f.SetCellValue(sheetName, fmt.Sprintf("I%d", rowIndex), string(row.Status))
		f.SetCellValue(sheetName, fmt.Sprintf("J%d", rowIndex), string(row.PaymentStatus))
		f.SetCellValue(sheetName, fmt.Sprintf("K%d", rowIndex), row.TotalPayout)
		rowIndex++
	}

	fileName := fmt.Sprintf("payout_report_%s.xlsx", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	if err := f.Write(w); err != nil {
		h.Logger.Println(err)
	}
}
