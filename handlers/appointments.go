package handlers

import (
	"net/http"

	"salona/models"
	"salona/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CustomerAppointmentsHandler lists a customer's appointments, optionally
// filtered by status (?status=pending|confirmed|cancelled|rescheduled).
func (hb *HandlerBundle) CustomerAppointmentsHandler(c *gin.Context) {
	logger := utils.GetLogger()

	telegramID := c.Param("telegramID")
	customer, err := hb.Customers.GetByTelegramID(c.Request.Context(), telegramID)
	if err != nil {
		logger.Error("Failed to look up customer", zap.String("telegramID", telegramID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up customer"})
		return
	}
	if customer == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
		return
	}

	status := models.AppointmentStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status filter: " + string(status)})
		return
	}

	appts, err := hb.Booking.CustomerAppointments(c.Request.Context(), customer.ID, status)
	if err != nil {
		logger.Error("Failed to list appointments", zap.String("customerID", customer.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list appointments"})
		return
	}
	if appts == nil {
		appts = []models.Appointment{}
	}
	c.JSON(http.StatusOK, gin.H{"appointments": appts})
}

// AvailabilityHandler returns the open slots for a date (?date=YYYY-MM-DD).
func (hb *HandlerBundle) AvailabilityHandler(c *gin.Context) {
	logger := utils.GetLogger()

	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing date query parameter"})
		return
	}

	slots, err := hb.Booking.AvailableSlots(c.Request.Context(), date, 0)
	if err != nil {
		logger.Error("Failed to compute availability", zap.String("date", date), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not compute availability for " + date})
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "slots": slots})
}
