package handlers

import (
	customerRepo "salona/database/repository/customer"
	"salona/services/booking"
	"salona/services/conversation"
)

// HandlerBundle groups the service dependencies the HTTP layer needs.
type HandlerBundle struct {
	Engine    *conversation.Engine
	Booking   booking.Service
	Customers customerRepo.CustomerRepository
}
