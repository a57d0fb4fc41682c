package router

import (
	"net/http"

	"github.com/kamenolom/transport-service/internal/handlers"
)

// InitRoutes wires the HTTP surface. Everything except ping requires a
// valid bearer token; role checks happen in the services.
func InitRoutes(requestHandler *handlers.RequestHandler, acceptanceHandler *handlers.AcceptanceHandler, itemHandler *handlers.ItemHandler, reportHandler *handlers.ReportHandler, authenticate func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/ping", handlers.PingHandler)

	protected := http.NewServeMux()
	protected.HandleFunc("POST /api/requests/new", requestHandler.CreateRequest)
	protected.HandleFunc("GET /api/requests", requestHandler.GetRequests)
	protected.HandleFunc("GET /api/requests/{requestId}", requestHandler.GetRequest)
	protected.HandleFunc("PUT /api/requests/{requestId}/edit", requestHandler.EditRequest)
	protected.HandleFunc("PUT /api/requests/{requestId}/status", requestHandler.UpdateRequestStatus)
	protected.HandleFunc("DELETE /api/requests/{requestId}", requestHandler.DeleteRequest)

	protected.HandleFunc("POST /api/requests/{requestId}/accept", acceptanceHandler.CreateAcceptance)
	protected.HandleFunc("GET /api/requests/{requestId}/acceptances", acceptanceHandler.GetRequestAcceptances)
	protected.HandleFunc("GET /api/acceptances/my", acceptanceHandler.GetMyAcceptances)
	protected.HandleFunc("PUT /api/acceptances/{acceptanceId}/review", acceptanceHandler.ReviewAcceptance)
	protected.HandleFunc("PUT /api/acceptances/{acceptanceId}/paid", acceptanceHandler.MarkPaid)

	protected.HandleFunc("GET /api/items/{itemId}", itemHandler.GetItem)
	protected.HandleFunc("POST /api/items/{itemId}/approve", itemHandler.ApproveItem)
	protected.HandleFunc("GET /api/reports/payouts", reportHandler.PayoutReport)

	mux.Handle("/api/", authenticate(protected))

	return mux
}
