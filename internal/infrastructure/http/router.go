package httpapi

import "net/http"

func NewRouter(handler *PaymentHandler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /payments", handler.CreatePayment)
	mux.HandleFunc("GET /payments/{id}", handler.GetPayment)
	mux.HandleFunc("POST /payments/{payment_id}/refund", handler.Refund)
	mux.HandleFunc("POST /webhook", handler.Webhook)
	mux.HandleFunc("POST /retries", handler.TriggerRetries)
	mux.HandleFunc("GET /metrics", handler.MetricsSnapshot)
	mux.HandleFunc("GET /healthz", handler.Health)

	return mux
}
