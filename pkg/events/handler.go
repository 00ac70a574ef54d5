package events

import (
	"encoding/json"
	"net/http"
)

// BatchRequest is the inbound wire shape of an event batch
type BatchRequest struct {
	Events []Event `json:"events"`
}

// BatchResponse reports the intake outcome to the submitting transport
type BatchResponse struct {
	Accepted int `json:"accepted"`
	Dropped  int `json:"dropped"`
}

// HTTPHandler serves POST requests carrying an event batch. Malformed
// JSON is a 400; a persistence or dispatch failure is a 503 so the
// transport retries the whole batch.
func (i *Intake) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid batch payload", http.StatusBadRequest)
			return
		}

		accepted, err := i.ProcessBatch(r.Context(), req.Events)
		if err != nil {
			i.logger.WithError(err).Error("event batch failed")
			http.Error(w, "batch processing failed", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(BatchResponse{
			Accepted: accepted,
			Dropped:  len(req.Events) - accepted,
		})
	}
}
