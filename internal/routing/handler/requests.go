package handler

import (
	"strings"

	"beacon/internal/routing"
	dErrors "beacon/pkg/domain-errors"
)

// InboundRequest is an inbound SMS as delivered by the provider webhook.
type InboundRequest struct {
	From string `json:"from"`
	Body string `json:"body"`
}

// Validate checks presence only; the engine owns body and phone rules.
func (r *InboundRequest) Validate() error {
	r.From = strings.TrimSpace(r.From)
	if r.From == "" {
		return dErrors.New(dErrors.CodeValidation, "from is required")
	}
	if strings.TrimSpace(r.Body) == "" {
		return dErrors.New(dErrors.CodeValidation, "body is required")
	}
	return nil
}

// DeliveryResponse is the per-recipient send result.
type DeliveryResponse struct {
	Phone  string `json:"phone"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// OutcomeResponse is the body of a routed inbound message.
type OutcomeResponse struct {
	Sender     string             `json:"sender"`
	Class      string             `json:"class"`
	Action     string             `json:"action"`
	Recipients []string           `json:"recipients"`
	Deliveries []DeliveryResponse `json:"deliveries"`
	Confirmed  bool               `json:"confirmed"`
}

// InboundFailureResponse is returned with 502 when the fan-out failed.
type InboundFailureResponse struct {
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description,omitempty"`
	Outcome          OutcomeResponse `json:"outcome"`
}

func toOutcomeResponse(o *routing.Outcome) OutcomeResponse {
	resp := OutcomeResponse{
		Sender:     o.Sender,
		Class:      string(o.Class),
		Action:     string(o.Action),
		Recipients: o.Recipients,
		Deliveries: make([]DeliveryResponse, 0, len(o.Deliveries)),
		Confirmed:  o.Confirmed,
	}
	if resp.Recipients == nil {
		resp.Recipients = []string{}
	}
	for _, d := range o.Deliveries {
		dr := DeliveryResponse{Phone: d.Phone, Status: "sent"}
		if d.Err != nil {
			dr.Status = "failed"
			dr.Error = d.Err.Error()
		}
		resp.Deliveries = append(resp.Deliveries, dr)
	}
	return resp
}
