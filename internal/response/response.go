// Package response maps a workflow's terminal result to the status code and
// JSON body returned to the caller.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/petrijr/pizzaflow/pkg/api"
)

// Error bodies.
const (
	InternalServerError = "Internal Server Error"
	OrderTimedOut       = "Order Timed Out"
)

// Body is the JSON payload of a response. Order bodies carry
// containsPineapple and pizzaStatus; error bodies carry only error.
type Body struct {
	ContainsPineapple *bool  `json:"containsPineapple,omitempty"`
	PizzaStatus       string `json:"pizzaStatus,omitempty"`
	Error             string `json:"error,omitempty"`
}

// Response is a formatted result.
type Response struct {
	StatusCode int
	Body       Body
}

// JSON encodes the body.
func (r Response) JSON() []byte {
	b, err := json.Marshal(r.Body)
	if err != nil {
		// Body only holds strings and a bool.
		return []byte(`{"error":"` + InternalServerError + `"}`)
	}
	return b
}

// Format maps a terminal result to a response:
//
//	succeeded          -> 200 {containsPineapple:false, pizzaStatus}
//	pineapple rejected -> 500 {containsPineapple:true, pizzaStatus}
//	timed out          -> 500 {error:"Order Timed Out"}
//	anything else      -> 500 {error:"Internal Server Error"}
func Format(r api.TerminalResult) Response {
	switch {
	case r.Succeeded && r.Output != nil:
		return order(http.StatusOK, *r.Output)
	case r.IsRejection():
		return order(http.StatusInternalServerError, *r.Output)
	case r.Kind == api.ErrorTimeoutExceeded:
		return errorResponse(OrderTimedOut)
	default:
		return InternalError()
	}
}

// FormatExecution formats a finished execution. Executions without a result
// are reported as internal errors.
func FormatExecution(exec *api.WorkflowExecution) Response {
	if exec == nil || exec.Result == nil {
		return InternalError()
	}
	return Format(*exec.Result)
}

// InternalError is the generic 500 response.
func InternalError() Response {
	return errorResponse(InternalServerError)
}

func order(code int, out api.OrderOutput) Response {
	pineapple := out.ContainsPineapple
	return Response{
		StatusCode: code,
		Body: Body{
			ContainsPineapple: &pineapple,
			PizzaStatus:       out.PizzaStatus,
		},
	}
}

func errorResponse(msg string) Response {
	return Response{
		StatusCode: http.StatusInternalServerError,
		Body:       Body{Error: msg},
	}
}
