package protocol

import "fmt"

// Status is an HTTP status code with its reason phrase
type Status struct {
	Code   int
	Reason string
}

func (s Status) String() string {
	return fmt.Sprintf("%d: %s", s.Code, s.Reason)
}

var (
	StatusOK                  = Status{200, "OK"}
	StatusMovedPermanently    = Status{301, "Moved Permanently"}
	StatusBadRequest          = Status{400, "Bad Request"}
	StatusForbidden           = Status{403, "Forbidden"}
	StatusNotFound            = Status{404, "Not Found"}
	StatusInternalServerError = Status{500, "Internal Server Error"}
)
