package protocol

import "strings"

// HTTPVersion is the version written on every response status line
const HTTPVersion = "1.1"

// ServerName is the value of the Server header on every response
const ServerName = "Aden 0.1"

// Supported request methods, lowercased as stored on Request
const (
	MethodGet  = "get"
	MethodPost = "post"
)

// HttpHeader represents an HTTP header key-value pair
type HttpHeader struct {
	Key   string
	Value string
}

// HttpHeaders is an ordered header list with case-insensitive, unique keys
type HttpHeaders []HttpHeader

// Get returns the value of the first header matching key
func (h HttpHeaders) Get(key string) (string, bool) {
	for _, header := range h {
		if strings.EqualFold(header.Key, key) {
			return header.Value, true
		}
	}
	return "", false
}

// Set overwrites the value of an existing key in place or appends a new one
func (h *HttpHeaders) Set(key, value string) {
	for i := range *h {
		if strings.EqualFold((*h)[i].Key, key) {
			(*h)[i].Value = value
			return
		}
	}
	*h = append(*h, HttpHeader{Key: key, Value: value})
}

// Del removes key if present
func (h *HttpHeaders) Del(key string) {
	for i := range *h {
		if strings.EqualFold((*h)[i].Key, key) {
			*h = append((*h)[:i], (*h)[i+1:]...)
			return
		}
	}
}
