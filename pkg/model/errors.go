package model

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrDeviceUnavailable: camera permission denied or no device exists
	ErrDeviceUnavailable = goerr.New("capture device unavailable")

	// ErrNotReady: a frame was requested before the device rendered one
	ErrNotReady = goerr.New("no frame rendered yet")

	// ErrInferenceUnavailable: the one-shot analysis endpoint failed
	ErrInferenceUnavailable = goerr.New("inference endpoint unavailable")

	// ErrMalformedResponse: the endpoint returned schema-violating JSON
	ErrMalformedResponse = goerr.New("malformed inference response")

	// ErrStreamTransport: a live session failed mid-stream
	ErrStreamTransport = goerr.New("live stream transport error")
)
