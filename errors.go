package cfddns

import "errors"

var (
	// ErrMissingToken is returned when no Cloudflare API token could be found.
	ErrMissingToken = errors.New("cloudflare API token is required")

	// ErrMissingZone is returned when no zone name was configured.
	ErrMissingZone = errors.New("zone name is required")

	// ErrMissingRecordName is returned when no record name was configured.
	ErrMissingRecordName = errors.New("record name is required")

	// ErrZoneNotFound is returned when the configured zone does not exist
	// in the Cloudflare account the token has access to.
	ErrZoneNotFound = errors.New("zone not found")
)
