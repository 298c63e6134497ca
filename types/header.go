package types

const (
	// HeaderOCIReferrer is included on a manifest response with the "absent" value if there are no referrers.
	HeaderOCIReferrer = "OCI-Referrer"
)
