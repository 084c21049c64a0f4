package jobs

const (
	// TypePrecache warms the announcement audio catalogue.
	TypePrecache = "audio:precache"
)

type PrecachePayload struct {
	Force bool `json:"force"`
}
