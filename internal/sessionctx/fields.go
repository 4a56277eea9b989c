package sessionctx

import "encoding/json"

// Provenance records how a fact was obtained.
type Provenance string

const (
	Stated        Provenance = "stated"
	Declared      Provenance = "declared"
	Observed      Provenance = "observed"
	Inferred      Provenance = "inferred"
	AgentInferred Provenance = "agent_inferred"
	Appended      Provenance = "appended"
)

// Usage limits how directly a fact may be surfaced.
type Usage string

const (
	Direct        Usage = "direct"
	Soft          Usage = "soft"
	InfluenceOnly Usage = "influence_only"
)

var usageByProvenance = map[Provenance]Usage{
	Stated:        Direct,
	Declared:      Direct,
	Observed:      Direct,
	Inferred:      Soft,
	AgentInferred: Soft,
	Appended:      InfluenceOnly,
}

// UsageFor is the only place usage is decided. Unknown provenance gets the
// most restrictive usage.
func UsageFor(p Provenance) Usage {
	if u, ok := usageByProvenance[p]; ok {
		return u
	}
	return InfluenceOnly
}

// TaggedContextField has no settable usage; it is always derived.
type TaggedContextField struct {
	Key        string
	Value      string
	Provenance Provenance
}

func (f TaggedContextField) Usage() Usage { return UsageFor(f.Provenance) }

func (f TaggedContextField) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Key        string     `json:"key"`
		Value      string     `json:"value"`
		Provenance Provenance `json:"provenance"`
		Usage      Usage      `json:"usage"`
	}{f.Key, f.Value, f.Provenance, f.Usage()})
}
